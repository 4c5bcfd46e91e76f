// Package report aggregates expenses into monthly summaries.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"spendwise/internal/models"

	"github.com/shopspring/decimal"
)

// Accepted reporting years.
const (
	MinYear = 2000
	MaxYear = 2100
)

// Money amounts are bounded so every accepted value survives the float64
// round trip through storage.
const MaxAmountScale = 6

var MaxAmount = decimal.New(1, 12)

var (
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidYear   = errors.New("invalid year")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses and validates path-style month and year values.
func ParsePeriod(monthStr, yearStr string) (Period, error) {
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidMonth, monthStr)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < MinYear || year > MaxYear {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidYear, yearStr)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Range returns the half-open interval [from, to) covering the month.
func (p Period) Range() (from, to time.Time) {
	from = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Prev returns the previous month.
func (p Period) Prev() Period {
	from, _ := p.Range()
	return PeriodOf(from.AddDate(0, -1, 0))
}

// Next returns the following month.
func (p Period) Next() Period {
	_, to := p.Range()
	return PeriodOf(to)
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// ParseCost parses a strictly positive money amount.
func ParseCost(s string) (decimal.Decimal, error) {
	d, err := parseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return d, nil
}

// ParseNonNegative parses a money amount that may be zero. An empty string
// is zero.
func ParseNonNegative(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := parseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return d, nil
}

// parseAmount rejects anything that is not a plain finite decimal within
// MaxAmount and MaxAmountScale, so "NaN", "Inf", exponents and values that
// overflow or underflow a float64 never reach storage.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: must not exceed %s", ErrInvalidAmount, MaxAmount)
	}
	if !d.Equal(d.Truncate(MaxAmountScale)) {
		return decimal.Zero, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, MaxAmountScale)
	}
	return d, nil
}

// MonthlyTotals sums cost per category. Categories are grouped by their exact
// text, so "Food" and "Food " are separate keys.
func MonthlyTotals(expenses []models.Expense) map[string]float64 {
	sums := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		sums[e.Category] = sums[e.Category].Add(decimal.NewFromFloat(e.Cost))
	}

	out := make(map[string]float64, len(sums))
	for cat, sum := range sums {
		out[cat] = sum.InexactFloat64()
	}
	return out
}

// Total sums the cost of all expenses.
func Total(expenses []models.Expense) float64 {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(decimal.NewFromFloat(e.Cost))
	}
	return sum.InexactFloat64()
}

// CategoryShare is one row of a monthly breakdown.
type CategoryShare struct {
	Category   string
	Total      float64
	Count      int
	Percentage float64
}

// Breakdown returns per-category totals with their share of the month,
// largest first.
func Breakdown(expenses []models.Expense) []CategoryShare {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	total := decimal.Zero
	for _, e := range expenses {
		cost := decimal.NewFromFloat(e.Cost)
		sums[e.Category] = sums[e.Category].Add(cost)
		counts[e.Category]++
		total = total.Add(cost)
	}

	shares := make([]CategoryShare, 0, len(sums))
	hundred := decimal.NewFromInt(100)
	for cat, sum := range sums {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = sum.Div(total).Mul(hundred)
		}
		shares = append(shares, CategoryShare{
			Category:   cat,
			Total:      sum.InexactFloat64(),
			Count:      counts[cat],
			Percentage: pct.Round(1).InexactFloat64(),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Total != shares[j].Total {
			return shares[i].Total > shares[j].Total
		}
		return shares[i].Category < shares[j].Category
	})
	return shares
}

// Budget compares a month's spending with the user's limit.
type Budget struct {
	Income        float64 `json:"income"`
	SpendingLimit float64 `json:"spending_limit"`
	TotalSpending float64 `json:"total_spending"`
	Remaining     float64 `json:"remaining"`
	OverLimit     bool    `json:"over_limit"`
}

// BudgetFor summarizes expenses against the user's budget. A zero spending
// limit means none is set: remaining is then measured against income and the
// month is never over the limit.
func BudgetFor(user *models.User, expenses []models.Expense) Budget {
	income := decimal.NewFromFloat(user.Income)
	limit := decimal.NewFromFloat(user.SpendingLimit)
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(decimal.NewFromFloat(e.Cost))
	}

	ceiling := limit
	if !limit.IsPositive() {
		ceiling = income
	}

	return Budget{
		Income:        income.InexactFloat64(),
		SpendingLimit: limit.InexactFloat64(),
		TotalSpending: total.InexactFloat64(),
		Remaining:     ceiling.Sub(total).InexactFloat64(),
		OverLimit:     limit.IsPositive() && total.GreaterThan(limit),
	}
}
