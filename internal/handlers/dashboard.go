package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"spendwise/internal/log"
	"spendwise/internal/models"
	"spendwise/internal/report"
	"spendwise/internal/storage"
)

// ExpenseItem represents an expense in the list view.
type ExpenseItem struct {
	models.Expense
	CategoryStyle CategoryStyle
}

// ExpenseGroup groups expenses by date.
type ExpenseGroup struct {
	Title string
	Date  string
	Total float64
	Items []ExpenseItem
}

// StatsCategoryItem represents a category with its spending statistics.
type StatsCategoryItem struct {
	report.CategoryShare
	CategoryStyle CategoryStyle
}

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	User           *models.User
	Flash          string
	Year           int
	Month          int
	MonthName      string
	Today          string
	Total          float64
	Groups         []ExpenseGroup
	Breakdown      []StatsCategoryItem
	Categories     []models.Category
	Budget         report.Budget
	AutoCategorize bool
	PrevYear       int
	PrevMonth      int
	NextYear       int
	NextMonth      int
	IsCurrentMonth bool
}

// Dashboard renders the month view: expenses grouped by day, the category
// breakdown and the budget summary.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	ctx := r.Context()

	now := time.Now()
	period := report.PeriodOf(now)
	// Out-of-range query values fall back to the current month.
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && y >= report.MinYear && y <= report.MaxYear {
		period.Year = y
	}
	if m, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil && m >= 1 && m <= 12 {
		period.Month = time.Month(m)
	}

	from, to := period.Range()
	expenses, err := h.db.ListExpensesBetween(ctx, user.ID, from, to)
	if err != nil {
		log.FromContext(ctx).Error("ListExpensesBetween error", log.FieldUserID, user.ID, log.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	categories, err := h.db.ListCategories(ctx, user.ID)
	if err != nil {
		log.FromContext(ctx).Error("ListCategories error", log.FieldUserID, user.ID, log.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	shares := report.Breakdown(expenses)
	breakdown := make([]StatsCategoryItem, 0, len(shares))
	for _, s := range shares {
		breakdown = append(breakdown, StatsCategoryItem{CategoryShare: s, CategoryStyle: getCategoryStyle(s.Category)})
	}

	prev, next := period.Prev(), period.Next()

	h.render(w, r, "dashboard.html", DashboardViewModel{
		User:           user,
		Flash:          h.popFlash(w, r),
		Year:           period.Year,
		Month:          int(period.Month),
		MonthName:      period.Month.String(),
		Today:          now.Format(models.DateLayout),
		Total:          report.Total(expenses),
		Groups:         groupByDay(expenses),
		Breakdown:      breakdown,
		Categories:     categories,
		Budget:         report.BudgetFor(user, expenses),
		AutoCategorize: h.autoCategorize,
		PrevYear:       prev.Year,
		PrevMonth:      int(prev.Month),
		NextYear:       next.Year,
		NextMonth:      int(next.Month),
		IsCurrentMonth: period == report.PeriodOf(now),
	})
}

// groupByDay buckets expenses by date, newest day first.
func groupByDay(expenses []models.Expense) []ExpenseGroup {
	groupsMap := make(map[string]*ExpenseGroup)
	for _, e := range expenses {
		dateStr := e.Date.Format(models.DateLayout)
		if _, ok := groupsMap[dateStr]; !ok {
			groupsMap[dateStr] = &ExpenseGroup{Date: dateStr, Title: formatGroupTitle(e.Date)}
		}
		group := groupsMap[dateStr]
		group.Items = append(group.Items, ExpenseItem{Expense: e, CategoryStyle: getCategoryStyle(e.Category)})
	}

	groups := make([]ExpenseGroup, 0, len(groupsMap))
	for _, g := range groupsMap {
		g.Total = report.Total(itemsExpenses(g.Items))
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups
}

func itemsExpenses(items []ExpenseItem) []models.Expense {
	out := make([]models.Expense, len(items))
	for i, it := range items {
		out[i] = it.Expense
	}
	return out
}

// ProfileViewModel holds data for the profile page.
type ProfileViewModel struct {
	User          *models.User
	Flash         string
	Error         string
	Income        string
	SpendingLimit string
}

// ProfileForm renders the profile page.
func (h *Handlers) ProfileForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	h.render(w, r, "profile.html", ProfileViewModel{
		User:          user,
		Flash:         h.popFlash(w, r),
		Income:        strconv.FormatFloat(user.Income, 'f', -1, 64),
		SpendingLimit: strconv.FormatFloat(user.SpendingLimit, 'f', -1, 64),
	})
}

// UpdateProfile stores a new income and spending limit.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	ctx := r.Context()

	vm := ProfileViewModel{User: user}
	if err := r.ParseForm(); err != nil {
		vm.Error = "Invalid form submission"
		h.renderStatus(w, r, http.StatusBadRequest, "profile.html", vm)
		return
	}
	vm.Income = r.FormValue("income")
	vm.SpendingLimit = r.FormValue("spending_limit")

	income, err := report.ParseNonNegative(vm.Income)
	if err != nil {
		vm.Error = "Income must be a non-negative number"
		h.renderStatus(w, r, http.StatusBadRequest, "profile.html", vm)
		return
	}
	limit, err := report.ParseNonNegative(vm.SpendingLimit)
	if err != nil {
		vm.Error = "Spending limit must be a non-negative number"
		h.renderStatus(w, r, http.StatusBadRequest, "profile.html", vm)
		return
	}

	err = h.db.UpdateUserProfile(ctx, user.ID, income.InexactFloat64(), limit.InexactFloat64())
	if errors.Is(err, storage.ErrNotFound) {
		h.clearSessionCookie(w)
		h.setFlash(w, flashSessionGone)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err != nil {
		log.FromContext(ctx).Error("UpdateUserProfile error", log.FieldUserID, user.ID, log.FieldError, err)
		vm.Error = "An error occurred. Please try again."
		h.renderStatus(w, r, http.StatusInternalServerError, "profile.html", vm)
		return
	}

	h.setFlash(w, flashProfileSaved)
	http.Redirect(w, r, "/profile", http.StatusFound)
}
