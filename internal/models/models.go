package models

import "time"

// DateLayout is the wire and storage format of an expense date.
const DateLayout = "2006-01-02"

// User represents a user account.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Income        float64   `json:"income"`
	SpendingLimit float64   `json:"spending_limit"`
	CreatedAt     time.Time `json:"created_at"`
}

// Category is a user-owned spending category name.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserID    int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// Expense represents a single dated expense owned by a user.
type Expense struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Cost     float64   `json:"cost"`
	Category string    `json:"category"`
	Date     time.Time `json:"date"`
	UserID   int64     `json:"user_id"`
}

// ExpenseSummary is the public JSON shape of an expense.
type ExpenseSummary struct {
	Name     string  `json:"name"`
	Cost     float64 `json:"cost"`
	Category string  `json:"category"`
}

// Summary returns the public JSON shape of e.
func (e Expense) Summary() ExpenseSummary {
	return ExpenseSummary{Name: e.Name, Cost: e.Cost, Category: e.Category}
}

// Session represents a user session.
type Session struct {
	Token        string    `json:"token"`
	UserID       int64     `json:"user_id"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}
