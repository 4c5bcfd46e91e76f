package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"spendwise/internal/classifier"
	"spendwise/internal/log"
	"spendwise/internal/models"
	"spendwise/internal/report"
	"spendwise/internal/storage"
)

// AddCategory creates a category for the session user.
func (h *Handlers) AddCategory(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	ctx := r.Context()

	fields, err := readFields(r, "name")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(fields["name"])
	if name == "" {
		writeError(w, http.StatusBadRequest, "Category name is required")
		return
	}

	category, err := h.db.CreateCategory(ctx, user.ID, name)
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, http.StatusBadRequest, "Category already exists")
		return
	}
	if err != nil {
		log.FromContext(ctx).Error("CreateCategory error", log.FieldUserID, user.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Category added successfully!",
		"category": category,
	})
}

// ListCategories returns the session user's categories.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	categories, err := h.db.ListCategories(r.Context(), user.ID)
	if err != nil {
		log.FromContext(r.Context()).Error("ListCategories error", log.FieldUserID, user.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// AddExpense records an expense. A blank category is inferred from the name
// when auto-categorization is on.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentExpense)

	fields, err := readFields(r, "name", "cost", "date", "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := strings.TrimSpace(fields["name"])
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	cost, err := report.ParseCost(fields["cost"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "cost must be a number greater than zero")
		return
	}
	date, err := time.Parse(models.DateLayout, strings.TrimSpace(fields["date"]))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
		return
	}

	// An explicit category is stored exactly as given.
	category := fields["category"]
	if strings.TrimSpace(category) == "" {
		if !h.autoCategorize {
			writeError(w, http.StatusBadRequest, "category is required")
			return
		}
		var inferErr error
		category, inferErr = classifier.Categorize(ctx, h.classifier, name)
		if inferErr != nil {
			logger.WithComponent(log.ComponentClassifier).Warn("Category inference failed",
				"name", name, log.FieldError, inferErr)
		}
	}

	expense, err := h.db.CreateExpense(ctx, models.Expense{
		Name:     name,
		Cost:     cost.InexactFloat64(),
		Category: category,
		Date:     date,
		UserID:   user.ID,
	})
	if err != nil {
		logger.Error("CreateExpense error", log.FieldUserID, user.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("Expense added", log.FieldUserID, user.ID, "expense_id", expense.ID, "category", expense.Category)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Expense added successfully! Categorized as " + expense.Category,
		"category": expense.Category,
	})
}

// GetExpenses lists the session user's expenses on one day.
func (h *Handlers) GetExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	ctx := r.Context()

	date, err := time.Parse(models.DateLayout, r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
		return
	}

	expenses, err := h.db.ListExpensesByDate(ctx, user.ID, date)
	if err != nil {
		log.FromContext(ctx).Error("ListExpensesByDate error", log.FieldUserID, user.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]models.ExpenseSummary, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

// monthExpenses validates the {month}/{year} path values and loads that
// month's expenses for the session user. It writes the error response
// itself and returns ok=false on failure.
func (h *Handlers) monthExpenses(w http.ResponseWriter, r *http.Request) (expenses []models.Expense, ok bool) {
	user := GetUserFromContext(r)
	ctx := r.Context()

	period, err := report.ParsePeriod(r.PathValue("month"), r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	from, to := period.Range()
	expenses, err = h.db.ListExpensesBetween(ctx, user.ID, from, to)
	if err != nil {
		log.FromContext(ctx).Error("ListExpensesBetween error", log.FieldUserID, user.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return expenses, true
}

// MonthlyReport returns per-category totals for one month.
func (h *Handlers) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	expenses, ok := h.monthExpenses(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.MonthlyTotals(expenses))
}

// GetBudget compares one month's spending with the user's budget.
func (h *Handlers) GetBudget(w http.ResponseWriter, r *http.Request) {
	expenses, ok := h.monthExpenses(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.BudgetFor(GetUserFromContext(r), expenses))
}

// SuggestCategory returns the inferred category for a name without storing
// anything.
func (h *Handlers) SuggestCategory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := classifier.Categorize(r.Context(), h.classifier, name)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentClassifier).Warn("Category inference failed",
			"name", name, log.FieldError, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": category})
}
