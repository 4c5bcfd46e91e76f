package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"spendwise/internal/classifier"
	"spendwise/internal/log"
	"spendwise/internal/models"
	"spendwise/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// FlashCookieName carries a one-shot message across a redirect.
	FlashCookieName = "flash"
	// DefaultIdleTimeout is how long a session survives without requests.
	DefaultIdleTimeout = 30 * time.Minute
)

// User-facing messages shared by several handlers.
const (
	msgNotLoggedIn    = "Not logged in"
	msgSessionInvalid = "Session expired or invalid"
	flashSessionGone  = "Session expired or invalid. Please log in again."
	flashSignedUp     = "Account created successfully!"
	flashProfileSaved = "Profile updated successfully!"
)

// Options configures Handlers.
type Options struct {
	TemplateDir    string
	SecureCookie   bool
	IdleTimeout    time.Duration
	AutoCategorize bool
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db             *storage.DB
	classifier     classifier.Classifier
	logger         *log.Logger
	templateDir    string
	secureCookie   bool
	idleTimeout    time.Duration
	autoCategorize bool
}

// NewHandlers creates a new Handlers instance. A nil classifier behaves like
// one that always fails, so every inferred category is Uncategorized.
func NewHandlers(db *storage.DB, c classifier.Classifier, logger *log.Logger, opts Options) *Handlers {
	if c == nil {
		c = classifier.Unavailable{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Handlers{
		db:             db,
		classifier:     c,
		logger:         logger,
		templateDir:    opts.TemplateDir,
		secureCookie:   opts.SecureCookie,
		idleTimeout:    idle,
		autoCategorize: opts.AutoCategorize,
	}
}

// Register adds every page and API route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /signup", h.SignupForm)
	mux.HandleFunc("POST /signup", h.Signup)
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)

	mux.Handle("GET /dashboard", h.RequireUser(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /profile", h.RequireUser(http.HandlerFunc(h.ProfileForm)))
	mux.Handle("POST /profile", h.RequireUser(http.HandlerFunc(h.UpdateProfile)))

	mux.Handle("POST /add_category", h.RequireUserAPI(http.HandlerFunc(h.AddCategory)))
	mux.Handle("GET /categories", h.RequireUserAPI(http.HandlerFunc(h.ListCategories)))
	mux.Handle("POST /add_expense", h.RequireUserAPI(http.HandlerFunc(h.AddExpense)))
	mux.Handle("GET /get_expenses/{date}", h.RequireUserAPI(http.HandlerFunc(h.GetExpenses)))
	mux.Handle("GET /monthly_report/{month}/{year}", h.RequireUserAPI(http.HandlerFunc(h.MonthlyReport)))
	mux.Handle("GET /get_budget/{month}/{year}", h.RequireUserAPI(http.HandlerFunc(h.GetBudget)))
	mux.Handle("GET /suggest_category", h.RequireUserAPI(http.HandlerFunc(h.SuggestCategory)))

	mux.HandleFunc("GET /healthz", h.Health)
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

type sessionState int

const (
	sessionValid sessionState = iota
	sessionMissing
	sessionOrphaned // the session outlived its user
)

// authenticate resolves the session cookie to a user and slides the idle
// timeout forward. Unknown or expired sessions count as missing.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (*models.User, sessionState, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, sessionMissing, nil
	}
	ctx := r.Context()

	session, err := h.db.GetSession(ctx, cookie.Value)
	if errors.Is(err, storage.ErrNotFound) {
		h.clearSessionCookie(w)
		return nil, sessionMissing, nil
	}
	if err != nil {
		return nil, sessionMissing, err
	}

	user, err := h.db.GetUserByID(ctx, session.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		if err := h.db.DeleteSession(ctx, session.Token); err != nil {
			log.FromContext(ctx).Warn("Failed to delete orphaned session", log.FieldError, err)
		}
		h.clearSessionCookie(w)
		return nil, sessionOrphaned, nil
	}
	if err != nil {
		return nil, sessionMissing, err
	}

	// Sliding idle timeout: every authenticated request restarts the clock.
	if err := h.db.RenewSession(ctx, session.Token, time.Now().Add(h.idleTimeout)); err != nil {
		log.FromContext(ctx).Warn("Failed to renew session", log.FieldUserID, user.ID, log.FieldError, err)
	} else {
		h.setSessionCookie(w, session.Token)
	}

	return user, sessionValid, nil
}

// RequireUser gates page routes. Anonymous visitors are sent to the login
// page.
func (h *Handlers) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, state, err := h.authenticate(w, r)
		if err != nil {
			log.FromContext(r.Context()).Error("Session lookup failed", log.FieldError, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		switch state {
		case sessionMissing:
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		case sessionOrphaned:
			h.setFlash(w, flashSessionGone)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUserAPI gates JSON routes. Failures are reported as 403 with an
// error body instead of a redirect.
func (h *Handlers) RequireUserAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, state, err := h.authenticate(w, r)
		if err != nil {
			log.FromContext(r.Context()).Error("Session lookup failed", log.FieldError, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		switch state {
		case sessionMissing:
			writeError(w, http.StatusForbidden, msgNotLoggedIn)
			return
		case sessionOrphaned:
			writeError(w, http.StatusForbidden, msgSessionInvalid)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Health reports whether the database is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.idleTimeout.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(message)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending flash message, if any, and clears it.
func (h *Handlers) popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	msg, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, data any) {
	h.renderStatus(w, r, http.StatusOK, viewName, data)
}

// renderStatus executes viewName inside base.html. HTMX requests get only
// the "content" block.
func (h *Handlers) renderStatus(w http.ResponseWriter, r *http.Request, status int, viewName string, data any) {
	logger := log.FromContext(r.Context())

	tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFiles(
		filepath.Join(h.templateDir, "base.html"),
		filepath.Join(h.templateDir, viewName),
	)
	if err != nil {
		logger.Error("Template error", "view", viewName, log.FieldError, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, target, data); err != nil {
		logger.Error("Template execution error", "view", viewName, log.FieldError, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// writeJSON encodes v before writing the header, so an unencodable value
// becomes a 500 rather than an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var errUnsupportedField = errors.New("unsupported field value")

// readFields returns the named request fields from either a JSON object body
// or a form body. Missing fields are empty strings; JSON numbers keep their
// literal text.
func readFields(r *http.Request, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for _, name := range names {
			switch v := body[name].(type) {
			case nil:
				out[name] = ""
			case string:
				out[name] = v
			case json.Number:
				out[name] = v.String()
			default:
				return nil, fmt.Errorf("%w: %s", errUnsupportedField, name)
			}
		}
		return out, nil
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	for _, name := range names {
		out[name] = r.FormValue(name)
	}
	return out, nil
}

// CategoryStyle defines the visual style for a category.
type CategoryStyle struct {
	Icon  string
	Color string
}

var categoryStyles = map[string]CategoryStyle{
	"groceries":      {"🛒", "#34d399"},
	"utilities":      {"💡", "#fbbf24"},
	"transportation": {"🚌", "#a78bfa"},
	"food":           {"🍽️", "#60a5fa"},
	"shopping":       {"🛍️", "#f472b6"},
	"stationery":     {"✏️", "#f97316"},
	"medical":        {"💊", "#f87171"},
	"entertainment":  {"🎮", "#e879f9"},
	"housing":        {"🏠", "#818cf8"},
}

var defaultCategoryStyle = CategoryStyle{Icon: "📦", Color: "#94a3b8"}

func getCategoryStyle(category string) CategoryStyle {
	if s, ok := categoryStyles[strings.ToLower(strings.TrimSpace(category))]; ok {
		return s
	}
	return defaultCategoryStyle
}

func formatGroupTitle(date time.Time) string {
	dateStr := date.Format(models.DateLayout)
	now := time.Now()

	if dateStr == now.Format(models.DateLayout) {
		return "TODAY"
	}
	if dateStr == now.AddDate(0, 0, -1).Format(models.DateLayout) {
		return "YESTERDAY"
	}
	return strings.ToUpper(date.Format("Mon, 02 Jan '06"))
}
