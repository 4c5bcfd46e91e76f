package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/log"
	"spendwise/internal/storage"
)

// AuthViewModel holds data for the login and signup pages.
type AuthViewModel struct {
	Error    string
	Flash    string
	Username string
	Email    string
}

// Home renders the landing page, or sends signed-in users to their dashboard.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	if h.hasLiveSession(r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, "index.html", AuthViewModel{Flash: h.popFlash(w, r)})
}

// hasLiveSession reports whether the request carries a session that still
// belongs to an existing user. It does not renew the session.
func (h *Handlers) hasLiveSession(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	session, err := h.db.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return false
	}
	_, err = h.db.GetUserByID(r.Context(), session.UserID)
	return err == nil
}

// SignupForm renders the signup page.
func (h *Handlers) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "signup.html", AuthViewModel{})
}

// Signup handles the signup form submission.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)

	if err := r.ParseForm(); err != nil {
		h.renderStatus(w, r, http.StatusBadRequest, "signup.html", AuthViewModel{Error: "Invalid form submission"})
		return
	}

	vm := AuthViewModel{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
	}
	password := r.FormValue("password")

	if vm.Username == "" || vm.Email == "" || strings.TrimSpace(password) == "" {
		vm.Error = "Username, email and password are required"
		h.renderStatus(w, r, http.StatusBadRequest, "signup.html", vm)
		return
	}

	if msg, err := h.signupConflict(r, vm.Username, vm.Email); err != nil {
		logger.Error("Signup lookup failed", log.FieldError, err)
		vm.Error = "An error occurred. Please try again."
		h.renderStatus(w, r, http.StatusInternalServerError, "signup.html", vm)
		return
	} else if msg != "" {
		vm.Error = msg
		h.renderStatus(w, r, http.StatusConflict, "signup.html", vm)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", log.FieldError, err)
		vm.Error = "An error occurred. Please try again."
		h.renderStatus(w, r, http.StatusInternalServerError, "signup.html", vm)
		return
	}

	user, err := h.db.CreateUser(ctx, vm.Username, vm.Email, hash)
	if errors.Is(err, storage.ErrConflict) {
		// Lost a race with a concurrent signup; report it like the pre-check.
		vm.Error, _ = h.signupConflict(r, vm.Username, vm.Email)
		if vm.Error == "" {
			vm.Error = "Username or email already registered."
		}
		h.renderStatus(w, r, http.StatusConflict, "signup.html", vm)
		return
	}
	if err != nil {
		logger.Error("Failed to create user", log.FieldError, err)
		vm.Error = "An error occurred. Please try again."
		h.renderStatus(w, r, http.StatusInternalServerError, "signup.html", vm)
		return
	}

	logger.Info("User signed up", log.FieldUserID, user.ID)
	h.setFlash(w, flashSignedUp)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// signupConflict returns the message to show when the email or username is
// already taken, or "" when both are free.
func (h *Handlers) signupConflict(r *http.Request, username, email string) (string, error) {
	ctx := r.Context()
	if _, err := h.db.GetUserByEmail(ctx, email); err == nil {
		return "Email already registered.", nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if _, err := h.db.GetUserByUsername(ctx, username); err == nil {
		return "Username already taken.", nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	return "", nil
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, go straight to the dashboard
	if h.hasLiveSession(r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, "login.html", AuthViewModel{Flash: h.popFlash(w, r)})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)

	if err := r.ParseForm(); err != nil {
		h.renderStatus(w, r, http.StatusBadRequest, "login.html", AuthViewModel{Error: "Invalid form submission"})
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		h.renderStatus(w, r, http.StatusBadRequest, "login.html", AuthViewModel{Error: "Email and password are required", Email: email})
		return
	}

	user, err := h.db.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("Login lookup failed", log.FieldError, err)
		h.renderStatus(w, r, http.StatusInternalServerError, "login.html", AuthViewModel{Error: "An error occurred. Please try again."})
		return
	}
	var ok bool
	if err != nil {
		ok = auth.CheckUnknownUser(password)
	} else {
		ok = auth.CheckPassword(password, user.PasswordHash)
	}
	if !ok {
		logger.Info("Failed login attempt", log.FieldClientIP, log.ClientIP(r))
		h.renderStatus(w, r, http.StatusUnauthorized, "login.html", AuthViewModel{Error: "Invalid email or password", Email: email})
		return
	}

	if n, err := h.db.CleanExpiredSessions(ctx); err != nil {
		logger.Warn("Failed to purge expired sessions", log.FieldError, err)
	} else if n > 0 {
		logger.Debug("Purged expired sessions", "count", n)
	}

	// Generate session token
	token, err := auth.GenerateSessionToken()
	if err != nil {
		logger.Error("Failed to generate session token", log.FieldError, err)
		h.renderStatus(w, r, http.StatusInternalServerError, "login.html", AuthViewModel{Error: "An error occurred. Please try again."})
		return
	}

	if err := h.db.CreateSession(ctx, token, user.ID, time.Now().Add(h.idleTimeout)); err != nil {
		logger.Error("Failed to create session", log.FieldError, err)
		h.renderStatus(w, r, http.StatusInternalServerError, "login.html", AuthViewModel{Error: "An error occurred. Please try again."})
		return
	}

	h.setSessionCookie(w, token)
	logger.Info("User logged in", log.FieldUserID, user.ID)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.FromContext(r.Context()).Warn("Failed to delete session", log.FieldError, err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
