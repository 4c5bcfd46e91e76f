package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spendwise/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("already exists")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases alive across queries and
	// serializes writers the way SQLite expects.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// CreateUser creates a new user. It returns ErrConflict when the username or
// email is already taken.
func (db *DB) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, email, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %s: %w", username, ErrConflict)
		}
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(ctx, id)
}

const userColumns = "id, username, email, password_hash, income, spending_limit, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Income, &u.SpendingLimit, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

// UpdateUserProfile sets the income and spending limit of a user.
func (db *DB) UpdateUserProfile(ctx context.Context, id int64, income, spendingLimit float64) error {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE users SET income = ?, spending_limit = ? WHERE id = ?",
		income, spendingLimit, id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user together with the user's expenses and
// categories. Sessions are left behind: the session gate discards them on
// next use and CleanExpiredSessions purges the rest. AUTOINCREMENT ids are
// never reused, so a stale session cannot resolve to a newer account.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM expenses WHERE user_id = ?",
		"DELETE FROM categories WHERE user_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateCategory adds a category for a user. Names are unique per user.
func (db *DB) CreateCategory(ctx context.Context, userID int64, name string) (*models.Category, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO categories (name, user_id) VALUES (?, ?)",
		name, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create category %q: %w", name, ErrConflict)
		}
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Category{ID: id, Name: name, UserID: userID, CreatedAt: time.Now()}, nil
}

// ListCategories returns a user's categories ordered by name.
func (db *DB) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, name, user_id, created_at FROM categories WHERE user_id = ? ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateExpense inserts a new expense and returns it with its ID set.
func (db *DB) CreateExpense(ctx context.Context, e models.Expense) (*models.Expense, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses (name, cost, category, date, user_id) VALUES (?, ?, ?, ?, ?)",
		e.Name, e.Cost, e.Category, e.Date.Format(models.DateLayout), e.UserID,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	e.ID = id
	return &e, nil
}

// ListExpenses retrieves all expenses of a user, newest first.
func (db *DB) ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT id, name, cost, category, date, user_id FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC",
		userID,
	)
}

// ListExpensesByDate retrieves a user's expenses on a single day.
func (db *DB) ListExpensesByDate(ctx context.Context, userID int64, date time.Time) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT id, name, cost, category, date, user_id FROM expenses WHERE user_id = ? AND date = ? ORDER BY id",
		userID, date.Format(models.DateLayout),
	)
}

// ListExpensesBetween retrieves a user's expenses with from <= date < to.
func (db *DB) ListExpensesBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT id, name, cost, category, date, user_id FROM expenses WHERE user_id = ? AND date >= ? AND date < ? ORDER BY date, id",
		userID, from.Format(models.DateLayout), to.Format(models.DateLayout),
	)
}

func (db *DB) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		var date string
		if err := rows.Scan(&e.ID, &e.Name, &e.Cost, &e.Category, &date, &e.UserID); err != nil {
			return nil, err
		}
		d, err := time.Parse(models.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("expense %d has malformed date %q: %w", e.ID, date, err)
		}
		e.Date = d
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, last_activity, expires_at) VALUES (?, ?, ?, ?)",
		token, userID, time.Now().Unix(), expiresAt.Unix(),
	)
	return err
}

// GetSession returns an unexpired session by token. The referenced user is
// not checked; callers resolve it separately so a dangling session can be
// told apart from a missing one.
func (db *DB) GetSession(ctx context.Context, token string) (*models.Session, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT token, user_id, last_activity, expires_at FROM sessions WHERE token = ? AND expires_at > ?",
		token, time.Now().Unix(),
	)

	var s models.Session
	var lastActivity, expiresAt int64
	if err := row.Scan(&s.Token, &s.UserID, &lastActivity, &expiresAt); err != nil {
		return nil, notFound(err)
	}
	s.LastActivity = time.Unix(lastActivity, 0)
	s.ExpiresAt = time.Unix(expiresAt, 0)
	return &s, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		time.Now().Unix(), newExpiresAt.Unix(), token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and reports how many
// were deleted.
func (db *DB) CleanExpiredSessions(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
