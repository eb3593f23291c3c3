package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"penny/internal/core"
	"penny/internal/log"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user and seeds the default categories in one
// transaction. The generated user ID is returned on the user.
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, name, passwordHash string) (core.User, error) {
	user := core.User{
		ID:       uuid.NewString(),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Name:     strings.TrimSpace(name),
		Currency: core.CanonicalCurrency,
		Theme:    core.DefaultTheme,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.User{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, name, currency, theme, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.Currency, user.Theme, passwordHash, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrDuplicateEmail
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}

	for _, seed := range core.DefaultCategories {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO categories (user_id, name, is_default, monthly_budget_cents, icon, created_at, updated_at)
			VALUES (?, ?, 1, 0, ?, ?, ?)`,
			user.ID, seed.Name, seed.Icon, now, now)
		if err != nil {
			return core.User{}, fmt.Errorf("seed category %q: %w", seed.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.User{}, fmt.Errorf("commit transaction: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now

	r.logger.InfoContext(ctx, "User created",
		log.FieldUserID, user.ID,
		log.FieldEmail, user.Email)

	return user, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, name, currency, theme, created_at, updated_at
		FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, name, currency, theme, created_at, updated_at
		FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Currency, &u.Theme, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// GetCredentials returns the user and stored password hash for a login check.
func (r *SQLiteRepository) GetCredentials(ctx context.Context, email string) (core.User, string, error) {
	var u core.User
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, currency, theme, password_hash, created_at, updated_at
		FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Email, &u.Name, &u.Currency, &u.Theme, &hash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", core.ErrNotFound
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("scan credentials: %w", err)
	}
	return u, hash, nil
}

func (r *SQLiteRepository) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scan password hash: %w", err)
	}
	return hash, nil
}

// SettingsUpdate carries the optional fields of a settings change. Nil fields
// keep their stored value.
type SettingsUpdate struct {
	Name     *string
	Currency *string
	Theme    *string
}

func (r *SQLiteRepository) UpdateUserSettings(ctx context.Context, userID string, update SettingsUpdate) (core.User, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			name = COALESCE(?, name),
			currency = COALESCE(?, currency),
			theme = COALESCE(?, theme),
			updated_at = ?
		WHERE id = ?`,
		update.Name, update.Currency, update.Theme, time.Now().UTC(), userID)
	if err != nil {
		return core.User{}, fmt.Errorf("update settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.User{}, core.ErrNotFound
	}
	return r.GetUserByID(ctx, userID)
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and every row that belongs to them in a single
// transaction, so a failure partway through leaves the account intact.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM transactions WHERE user_id = ?`,
		`DELETE FROM monthly_stats WHERE user_id = ?`,
		`DELETE FROM categories WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return fmt.Errorf("delete user data: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "User deleted", log.FieldUserID, userID)
	return nil
}

// ListUserIDs returns all user IDs, oldest first. The stats worker uses it
// for its periodic sweep.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
