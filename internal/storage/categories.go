package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"penny/internal/core"
	"penny/internal/log"
)

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, is_default, monthly_budget_cents, icon, created_at, updated_at
		FROM categories
		WHERE user_id = ?
		ORDER BY is_default DESC, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID string, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, is_default, monthly_budget_cents, icon, created_at, updated_at
		FROM categories
		WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	return c, err
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if c.Icon == "" {
		c.Icon = "circle"
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, is_default, monthly_budget_cents, icon, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.MonthlyBudget.Cents, c.Icon, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, core.ErrDuplicateCategory
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	c.IsDefault = false
	c.CreatedAt = now
	c.UpdatedAt = now

	r.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, c.UserID,
		log.FieldCategoryID, c.ID,
		log.FieldCategory, c.Name)

	return c, nil
}

// UpdateCategoryBudget sets the monthly budget of one owned category.
func (r *SQLiteRepository) UpdateCategoryBudget(ctx context.Context, userID string, id int64, budget core.Money) error {
	if budget.Cents < 0 {
		return core.ErrInvalidAmount
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET monthly_budget_cents = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		budget.Cents, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// RenameCategory renames a custom category. Default categories keep their names.
func (r *SQLiteRepository) RenameCategory(ctx context.Context, userID string, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}

	cat, err := r.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}
	if cat.IsDefault {
		return core.ErrCategoryDefault
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		name, time.Now().UTC(), id, userID)
	if isUniqueViolation(err) {
		return core.ErrDuplicateCategory
	}
	if err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	return nil
}

// DeleteCategory removes a custom category. Default categories and categories
// with recorded transactions are refused.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID string, id int64) error {
	cat, err := r.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}
	if cat.IsDefault {
		return core.ErrCategoryDefault
	}

	var count int64
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE category_id = ? AND user_id = ?`,
		id, userID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count category transactions: %w", err)
	}
	if count > 0 {
		return core.ErrCategoryInUse
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Category deleted",
		log.FieldUserID, userID,
		log.FieldCategoryID, id)

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.IsDefault, &c.MonthlyBudget.Cents,
		&c.Icon, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return core.Category{}, err
	}
	return c, nil
}
