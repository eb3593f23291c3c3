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

const dateLayout = "2006-01-02"

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Notes = strings.TrimSpace(t.Notes)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	// Ownership check keeps one user from booking spend into another
	// user's category.
	if _, err := r.GetCategory(ctx, t.UserID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, category_id, amount_cents, date, is_recurring, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Amount.Cents, t.Date.Format(dateLayout),
		t.IsRecurring, t.Notes, now, now)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	r.logger.InfoContext(ctx, "Transaction recorded",
		log.FieldUserID, t.UserID,
		log.FieldTxID, t.ID,
		log.FieldCategoryID, t.CategoryID,
		log.FieldAmountCents, t.Amount.Cents)

	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID string, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT t.id, t.user_id, t.category_id, c.name, t.amount_cents, t.date, t.is_recurring, t.notes, t.created_at, t.updated_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.id = ? AND t.user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, err
}

// ListTransactionsByMonth returns the user's transactions for one month
// ("2006-01" key), newest date first.
func (r *SQLiteRepository) ListTransactionsByMonth(ctx context.Context, userID, month string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.category_id, c.name, t.amount_cents, t.date, t.is_recurring, t.notes, t.created_at, t.updated_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND substr(t.date, 1, 7) = ?
		ORDER BY t.date DESC, t.id DESC`, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	t.Notes = strings.TrimSpace(t.Notes)
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := r.GetCategory(ctx, t.UserID, t.CategoryID); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			category_id = ?, amount_cents = ?, date = ?, is_recurring = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		t.CategoryID, t.Amount.Cents, t.Date.Format(dateLayout), t.IsRecurring,
		t.Notes, time.Now().UTC(), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, userID,
		log.FieldTxID, id)

	return nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var date string
	err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.CategoryName, &t.Amount.Cents,
		&date, &t.IsRecurring, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	return t, nil
}
