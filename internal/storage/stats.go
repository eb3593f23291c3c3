package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"penny/internal/core"
	"penny/internal/log"
)

// RefreshMonthlyStats recomputes the cached totals for one user and month
// from the transactions table and upserts the monthly_stats row.
func (r *SQLiteRepository) RefreshMonthlyStats(ctx context.Context, userID, month string) error {
	if _, err := core.ParseMonthKey(month); err != nil {
		return err
	}

	var spent, budget int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT SUM(amount_cents) FROM transactions
		                 WHERE user_id = ? AND substr(date, 1, 7) = ?), 0),
		       COALESCE((SELECT SUM(monthly_budget_cents) FROM categories
		                 WHERE user_id = ?), 0)`,
		userID, month, userID).Scan(&spent, &budget)
	if err != nil {
		return fmt.Errorf("compute monthly stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO monthly_stats (user_id, month, total_spent_cents, total_budget_cents, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month) DO UPDATE SET
			total_spent_cents = excluded.total_spent_cents,
			total_budget_cents = excluded.total_budget_cents,
			updated_at = excluded.updated_at`,
		userID, month, spent, budget, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert monthly stats: %w", err)
	}

	r.logger.DebugContext(ctx, "Monthly stats refreshed",
		log.FieldUserID, userID,
		log.FieldMonth, month,
		log.FieldAmountCents, spent)

	return nil
}

// GetMonthlyStat reads the cached totals for one user and month.
func (r *SQLiteRepository) GetMonthlyStat(ctx context.Context, userID, month string) (core.MonthlySpend, error) {
	var s core.MonthlySpend
	s.Month = month
	err := r.db.QueryRowContext(ctx, `
		SELECT total_spent_cents, total_budget_cents
		FROM monthly_stats
		WHERE user_id = ? AND month = ?`, userID, month).
		Scan(&s.Spent.Cents, &s.Budget.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlySpend{}, core.ErrNotFound
	}
	if err != nil {
		return core.MonthlySpend{}, fmt.Errorf("scan monthly stat: %w", err)
	}
	return s, nil
}

// ActiveMonths lists the distinct months a user has transactions in,
// newest first. The stats worker refreshes each one during its sweep.
func (r *SQLiteRepository) ActiveMonths(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT substr(date, 1, 7) AS month
		FROM transactions
		WHERE user_id = ?
		ORDER BY month DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("active months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}
