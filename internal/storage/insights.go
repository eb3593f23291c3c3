package storage

import (
	"context"
	"fmt"

	"penny/internal/core"
)

// MonthlyInsights aggregates per-category spend against budgets for one month.
// Categories with no spend still appear with a zero total.
func (r *SQLiteRepository) MonthlyInsights(ctx context.Context, userID, month string) (core.MonthlyInsights, error) {
	insights := core.MonthlyInsights{Month: month}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.icon, c.monthly_budget_cents,
		       COALESCE(SUM(t.amount_cents), 0) AS spent_cents
		FROM categories c
		LEFT JOIN transactions t
		  ON t.category_id = c.id
		 AND t.user_id = c.user_id
		 AND substr(t.date, 1, 7) = ?
		WHERE c.user_id = ?
		GROUP BY c.id, c.name, c.icon, c.monthly_budget_cents
		ORDER BY spent_cents DESC, c.name`, month, userID)
	if err != nil {
		return insights, fmt.Errorf("category spending: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cs core.CategorySpend
		if err := rows.Scan(&cs.CategoryID, &cs.Name, &cs.Icon, &cs.Budget.Cents, &cs.Spent.Cents); err != nil {
			return insights, fmt.Errorf("scan category spend: %w", err)
		}
		insights.TotalBudget.Cents += cs.Budget.Cents
		insights.TotalSpent.Cents += cs.Spent.Cents
		insights.CategorySpending = append(insights.CategorySpending, cs)
	}
	if err := rows.Err(); err != nil {
		return insights, fmt.Errorf("category spending rows: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN is_recurring THEN amount_cents ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_recurring THEN 0 ELSE amount_cents END), 0)
		FROM transactions
		WHERE user_id = ? AND substr(date, 1, 7) = ?`, userID, month).
		Scan(&insights.Recurring.Cents, &insights.NonRecurring.Cents)
	if err != nil {
		return insights, fmt.Errorf("recurring split: %w", err)
	}

	insights.Remaining.Cents = insights.TotalBudget.Cents - insights.TotalSpent.Cents
	return insights, nil
}

// MonthlyHistory returns spend and budget totals for the trailing months
// months ending at the given key, oldest first. Months without transactions
// come back zero-filled.
func (r *SQLiteRepository) MonthlyHistory(ctx context.Context, userID, endMonth string, months int) ([]core.MonthlySpend, error) {
	end, err := core.ParseMonthKey(endMonth)
	if err != nil {
		return nil, err
	}

	var totalBudget int64
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(monthly_budget_cents), 0) FROM categories WHERE user_id = ?`,
		userID).Scan(&totalBudget)
	if err != nil {
		return nil, fmt.Errorf("total budget: %w", err)
	}

	start := end.AddDate(0, -(months - 1), 0)
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month, SUM(amount_cents)
		FROM transactions
		WHERE user_id = ? AND substr(date, 1, 7) >= ? AND substr(date, 1, 7) <= ?
		GROUP BY month`, userID, core.MonthKey(start), endMonth)
	if err != nil {
		return nil, fmt.Errorf("monthly history: %w", err)
	}
	defer rows.Close()

	spentByMonth := make(map[string]int64, months)
	for rows.Next() {
		var month string
		var spent int64
		if err := rows.Scan(&month, &spent); err != nil {
			return nil, fmt.Errorf("scan monthly spend: %w", err)
		}
		spentByMonth[month] = spent
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monthly history rows: %w", err)
	}

	history := make([]core.MonthlySpend, 0, months)
	for i := 0; i < months; i++ {
		key := core.MonthKey(start.AddDate(0, i, 0))
		history = append(history, core.MonthlySpend{
			Month:  key,
			Spent:  core.Money{Cents: spentByMonth[key]},
			Budget: core.Money{Cents: totalBudget},
		})
	}
	return history, nil
}
