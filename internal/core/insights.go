package core

import (
	"fmt"
	"time"
)

// CategorySpend pairs a category's budget with its spend for one month.
type CategorySpend struct {
	CategoryID int64
	Name       string
	Icon       string
	Budget     Money
	Spent      Money
}

// MonthlyInsights is the aggregated spend-vs-budget picture for one month.
// Remaining may be negative when the month is over budget, and
// Recurring+NonRecurring always equals TotalSpent.
type MonthlyInsights struct {
	Month            string // "YYYY-MM"
	TotalBudget      Money
	TotalSpent       Money
	Remaining        Money
	CategorySpending []CategorySpend
	Recurring        Money
	NonRecurring     Money
}

// MonthlySpend is one point of the trailing spend history.
type MonthlySpend struct {
	Month  string // "YYYY-MM"
	Spent  Money
	Budget Money
}

// MonthKey formats a time as the "YYYY-MM" grouping key used throughout
// storage and reporting.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParseMonthKey parses a "YYYY-MM" key, rejecting anything else.
func ParseMonthKey(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t, nil
}

// PrevMonthKey returns the key of the month before the given key.
func PrevMonthKey(key string) (string, error) {
	t, err := ParseMonthKey(key)
	if err != nil {
		return "", err
	}
	return MonthKey(t.AddDate(0, -1, 0)), nil
}

// MonthLabel renders a month key as "January 2026" for page headings.
func MonthLabel(key string) string {
	t, err := ParseMonthKey(key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}
