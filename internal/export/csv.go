package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"penny/internal/core"
)

// WriteSummaryCSV writes the per-category spend-vs-budget summary for one
// month. Amounts are converted into the given display currency.
func WriteSummaryCSV(w io.Writer, insights core.MonthlyInsights, currency string) error {
	currency = core.NormalizeCurrency(currency)
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Category", "Budget", "Spent", "Remaining", "Currency"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, cs := range insights.CategorySpending {
		remaining := core.Money{Cents: cs.Budget.Cents - cs.Spent.Cents}
		record := []string{
			cs.Name,
			displayAmount(cs.Budget, currency),
			displayAmount(cs.Spent, currency),
			displayAmount(remaining, currency),
			currency,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write category %q: %w", cs.Name, err)
		}
	}

	total := []string{
		"Total",
		displayAmount(insights.TotalBudget, currency),
		displayAmount(insights.TotalSpent, currency),
		displayAmount(insights.Remaining, currency),
		currency,
	}
	if err := cw.Write(total); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// WriteTransactionsCSV writes one month of transactions, converted into the
// given display currency.
func WriteTransactionsCSV(w io.Writer, transactions []core.Transaction, currency string) error {
	currency = core.NormalizeCurrency(currency)
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Date", "Category", "Amount", "Currency", "Recurring", "Notes"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range transactions {
		record := []string{
			t.Date.Format("2006-01-02"),
			t.CategoryName,
			displayAmount(t.Amount, currency),
			currency,
			strconv.FormatBool(t.IsRecurring),
			t.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write transaction %d: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// displayAmount renders a canonical amount as a plain decimal in the display
// currency, without symbols or separators so spreadsheets parse it as a number.
func displayAmount(m core.Money, currency string) string {
	value := core.FromCanonical(m.Amount(), currency)
	if currency == "JPY" {
		return strconv.FormatFloat(value, 'f', 0, 64)
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}
