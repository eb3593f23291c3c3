package http

import (
	"net/http"

	"penny/internal/export"
	"penny/internal/log"
)

// handleExportSummary streams the month's per-category summary as CSV, in
// the user's display currency.
func (s *Server) handleExportSummary(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	month := parseMonth(r)

	insights, err := s.loadInsights(r.Context(), user.ID, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load insights for export",
			log.FieldUserID, user.ID,
			log.FieldMonth, month,
			log.FieldError, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="summary-`+month+`.csv"`)

	if err := export.WriteSummaryCSV(w, insights, user.Currency); err != nil {
		s.logger.ErrorContext(r.Context(), "Summary CSV write failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
	}
}

// handleExportTransactions streams one month of transactions as CSV.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	month := parseMonth(r)

	transactions, err := s.repo.ListTransactionsByMonth(r.Context(), user.ID, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list transactions for export",
			log.FieldUserID, user.ID,
			log.FieldMonth, month,
			log.FieldError, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions-`+month+`.csv"`)

	if err := export.WriteTransactionsCSV(w, transactions, user.Currency); err != nil {
		s.logger.ErrorContext(r.Context(), "Transactions CSV write failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
	}
}
