package http

import (
	"errors"
	"net/http"
	"time"

	"penny/internal/core"
	"penny/internal/log"
)

type transactionsPageData struct {
	User         core.User
	Month        string
	MonthName    string
	PrevMonth    string
	NextMonth    string
	Transactions []core.Transaction
	Total        core.Money
	Error        string
}

func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	month := parseMonth(r)

	transactions, err := s.repo.ListTransactionsByMonth(r.Context(), user.ID, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list transactions",
			log.FieldUserID, user.ID,
			log.FieldMonth, month,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not load transactions")
		return
	}

	data := transactionsPageData{
		User:         user,
		Month:        month,
		MonthName:    core.MonthLabel(month),
		Transactions: transactions,
	}
	data.PrevMonth, _ = core.PrevMonthKey(month)
	if t, err := core.ParseMonthKey(month); err == nil {
		if candidate := core.MonthKey(t.AddDate(0, 1, 0)); candidate <= core.MonthKey(time.Now()) {
			data.NextMonth = candidate
		}
	}
	for _, t := range transactions {
		data.Total.Cents += t.Amount.Cents
	}

	s.render(w, r, "transactions_page", data)
}

type transactionFormData struct {
	User        core.User
	Categories  []core.Category
	Transaction core.Transaction
	IsEdit      bool
	Today       string
	Error       string
}

// handleTransactionForm serves both the new-transaction and edit forms.
func (s *Server) handleTransactionForm(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	categories, err := s.repo.ListCategories(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list categories",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not load categories")
		return
	}

	data := transactionFormData{
		User:       user,
		Categories: categories,
		Today:      time.Now().Format("2006-01-02"),
	}

	if r.PathValue("id") != "" {
		id, err := pathID(r)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		tx, err := s.repo.GetTransaction(r.Context(), user.ID, id)
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.renderError(w, http.StatusInternalServerError, "Could not load transaction")
			return
		}
		data.Transaction = tx
		data.IsEdit = true
	}

	s.render(w, r, "transaction_form", data)
}

// parseTransactionForm reads the shared form fields. Amounts are entered in
// the user's display currency and stored canonically.
func (s *Server) parseTransactionForm(r *http.Request, user core.User) (core.Transaction, string) {
	t := core.Transaction{UserID: user.ID}

	id, err := pathID(r)
	if err == nil {
		t.ID = id
	}

	catID, err := parseInt64(r.Form.Get("category_id"))
	if err != nil {
		return t, "Please choose a category"
	}
	t.CategoryID = catID

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		return t, "Amount must be a positive number"
	}
	t.Amount.Cents = core.CentsFromFloat(
		core.ToCanonical(float64(cents)/100, user.Currency))

	date, err := parseDate(r.Form.Get("date"))
	if err != nil {
		return t, "Please enter a valid date"
	}
	t.Date = date

	t.IsRecurring = r.Form.Get("is_recurring") != ""
	t.Notes = sanitizeInput(r.Form.Get("notes"))
	if len(t.Notes) > core.MaxNotesLength {
		return t, "Notes are limited to 500 characters"
	}

	return t, ""
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	t, errMsg := s.parseTransactionForm(r, user)
	if errMsg != "" {
		s.renderError(w, http.StatusUnprocessableEntity, errMsg)
		return
	}

	created, err := s.repo.CreateTransaction(r.Context(), t)
	if errors.Is(err, core.ErrNotFound) {
		s.renderError(w, http.StatusUnprocessableEntity, "Unknown category")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to create transaction",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not save transaction")
		return
	}

	month := core.MonthKey(created.Date)
	s.invalidateInsights(user.ID, month)
	s.requestStatsRefresh(r.Context(), user.ID, month)

	http.Redirect(w, r, "/transactions?month="+month, http.StatusSeeOther)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	t, errMsg := s.parseTransactionForm(r, user)
	if errMsg != "" {
		s.renderError(w, http.StatusUnprocessableEntity, errMsg)
		return
	}
	if t.ID == 0 {
		http.NotFound(w, r)
		return
	}

	// The transaction may have moved between months; invalidate both.
	previous, err := s.repo.GetTransaction(r.Context(), user.ID, t.ID)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, "Could not load transaction")
		return
	}

	if err := s.repo.UpdateTransaction(r.Context(), t); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to update transaction",
			log.FieldUserID, user.ID,
			log.FieldTxID, t.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not save transaction")
		return
	}

	oldMonth := core.MonthKey(previous.Date)
	newMonth := core.MonthKey(t.Date)
	s.invalidateInsights(user.ID, oldMonth)
	s.requestStatsRefresh(r.Context(), user.ID, oldMonth)
	if newMonth != oldMonth {
		s.invalidateInsights(user.ID, newMonth)
		s.requestStatsRefresh(r.Context(), user.ID, newMonth)
	}

	http.Redirect(w, r, "/transactions?month="+newMonth, http.StatusSeeOther)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	tx, err := s.repo.GetTransaction(r.Context(), user.ID, id)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, "Could not load transaction")
		return
	}

	if err := s.repo.DeleteTransaction(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to delete transaction",
			log.FieldUserID, user.ID,
			log.FieldTxID, id,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not delete transaction")
		return
	}

	month := core.MonthKey(tx.Date)
	s.invalidateInsights(user.ID, month)
	s.requestStatsRefresh(r.Context(), user.ID, month)

	http.Redirect(w, r, "/transactions?month="+month, http.StatusSeeOther)
}
