package http

import (
	"errors"
	"net/http"

	"penny/internal/core"
	"penny/internal/log"
)

type budgetPageData struct {
	User        core.User
	Categories  []core.Category
	TotalBudget core.Money
	Error       string
}

func (s *Server) handleBudgetPage(w http.ResponseWriter, r *http.Request) {
	s.renderBudgetPage(w, r, "")
}

func (s *Server) renderBudgetPage(w http.ResponseWriter, r *http.Request, errMsg string) {
	user := currentUser(r)

	categories, err := s.repo.ListCategories(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list categories",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not load categories")
		return
	}

	data := budgetPageData{User: user, Categories: categories, Error: errMsg}
	for _, c := range categories {
		data.TotalBudget.Cents += c.MonthlyBudget.Cents
	}

	s.render(w, r, "budget_page", data)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	category := core.Category{
		UserID: user.ID,
		Name:   sanitizeInput(r.Form.Get("name")),
		Icon:   sanitizeInput(r.Form.Get("icon")),
	}

	// Budgets are entered in the user's display currency.
	if v := r.Form.Get("budget"); v != "" {
		cents, err := core.ParseBudgetToCents(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.renderBudgetPage(w, r, "Invalid budget amount")
			return
		}
		category.MonthlyBudget.Cents = core.CentsFromFloat(
			core.ToCanonical(float64(cents)/100, user.Currency))
	}

	_, err := s.repo.CreateCategory(r.Context(), category)
	switch {
	case errors.Is(err, core.ErrDuplicateCategory):
		w.WriteHeader(http.StatusConflict)
		s.renderBudgetPage(w, r, "A category with this name already exists")
		return
	case errors.Is(err, core.ErrEmptyName):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderBudgetPage(w, r, "Category name is required")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to create category",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not create category")
		return
	}

	s.invalidateInsights(user.ID, "")
	http.Redirect(w, r, "/budget", http.StatusSeeOther)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	var budget core.Money
	if v := r.Form.Get("budget"); v != "" {
		cents, err := core.ParseBudgetToCents(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.renderBudgetPage(w, r, "Invalid budget amount")
			return
		}
		budget.Cents = core.CentsFromFloat(
			core.ToCanonical(float64(cents)/100, user.Currency))
	}

	if err := s.repo.UpdateCategoryBudget(r.Context(), user.ID, id, budget); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to update budget",
			log.FieldUserID, user.ID,
			log.FieldCategoryID, id,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not update budget")
		return
	}

	// A budget change shifts every month's spend-vs-budget picture.
	s.invalidateInsights(user.ID, "")
	s.requestStatsRefresh(r.Context(), user.ID, parseMonth(r))

	http.Redirect(w, r, "/budget", http.StatusSeeOther)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	err = s.repo.RenameCategory(r.Context(), user.ID, id, sanitizeInput(r.Form.Get("name")))
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, core.ErrCategoryDefault):
		w.WriteHeader(http.StatusConflict)
		s.renderBudgetPage(w, r, "Default categories cannot be renamed")
		return
	case errors.Is(err, core.ErrDuplicateCategory):
		w.WriteHeader(http.StatusConflict)
		s.renderBudgetPage(w, r, "A category with this name already exists")
		return
	case errors.Is(err, core.ErrEmptyName):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderBudgetPage(w, r, "Category name is required")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to rename category",
			log.FieldUserID, user.ID,
			log.FieldCategoryID, id,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not rename category")
		return
	}

	s.invalidateInsights(user.ID, "")
	http.Redirect(w, r, "/budget", http.StatusSeeOther)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	err = s.repo.DeleteCategory(r.Context(), user.ID, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, core.ErrCategoryDefault):
		w.WriteHeader(http.StatusConflict)
		s.renderBudgetPage(w, r, "Default categories cannot be deleted")
		return
	case errors.Is(err, core.ErrCategoryInUse):
		w.WriteHeader(http.StatusConflict)
		s.renderBudgetPage(w, r, "This category still has transactions. Delete or move them first.")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to delete category",
			log.FieldUserID, user.ID,
			log.FieldCategoryID, id,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not delete category")
		return
	}

	s.invalidateInsights(user.ID, "")
	http.Redirect(w, r, "/budget", http.StatusSeeOther)
}
