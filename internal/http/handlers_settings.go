package http

import (
	"errors"
	"net/http"

	"penny/internal/auth"
	"penny/internal/core"
	"penny/internal/log"
	"penny/internal/storage"
)

type settingsPageData struct {
	User       core.User
	Currencies []string
	Themes     []string
	Error      string
	Saved      bool
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	s.renderSettingsPage(w, r, currentUser(r), "", false)
}

func (s *Server) renderSettingsPage(w http.ResponseWriter, r *http.Request, user core.User, errMsg string, saved bool) {
	s.render(w, r, "settings_page", settingsPageData{
		User:       user,
		Currencies: core.SupportedCurrencies,
		Themes:     core.ValidThemes,
		Error:      errMsg,
		Saved:      saved,
	})
}

// handleUpdateSettings applies a partial profile update. Fields left out of
// the form keep their stored values.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	var update storage.SettingsUpdate

	if r.Form.Has("name") {
		name := sanitizeInput(r.Form.Get("name"))
		update.Name = &name
	}
	if r.Form.Has("currency") {
		currency := core.NormalizeCurrency(r.Form.Get("currency"))
		update.Currency = &currency
	}
	if r.Form.Has("theme") {
		theme := r.Form.Get("theme")
		if !core.ValidateTheme(theme) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.renderSettingsPage(w, r, user, "Unknown theme", false)
			return
		}
		update.Theme = &theme
	}

	updated, err := s.repo.UpdateUserSettings(r.Context(), user.ID, update)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to update settings",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not save settings")
		return
	}

	s.logger.InfoContext(r.Context(), "Settings updated",
		log.FieldUserID, user.ID,
		log.FieldCurrency, updated.Currency)

	s.renderSettingsPage(w, r, updated, "", true)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	current := r.Form.Get("current_password")
	next := r.Form.Get("new_password")

	if err := core.ValidatePassword(next); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderSettingsPage(w, r, user, "New password must be at least 6 characters", false)
		return
	}

	hash, err := s.repo.GetPasswordHash(r.Context(), user.ID)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if !auth.CheckPassword(current, hash) {
		s.logger.WarnContext(r.Context(), "Password change with wrong current password",
			log.FieldUserID, user.ID,
			log.FieldClientIP, clientIP(r))
		w.WriteHeader(http.StatusUnauthorized)
		s.renderSettingsPage(w, r, user, "Current password is incorrect", false)
		return
	}

	newHash, err := auth.HashPassword(next)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if err := s.repo.UpdatePassword(r.Context(), user.ID, newHash); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to update password",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not change password")
		return
	}

	s.logger.InfoContext(r.Context(), "Password changed", log.FieldUserID, user.ID)
	s.renderSettingsPage(w, r, user, "", true)
}

// handleDeleteAccount removes the account and all of its data, then ends the
// session. The confirmation field must spell out the account email.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if sanitizeInput(r.Form.Get("confirm_email")) != user.Email {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderSettingsPage(w, r, user, "Type your email address to confirm deletion", false)
		return
	}

	if err := s.repo.DeleteUser(r.Context(), user.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to delete account",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not delete account")
		return
	}

	s.invalidateInsights(user.ID, "")
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/signup", http.StatusSeeOther)
}
