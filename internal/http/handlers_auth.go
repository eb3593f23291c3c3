package http

import (
	"errors"
	"net/http"
	"strings"

	"penny/internal/auth"
	"penny/internal/core"
	"penny/internal/log"
)

// loginFailedMsg is deliberately identical for unknown emails and wrong
// passwords so the form does not leak which accounts exist.
const loginFailedMsg = "Invalid email or password"

type authPageData struct {
	Error string
	Email string
	Name  string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.resolveUser(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "login_page", authPageData{})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.resolveUser(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "signup_page", authPageData{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	email := strings.ToLower(sanitizeInput(r.Form.Get("email")))
	name := sanitizeInput(r.Form.Get("name"))
	password := r.Form.Get("password")

	data := authPageData{Email: email, Name: name}

	if err := core.ValidateEmail(email); err != nil {
		data.Error = "Please enter a valid email address"
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "signup_page", data)
		return
	}
	if err := core.ValidatePassword(password); err != nil {
		data.Error = "Password must be at least 6 characters"
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "signup_page", data)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Password hashing failed", log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	user, err := s.repo.CreateUser(r.Context(), email, name, hash)
	if errors.Is(err, core.ErrDuplicateEmail) {
		data.Error = "An account with this email already exists"
		w.WriteHeader(http.StatusConflict)
		s.render(w, r, "signup_page", data)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Signup failed", log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	s.startSession(w, r, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	email := strings.ToLower(sanitizeInput(r.Form.Get("email")))
	password := r.Form.Get("password")

	data := authPageData{Email: email}

	user, hash, err := s.repo.GetCredentials(r.Context(), email)
	if errors.Is(err, core.ErrNotFound) {
		data.Error = loginFailedMsg
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login_page", data)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Login lookup failed", log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	if !auth.CheckPassword(password, hash) {
		s.logger.WarnContext(r.Context(), "Failed login attempt",
			log.FieldEmail, email,
			log.FieldClientIP, clientIP(r))
		data.Error = loginFailedMsg
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login_page", data)
		return
	}

	s.startSession(w, r, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// startSession issues a session token, sets the cookie and lands the user on
// the dashboard.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user core.User) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Token issue failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	s.setSessionCookie(w, token)

	s.logger.InfoContext(r.Context(), "Session started",
		log.FieldUserID, user.ID,
		log.FieldEmail, user.Email)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
