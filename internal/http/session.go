package http

import (
	"context"
	"net/http"

	"penny/internal/auth"
	"penny/internal/core"
	"penny/internal/log"
)

// sessionCookie is the name of the signed session token cookie.
const sessionCookie = "auth_token"

type contextKey string

const userContextKey contextKey = "current_user"

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenDuration.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireAuth redirects to the login page when no session cookie is present.
// It checks presence only; the full signature check happens when the handler
// resolves the user, so an expired cookie costs one redirect, not a loop.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookie); err != nil || c.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user, err := s.resolveUser(r)
		if err != nil {
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	})
}

// resolveUser verifies the session token and loads the account it names.
func (s *Server) resolveUser(r *http.Request) (core.User, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return core.User{}, auth.ErrInvalidToken
	}

	claims, err := s.tokens.Verify(c.Value)
	if err != nil {
		s.logger.DebugContext(r.Context(), "Session token rejected", log.FieldError, err)
		return core.User{}, err
	}

	user, err := s.repo.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}

// currentUser returns the account stored by requireAuth.
func currentUser(r *http.Request) core.User {
	user, _ := r.Context().Value(userContextKey).(core.User)
	return user
}
