package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"haushaltsbuch/internal/auth"
	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/middleware/security"
)

const sessionCookie = "hb_session"

type sessionConfig struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

type principalKey struct{}

func withPrincipal(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

// principal returns the authenticated user. Only handlers behind
// requireUser may call it.
func principal(ctx context.Context) core.User {
	u, _ := ctx.Value(principalKey{}).(core.User)
	return u
}

func (s *Server) startSession(w http.ResponseWriter, u core.User) error {
	token, err := auth.GenerateToken(u.ID, s.sessions.secret, s.sessions.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) endSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser resolves the session cookie to a user. ok is false for
// missing, expired or forged tokens and for deleted accounts.
func (s *Server) currentUser(r *http.Request) (core.User, bool, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return core.User{}, false, nil
	}
	userID, err := auth.ParseToken(c.Value, s.sessions.secret)
	if err != nil {
		return core.User{}, false, nil
	}
	u, err := s.principals.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, false, nil
		}
		return core.User{}, false, err
	}
	return u, true, nil
}

// requireUser redirects anonymous visitors to the login form. Authenticated
// pages carry ledger data and are never cached.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok, err := s.currentUser(r)
		if err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).ErrorContext(r.Context(),
				"Failed to load session user", log.FieldError, err)
			s.renderError(w, r, http.StatusInternalServerError, "Interner Fehler", "Bitte versuche es später erneut.")
			return
		}
		if !ok {
			s.endSession(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := withPrincipal(r.Context(), u)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, u.ID))
		next(w, r.WithContext(ctx))
	}))
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.Handler {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		if !principal(r.Context()).IsAdmin {
			s.renderError(w, r, http.StatusForbidden, "Kein Zugriff", "Dieser Bereich ist Administratoren vorbehalten.")
			return
		}
		next(w, r)
	})
}
