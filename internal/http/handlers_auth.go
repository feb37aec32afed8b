package http

import (
	"errors"
	"fmt"
	"net/http"

	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/services"
)

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok, _ := s.currentUser(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", page{Title: "Anmelden"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Ungültige Anfrage", "Das Formular konnte nicht gelesen werden.")
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)

	u, err := s.users.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			s.appMetrics.loginFailures.Add(1)
			logger.WarnContext(r.Context(), "Login failed",
				log.FieldOperation, log.OpLogin, log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
			s.render(w, r, http.StatusUnauthorized, "login", page{
				Title:   "Anmelden",
				Email:   email,
				Message: "E-Mail oder Passwort ist falsch.",
			})
			return
		}
		logger.ErrorContext(r.Context(), "Login error", log.FieldOperation, log.OpLogin, log.FieldError, err)
		s.renderError(w, r, http.StatusInternalServerError, "Interner Fehler", "Bitte versuche es später erneut.")
		return
	}

	if err := s.startSession(w, u); err != nil {
		logger.ErrorContext(r.Context(), "Failed to issue session", log.FieldUserID, u.ID, log.FieldError, err)
		s.renderError(w, r, http.StatusInternalServerError, "Interner Fehler", "Bitte versuche es später erneut.")
		return
	}
	// Role may have changed through the bootstrap elevation.
	s.principals.Invalidate(u.ID)
	logger.InfoContext(r.Context(), "User logged in", log.FieldUserID, u.ID, log.FieldOperation, log.OpLogin)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", page{Title: "Registrieren", MinPasswordLength: services.MinPasswordLength})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Ungültige Anfrage", "Das Formular konnte nicht gelesen werden.")
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)

	u, err := s.users.Register(r.Context(), email, password)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, services.ErrInvalidEmail):
			msg = "Bitte eine gültige E-Mail-Adresse angeben."
		case errors.Is(err, services.ErrWeakPassword):
			msg = "Das Passwort ist zu kurz."
		case errors.Is(err, services.ErrPasswordTooLong):
			msg = fmt.Sprintf("Das Passwort darf höchstens %d Bytes lang sein.", services.MaxPasswordBytes)
		case errors.Is(err, services.ErrEmailTaken):
			msg = "Diese E-Mail-Adresse ist bereits registriert."
		default:
			logger.ErrorContext(r.Context(), "Registration error", log.FieldOperation, log.OpRegister, log.FieldError, err)
			s.renderError(w, r, http.StatusInternalServerError, "Interner Fehler", "Bitte versuche es später erneut.")
			return
		}
		s.render(w, r, http.StatusUnprocessableEntity, "register", page{
			Title:             "Registrieren",
			Email:             email,
			Message:           msg,
			MinPasswordLength: services.MinPasswordLength,
		})
		return
	}

	s.appMetrics.registrations.Add(1)
	if err := s.startSession(w, u); err != nil {
		logger.ErrorContext(r.Context(), "Failed to issue session", log.FieldUserID, u.ID, log.FieldError, err)
		s.renderError(w, r, http.StatusInternalServerError, "Interner Fehler", "Bitte versuche es später erneut.")
		return
	}
	s.setFlash(w, "success", "Willkommen! Dein Konto wurde angelegt.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.endSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

