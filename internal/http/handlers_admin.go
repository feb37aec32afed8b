package http

import (
	"errors"
	"net/http"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/services"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.storageFailure(w, r, log.OpList, err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_users", page{Title: "Benutzer", Users: users})
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	target, ok := parsePathID(r, "id")
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Ungültige Anfrage", "Das Formular konnte nicht gelesen werden.")
		return
	}
	makeAdmin := parseBool(r.PostForm.Get("admin"))
	actor := principal(r.Context()).ID

	if err := s.users.SetRole(r.Context(), actor, target, makeAdmin); err != nil {
		switch {
		case errors.Is(err, services.ErrSelfDemotion):
			s.setFlash(w, "error", "Du kannst dir die Adminrechte nicht selbst entziehen.")
			http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		case errors.Is(err, core.ErrNotFound):
			s.renderError(w, r, http.StatusNotFound, "Nicht gefunden", "Dieser Benutzer existiert nicht.")
		default:
			s.storageFailure(w, r, log.OpUpdate, err)
		}
		return
	}

	s.principals.Invalidate(target)
	if makeAdmin {
		s.setFlash(w, "success", "Adminrechte vergeben.")
	} else {
		s.setFlash(w, "success", "Adminrechte entzogen.")
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}
