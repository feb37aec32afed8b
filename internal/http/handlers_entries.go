package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/services"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	form := services.EntryForm{Date: time.Now().Format("2006-01-02"), Type: string(core.Expense)}
	s.renderIndex(w, r, http.StatusOK, form, nil)
}

// renderIndex shows the add form next to the filtered listing. errs re-renders
// a rejected submission with its values.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, form services.EntryForm, errs map[string]string) {
	owner := principal(r.Context()).ID
	listing, err := s.ledger.ListEntries(r.Context(), owner, r.URL.Query())
	if err != nil {
		s.storageFailure(w, r, log.OpList, err)
		return
	}
	s.render(w, r, status, "index", page{
		Title:       "Übersicht",
		Listing:     listing,
		Form:        form,
		Errors:      errs,
		Categories:  s.ledger.Categories(),
		ExportQuery: exportSuffix(listing.Filter),
	})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Ungültige Anfrage", "Das Formular konnte nicht gelesen werden.")
		return
	}
	form := parseEntryForm(r)
	owner := principal(r.Context()).ID

	if _, err := s.ledger.AddEntry(r.Context(), owner, form); err != nil {
		var verrs core.ValidationErrors
		if errors.As(err, &verrs) {
			s.renderIndex(w, r, http.StatusUnprocessableEntity, form, fieldErrors(verrs))
			return
		}
		s.storageFailure(w, r, log.OpCreate, err)
		return
	}

	s.appMetrics.entriesCreated.Add(1)
	s.setFlash(w, "success", "Buchung gespeichert.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r, "id")
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	e, err := s.ledger.GetEntry(r.Context(), principal(r.Context()).ID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.entryNotFound(w, r)
			return
		}
		s.storageFailure(w, r, log.OpRead, err)
		return
	}
	s.renderEdit(w, r, http.StatusOK, id, services.EntryFormFromEntry(e), nil)
}

func (s *Server) renderEdit(w http.ResponseWriter, r *http.Request, status int, id int64, form services.EntryForm, errs map[string]string) {
	s.render(w, r, status, "edit", page{
		Title:      "Buchung bearbeiten",
		EntryID:    id,
		Form:       form,
		Errors:     errs,
		Categories: s.ledger.Categories(),
	})
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r, "id")
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Ungültige Anfrage", "Das Formular konnte nicht gelesen werden.")
		return
	}
	form := parseEntryForm(r)

	err := s.ledger.UpdateEntry(r.Context(), principal(r.Context()).ID, id, form)
	if err != nil {
		var verrs core.ValidationErrors
		switch {
		case errors.Is(err, core.ErrNotFound):
			s.entryNotFound(w, r)
		case errors.As(err, &verrs):
			s.renderEdit(w, r, http.StatusUnprocessableEntity, id, form, fieldErrors(verrs))
		default:
			s.storageFailure(w, r, log.OpUpdate, err)
		}
		return
	}

	s.appMetrics.entriesUpdated.Add(1)
	s.setFlash(w, "success", "Buchung aktualisiert.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r, "id")
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	if err := s.ledger.DeleteEntry(r.Context(), principal(r.Context()).ID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.entryNotFound(w, r)
			return
		}
		s.storageFailure(w, r, log.OpDelete, err)
		return
	}

	s.appMetrics.entriesDeleted.Add(1)
	s.setFlash(w, "success", "Buchung gelöscht.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClearForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "clear", page{Title: "Alle Buchungen löschen"})
}

// handleClear wipes the ledger after the password has been confirmed again.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Ungültige Anfrage", "Das Formular konnte nicht gelesen werden.")
		return
	}
	owner := principal(r.Context()).ID

	if err := s.users.VerifyPassword(r.Context(), owner, r.PostForm.Get("password")); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			s.render(w, r, http.StatusUnprocessableEntity, "clear", page{
				Title:   "Alle Buchungen löschen",
				Message: "Das Passwort ist falsch.",
			})
			return
		}
		s.storageFailure(w, r, log.OpClear, err)
		return
	}

	n, err := s.ledger.ClearAll(r.Context(), owner)
	if err != nil {
		s.storageFailure(w, r, log.OpClear, err)
		return
	}
	s.appMetrics.entriesDeleted.Add(n)
	s.setFlash(w, "success", fmt.Sprintf("%d Buchungen gelöscht.", n))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) entryNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "Nicht gefunden", "Diese Buchung existiert nicht.")
}

// storageFailure logs err and answers 500. Storage errors are never retried.
func (s *Server) storageFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentLedger).ErrorContext(r.Context(), "Ledger operation failed",
		log.FieldOperation, op, log.FieldError, err, "storage", errors.Is(err, core.ErrStorage))
	s.renderError(w, r, http.StatusInternalServerError, "Interner Fehler", "Die Daten konnten nicht verarbeitet werden. Bitte versuche es später erneut.")
}

// exportSuffix is appended to the export paths so downloads carry the active
// filter.
func exportSuffix(f core.Filter) string {
	if q := f.Encode(); q != "" {
		return "?" + q
	}
	return ""
}
