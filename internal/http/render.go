package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/services"
)

// Pages rendered inside layout.html. Each gets its own template set so the
// "content" blocks do not collide.
var pageFiles = map[string][]string{
	"login":       {"login.html"},
	"register":    {"register.html"},
	"index":       {"index.html", "entry_form.html"},
	"edit":        {"edit.html", "entry_form.html"},
	"clear":       {"clear.html"},
	"admin_users": {"admin_users.html"},
	"error":       {"error.html"},
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.Format() },
	"date":  func(t time.Time) string { return t.Local().Format("02.01.2006") },
}

type templateSet struct {
	pages map[string]*template.Template
}

func parseTemplates(fsys fs.FS) (*templateSet, error) {
	set := &templateSet{pages: make(map[string]*template.Template, len(pageFiles))}
	for name, files := range pageFiles {
		patterns := []string{"templates/layout.html"}
		for _, f := range files {
			patterns = append(patterns, "templates/"+f)
		}
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, patterns...)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", name, err)
		}
		set.pages[name] = t
	}
	return set, nil
}

// page is the data handed to every template.
type page struct {
	Title string
	User  *core.User
	Flash *flash

	Message string
	Email   string

	Listing     services.Listing
	Form        services.EntryForm
	Errors      map[string]string
	Categories  []string
	EntryID     int64
	ExportQuery string

	Users []core.User

	MinPasswordLength int
}

// render executes page name into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := s.templates.pages[name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown template", "template", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if u, ok := r.Context().Value(principalKey{}).(core.User); ok {
		p.User = &u
	}
	if p.Flash == nil {
		p.Flash = s.popFlash(w, r)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(),
			"Template execution failed", "template", name, log.FieldError, err)
		http.Error(w, "Interner Fehler", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	s.render(w, r, status, "error", page{Title: title, Message: message})
}

func (s *Server) renderRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusTooManyRequests, "Zu viele Versuche", "Bitte warte eine Minute und versuche es dann erneut.")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "Nicht gefunden", "Die angeforderte Seite existiert nicht.")
}
