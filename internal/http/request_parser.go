package http

import (
	"net/http"
	"strconv"
	"strings"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/services"
)

// parseEntryForm reads the entry fields of a submitted form. Values are
// sanitized but not validated; LedgerService does that.
func parseEntryForm(r *http.Request) services.EntryForm {
	form := services.EntryFormFromValues(r.PostForm)
	form.Date = sanitizeInput(form.Date)
	form.Category = sanitizeInput(form.Category)
	form.Amount = sanitizeInput(form.Amount)
	form.Note = sanitizeInput(form.Note)
	form.Type = sanitizeInput(form.Type)
	return form
}

// parsePathID returns the positive int64 in path segment name.
func parsePathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// parseBool accepts the usual checkbox and hidden-field spellings.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes", "ja":
		return true
	}
	return false
}

// fieldErrors indexes validation messages by form field.
func fieldErrors(verrs core.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}
