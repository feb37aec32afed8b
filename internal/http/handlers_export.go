package http

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/export"
	"haushaltsbuch/internal/log"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "csv", export.ContentTypeCSV, export.WriteCSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

// serveExport writes the filtered entries as an attachment. The file is built
// in memory so a failure still yields a proper error page.
func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, []core.ExportRow) error) {
	owner := principal(r.Context()).ID
	rows, err := s.ledger.ExportRows(r.Context(), owner, r.URL.Query())
	if err != nil {
		s.storageFailure(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, rows); err != nil {
		s.storageFailure(w, r, log.OpExport, err)
		return
	}

	s.appMetrics.exports.Add(1)
	log.FromContext(r.Context()).WithComponent(log.ComponentLedger).InfoContext(r.Context(), "Ledger exported",
		log.FieldOperation, log.OpExport, log.FieldCount, len(rows), "format", ext)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(ext, time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
