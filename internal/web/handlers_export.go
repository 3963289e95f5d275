package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExport downloads the filtered register as a workbook that re-imports
// cleanly.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, xlsxContentType, "xlsx", s.service.Export)
}

// handleExportReport downloads the filtered register as a PDF report.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "application/pdf", "pdf", s.service.ExportReport)
}

// download renders the file into memory first, so a failed export still gets
// a proper error response instead of a truncated attachment.
func (s *Server) download(w http.ResponseWriter, r *http.Request, contentType, ext string,
	export func(context.Context, core.RiskFilter, io.Writer) error) {
	filter, err := parseFilter(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := export(r.Context(), filter, &buf); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	filename := fmt.Sprintf("risk_register_%s.%s", time.Now().UTC().Format("20060102_150405"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
