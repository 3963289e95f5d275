package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/RiskTracker/internal/core"
	"github.com/JonMunkholm/RiskTracker/internal/logging"
)

// multipartMemory is how much of an upload is buffered in memory before the
// rest spills to a temporary file.
const multipartMemory = 8 << 20

// importUpload reads the "file" part of a multipart request and imports it.
// The request body is capped at the configured maximum file size.
func (s *Server) importUpload(w http.ResponseWriter, r *http.Request) (*core.ImportReport, error) {
	if r.ContentLength > s.cfg.Import.MaxFileSize {
		return nil, errFileTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errFileTooLarge
		}
		return nil, errNoFile
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	logger := logging.FromContext(r.Context())
	logger.Info("import upload received", "filename", header.Filename, "size", header.Size)

	return s.service.Import(r.Context(), file)
}

// handleAPIImport imports an uploaded workbook and returns its report.
func (s *Server) handleAPIImport(w http.ResponseWriter, r *http.Request) {
	report, err := s.importUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// handleAPIImportStatus reports import slot usage.
func (s *Server) handleAPIImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ImportLimiterStatus())
}
