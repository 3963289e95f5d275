package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/RiskTracker/internal/core"
	"github.com/JonMunkholm/RiskTracker/internal/logging"
	"github.com/JonMunkholm/RiskTracker/internal/web/views"
)

// maxFormSize bounds url-encoded edit forms.
const maxFormSize = 1 << 20

// renderPage writes an HTML page with status.
func renderPage(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}

// handleDashboard renders review progress.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	renderPage(w, r, http.StatusOK, views.Dashboard(views.DashboardData{Stats: stats}))
}

// handleRiskList renders the filtered register.
func (s *Server) handleRiskList(w http.ResponseWriter, r *http.Request) {
	page, err := s.listRisks(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	assets, err := s.service.ListAssets(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	renderPage(w, r, http.StatusOK, views.RiskList(views.NewRiskListData(page, assets, r.URL.Query())))
}

// handleRiskDetail renders one risk item with its audit trail.
func (s *Server) handleRiskDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	data, err := s.riskDetail(r, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if raw := r.URL.Query().Get("saved"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			data.Saved = n
		}
	}
	renderPage(w, r, http.StatusOK, views.RiskDetail(data))
}

func (s *Server) riskDetail(r *http.Request, id int64) (views.RiskDetailData, error) {
	risk, err := s.service.GetRisk(r.Context(), id)
	if err != nil {
		return views.RiskDetailData{}, err
	}
	trail, err := s.service.AuditTrail(r.Context(), id)
	if err != nil {
		return views.RiskDetailData{}, err
	}
	data := views.NewRiskDetailData(risk, trail)
	data.AskActor = core.ActorFromContext(r.Context()) == ""
	return data, nil
}

// handleRiskForm saves the edit form of the risk detail page. Success
// redirects back to the page; validation failures and conflicts re-render it
// with the message and the stored values.
func (s *Server) handleRiskForm(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, &core.ValidationError{Field: "form", Message: "invalid form submission"}, http.StatusBadRequest)
		return
	}

	changes := make(map[core.Field]string)
	for _, f := range core.EditableFields {
		if _, ok := r.PostForm[string(f)]; ok {
			changes[f] = r.PostFormValue(string(f))
		}
	}
	version, _ := strconv.Atoi(r.PostFormValue("version"))

	ctx := WithRequestActor(r, r.PostFormValue("actor"))
	result, err := s.service.Save(ctx, core.SaveRequest{
		RiskID:          id,
		Changes:         changes,
		ExpectedVersion: version,
	})
	if err != nil {
		status := statusFor(err)
		if status != http.StatusBadRequest && status != http.StatusConflict {
			s.respondError(w, r, err, status)
			return
		}
		data, derr := s.riskDetail(r, id)
		if derr != nil {
			s.respondError(w, r, derr, statusFor(derr))
			return
		}
		msg := core.MapError(err)
		data.Error = &msg
		data.Actor = r.PostFormValue("actor")
		renderPage(w, r, status, views.RiskDetail(data))
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/risks/%d?saved=%d", id, len(result.Entries)), http.StatusSeeOther)
}

// handleAssets renders the asset list.
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.service.ListAssets(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	renderPage(w, r, http.StatusOK, views.Assets(views.AssetsData{Assets: assets}))
}

// handleControls renders the control catalog.
func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	controls, err := s.service.ListControls(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	renderPage(w, r, http.StatusOK, views.Controls(views.ControlsData{Controls: controls}))
}

func (s *Server) importData() views.ImportData {
	return views.ImportData{
		RiskSheet:    s.service.RiskSheet(),
		ControlSheet: s.service.ControlSheet(),
		MaxFileMB:    s.cfg.Import.MaxFileSize >> 20,
	}
}

// handleImportPage renders the upload form.
func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, views.Import(s.importData()))
}

// handleImportForm imports an uploaded workbook and renders its report.
func (s *Server) handleImportForm(w http.ResponseWriter, r *http.Request) {
	data := s.importData()
	report, err := s.importUpload(w, r)
	data.Report = report
	if err != nil {
		status := statusFor(err)
		logging.FromContext(r.Context()).Warn("import failed", "status", status, "error", err)
		msg := core.MapError(err)
		data.Error = &msg
		renderPage(w, r, status, views.Import(data))
		return
	}
	renderPage(w, r, http.StatusOK, views.Import(data))
}
