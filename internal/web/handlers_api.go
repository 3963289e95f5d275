package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// handleHealth pings the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPIStats returns dashboard statistics.
func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// lookups are the reference values for filter and edit forms.
type lookups struct {
	Stride         []core.StrideCategory `json:"stride"`
	Severities     []string              `json:"severities"`
	ExploitRisks   []string              `json:"exploitRisks"`
	RiskRatings    []string              `json:"riskRatings"`
	ReviewStatuses []core.ReviewStatus   `json:"reviewStatuses"`
	EditableFields []core.Field          `json:"editableFields"`
	SortColumns    []core.SortColumn     `json:"sortColumns"`
}

// handleAPILookups returns the reference values.
func (s *Server) handleAPILookups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, lookups{
		Stride:         core.StrideCategories,
		Severities:     core.SeverityLevels,
		ExploitRisks:   core.ExploitRiskLevels,
		RiskRatings:    core.RiskRatings,
		ReviewStatuses: core.ReviewStatuses,
		EditableFields: core.EditableFields,
		SortColumns:    core.SortColumns,
	})
}

// handleAPIListRisks returns one page of the filtered register.
func (s *Server) handleAPIListRisks(w http.ResponseWriter, r *http.Request) {
	page, err := s.listRisks(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// handleAPIGetRisk returns one risk item.
func (s *Server) handleAPIGetRisk(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	risk, err := s.service.GetRisk(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, risk)
}

// saveRequest is the body of PATCH /api/risks/{id}.
type saveRequest struct {
	Changes         map[string]string `json:"changes"`
	ExpectedVersion int               `json:"expectedVersion"`

	// Actor is honored only when no authenticated user is present.
	Actor string `json:"actor"`
}

// handleAPISaveRisk applies field changes and returns the audit entries
// written. A stale expectedVersion yields 409.
func (s *Server) handleAPISaveRisk(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var req saveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, &core.ValidationError{Field: "body", Message: "invalid request body"}, http.StatusBadRequest)
		return
	}
	if len(req.Changes) == 0 {
		s.respondError(w, r, &core.ValidationError{Field: "changes", Message: "changes is required"}, http.StatusBadRequest)
		return
	}

	ctx := WithRequestActor(r, req.Actor)
	result, err := s.service.Save(ctx, core.SaveRequest{
		RiskID:          id,
		Changes:         core.ParseChanges(req.Changes),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleAPIRiskAudit returns the audit trail of one risk item.
func (s *Server) handleAPIRiskAudit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	entries, err := s.service.AuditTrail(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

// handleAPIAuditLog pages the global audit log, filtered by risk, field and actor.
func (s *Server) handleAPIAuditLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := core.AuditQuery{
		Field: core.Field(strings.TrimSpace(query.Get("field"))),
		Actor: strings.TrimSpace(query.Get("actor")),
	}
	if raw := strings.TrimSpace(query.Get("risk")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			s.respondError(w, r, &core.ValidationError{Field: "risk", Value: raw, Message: "risk id must be a positive integer"}, http.StatusBadRequest)
			return
		}
		q.RiskID = id
	}

	page, err := s.service.AuditLog(r.Context(), q,
		parseIntParam(r, "page", 1),
		parseIntParam(r, "page_size", core.DefaultPageSize))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// handleAPIAssets returns every asset with its risk count.
func (s *Server) handleAPIAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.service.ListAssets(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, assets)
}

// handleAPIControls returns the control catalog.
func (s *Server) handleAPIControls(w http.ResponseWriter, r *http.Request) {
	controls, err := s.service.ListControls(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, controls)
}
