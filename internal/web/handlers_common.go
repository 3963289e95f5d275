package web

// handlers_common.go contains request parsing shared by the page and API handlers.

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseID reads the {id} route parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, &core.ValidationError{Field: "id", Value: raw, Message: "risk id must be a positive integer"}
	}
	return id, nil
}

// parseFilter reads the register filter from query parameters:
// status, asset, severity, stride, rating and q.
func parseFilter(r *http.Request) (core.RiskFilter, error) {
	q := r.URL.Query()
	f := core.RiskFilter{
		Status:         core.ReviewStatus(q.Get("status")),
		Severity:       q.Get("severity"),
		StrideCode:     q.Get("stride"),
		PostRiskRating: q.Get("rating"),
		Search:         q.Get("q"),
	}
	if raw := strings.TrimSpace(q.Get("asset")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			return f, &core.ValidationError{Field: "asset", Value: raw, Message: "asset id must be a positive integer"}
		}
		f.AssetID = id
	}
	return core.NormalizeFilter(f)
}

// parseSort reads the sort and dir query parameters.
func parseSort(r *http.Request) (core.SortSpec, error) {
	q := r.URL.Query()
	var spec core.SortSpec
	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		col, ok := core.ParseSortColumn(strings.ToLower(raw))
		if !ok {
			return spec, &core.ValidationError{Field: "sort", Value: raw, Message: "unknown sort column"}
		}
		spec.Column = col
	}
	spec.Desc = strings.EqualFold(q.Get("dir"), "desc")
	return spec, nil
}

// listRisks runs the register query described by the request.
func (s *Server) listRisks(r *http.Request) (*core.RiskPage, error) {
	filter, err := parseFilter(r)
	if err != nil {
		return nil, err
	}
	sort, err := parseSort(r)
	if err != nil {
		return nil, err
	}
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "page_size", core.DefaultPageSize)
	return s.service.ListRisks(r.Context(), filter, sort, page, pageSize)
}
