package core

import (
	"context"
	"math"
	"strings"
)

// Pagination limits for the risk register and audit log.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// RiskPage is one page of the filtered risk register.
type RiskPage struct {
	Risks      []RiskAssessment `json:"risks"`
	TotalCount int64            `json:"totalCount"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
	Filter     RiskFilter       `json:"filter"`
	Sort       SortSpec         `json:"sort"`
}

// AuditPage is one page of the audit log, newest first.
type AuditPage struct {
	Entries    []AuditEntry `json:"entries"`
	TotalCount int64        `json:"totalCount"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// ListRisks returns a page of risk items matching filter. Pages are 1-based;
// a page past the last one is empty rather than clamped, so consecutive pages
// never repeat a row.
func (s *Service) ListRisks(ctx context.Context, filter RiskFilter, sort SortSpec, page, pageSize int) (*RiskPage, error) {
	filter, err := NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if sort.Column == "" {
		sort.Column = SortNumber
	} else if _, ok := ParseSortColumn(string(sort.Column)); !ok {
		return nil, &ValidationError{Field: "sort", Value: string(sort.Column), Message: "unknown sort column"}
	}
	page, pageSize = clampPage(page, pageSize)

	risks, total, err := s.store.ListRisks(ctx, RiskQuery{
		Filter: filter,
		Sort:   sort,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, WrapStorage("list risks", err)
	}
	if risks == nil {
		risks = []RiskAssessment{}
	}

	return &RiskPage{
		Risks:      risks,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
		Filter:     filter,
		Sort:       sort,
	}, nil
}

// NormalizeFilter canonicalizes filter values and rejects unknown statuses.
func NormalizeFilter(f RiskFilter) (RiskFilter, error) {
	if f.Status != "" {
		st, ok := ParseReviewStatus(string(f.Status))
		if !ok {
			return f, &ValidationError{Field: "status", Value: string(f.Status), Message: "invalid enum value, must be one of: " + joinStatuses()}
		}
		f.Status = st
	}
	if f.AssetID < 0 {
		return f, &ValidationError{Field: "asset", Message: "asset id must be positive"}
	}
	f.Severity = strings.TrimSpace(f.Severity)
	f.StrideCode = NormalizeStrideCode(f.StrideCode)
	f.PostRiskRating = strings.TrimSpace(f.PostRiskRating)
	f.Search = strings.TrimSpace(f.Search)
	return f, nil
}

// GetRisk returns one risk item.
func (s *Service) GetRisk(ctx context.Context, id int64) (*RiskAssessment, error) {
	r, err := s.store.GetRisk(ctx, id)
	if err != nil {
		return nil, WrapStorage("get risk", err)
	}
	return r, nil
}

// ListAssets returns every asset with its risk count, ordered by name.
func (s *Service) ListAssets(ctx context.Context) ([]AssetSummary, error) {
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, WrapStorage("list assets", err)
	}
	return assets, nil
}

// ListControls returns every control, ordered by name.
func (s *Service) ListControls(ctx context.Context) ([]Control, error) {
	controls, err := s.store.ListControls(ctx)
	if err != nil {
		return nil, WrapStorage("list controls", err)
	}
	return controls, nil
}

// AuditTrail returns every audit entry of one risk item, newest first.
func (s *Service) AuditTrail(ctx context.Context, riskID int64) ([]AuditEntry, error) {
	if _, err := s.store.GetRisk(ctx, riskID); err != nil {
		return nil, WrapStorage("get risk", err)
	}
	entries, _, err := s.store.ListAuditEntries(ctx, AuditQuery{RiskID: riskID})
	if err != nil {
		return nil, WrapStorage("list audit entries", err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}

// AuditLog pages through the global audit log.
func (s *Service) AuditLog(ctx context.Context, q AuditQuery, page, pageSize int) (*AuditPage, error) {
	if q.Field != "" && !q.Field.IsEditable() {
		return nil, &ValidationError{Field: "field", Value: string(q.Field), Message: "unknown audited field"}
	}
	page, pageSize = clampPage(page, pageSize)
	q.Limit = pageSize
	q.Offset = (page - 1) * pageSize

	entries, total, err := s.store.ListAuditEntries(ctx, q)
	if err != nil {
		return nil, WrapStorage("list audit entries", err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return &AuditPage{
		Entries:    entries,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	// Keep (page-1)*pageSize from overflowing; such a page is past the end anyway.
	if maxPage := math.MaxInt32 / pageSize; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
