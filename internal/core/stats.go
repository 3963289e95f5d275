package core

import (
	"context"
	"math"
	"sort"
)

// recentLimit is how many recently updated risk items Stats returns.
const recentLimit = 10

// Stats summarizes the register for the dashboard.
type Stats struct {
	TotalRisks      int64            `json:"totalRisks"`
	TotalAssets     int              `json:"totalAssets"`
	TotalControls   int              `json:"totalControls"`
	ByStatus        map[string]int64 `json:"byStatus"`
	ByPostRating    map[string]int64 `json:"byPostRating"`
	BySeverity      map[string]int64 `json:"bySeverity"`
	ByStride        []StrideCount    `json:"byStride"`
	ProgressPercent float64          `json:"progressPercent"`
	Recent          []RiskAssessment `json:"recent"`
}

// StrideCount is the number of risk items in one threat category.
type StrideCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Stats computes dashboard statistics. Progress is the share of items that
// are Reviewed or Approved, rounded to one decimal.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	var err error
	if st.ByStatus, err = s.store.CountRisksBy(ctx, GroupStatus); err != nil {
		return nil, WrapStorage("count by status", err)
	}
	if st.ByPostRating, err = s.store.CountRisksBy(ctx, GroupPostRating); err != nil {
		return nil, WrapStorage("count by rating", err)
	}
	if st.BySeverity, err = s.store.CountRisksBy(ctx, GroupSeverity); err != nil {
		return nil, WrapStorage("count by severity", err)
	}
	byStride, err := s.store.CountRisksBy(ctx, GroupStride)
	if err != nil {
		return nil, WrapStorage("count by stride", err)
	}

	for code, n := range byStride {
		st.ByStride = append(st.ByStride, StrideCount{Code: code, Name: StrideName(code), Count: n})
	}
	sort.Slice(st.ByStride, func(i, j int) bool { return strideOrder(st.ByStride[i].Code) < strideOrder(st.ByStride[j].Code) })

	var done int64
	for status, n := range st.ByStatus {
		st.TotalRisks += n
		if ReviewStatus(status).IsSignedOff() {
			done += n
		}
	}
	if st.TotalRisks > 0 {
		st.ProgressPercent = math.Round(float64(done)/float64(st.TotalRisks)*1000) / 10
	}

	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, WrapStorage("list assets", err)
	}
	st.TotalAssets = len(assets)

	controls, err := s.store.ListControls(ctx)
	if err != nil {
		return nil, WrapStorage("list controls", err)
	}
	st.TotalControls = len(controls)

	st.Recent, _, err = s.store.ListRisks(ctx, RiskQuery{
		Sort:  SortSpec{Column: SortUpdated, Desc: true},
		Limit: recentLimit,
	})
	if err != nil {
		return nil, WrapStorage("recent risks", err)
	}
	if st.Recent == nil {
		st.Recent = []RiskAssessment{}
	}

	return st, nil
}

// strideOrder sorts known categories in template order, unknown codes after them.
func strideOrder(code string) string {
	for i, c := range StrideCategories {
		if c.Code == code {
			return string(rune('0' + i))
		}
	}
	return "~" + code
}
