package core

// schema.go describes the two workbook sheets as ordered column specs.
//
// The header row of each sheet is the schema: columns are located by header
// text, never by position, so reordered or extra columns are accepted. The
// same specs drive export, which is what makes an exported workbook importable.

import "strconv"

// MatchMode controls how a spec header is compared to a workbook header.
type MatchMode int

const (
	// MatchExact compares normalized headers for equality.
	MatchExact MatchMode = iota
	// MatchContains accepts any header containing the spec header. The
	// post-mitigation columns of the template carry long explanatory suffixes.
	MatchContains
)

// ColumnSpec maps one workbook column to a record field.
type ColumnSpec struct {
	Header   string
	Field    string
	Required bool
	Match    MatchMode
}

// Field keys of the risk sheet.
const (
	ColNumber            = "assessment_number"
	ColAsset             = "asset"
	ColOperation         = "operation"
	ColPlatform          = "platform"
	ColModelRef          = "model_ref"
	ColStrideCode        = "stride_code"
	ColStrideDescription = "stride_description"
	ColFindingNumber     = "finding_number"
	ColSeverity          = "severity"
	ColPreExploitRisk    = "pre_exploit_risk"
	ColPreRiskRating     = "pre_risk_rating"
	ColPostExploitRisk   = "post_exploit_risk"
	ColPostRiskRating    = "post_risk_rating"
	ColControls          = "controls"
	ColReferenceDocs     = "reference_docs"
	ColReviewStatus      = "review_status"
	ColNotes             = "notes"
)

// Field keys of the control sheet.
const (
	ColControlName        = "control_name"
	ColControlDescription = "control_description"
	ColControlTag         = "control_tag"
)

// RiskColumns is the schema of the risk item sheet.
var RiskColumns = []ColumnSpec{
	{Header: "#", Field: ColNumber},
	{Header: "THREAT MODEL ASSET", Field: ColAsset, Required: true},
	{Header: "OPERATION", Field: ColOperation},
	{Header: "PLATFORM", Field: ColPlatform},
	{Header: "Model Ref#", Field: ColModelRef},
	{Header: "STRIDEL", Field: ColStrideCode, Required: true},
	{Header: "STRIDEL Description", Field: ColStrideDescription},
	{Header: "FINDING #", Field: ColFindingNumber},
	{Header: "SEVERITY", Field: ColSeverity},
	{Header: "PRE-MITIGATION EXPLOIT RISK", Field: ColPreExploitRisk},
	{Header: "PRE-MITIGATION RISK RATING", Field: ColPreRiskRating},
	{Header: "POST-MITIGATION EXPLOIT RISK", Field: ColPostExploitRisk, Match: MatchContains},
	{Header: "POST-MITIGATION RISK RATING", Field: ColPostRiskRating, Match: MatchContains},
	{Header: "CONTROLS", Field: ColControls},
	{Header: "Reference Doc", Field: ColReferenceDocs},
	{Header: "REVIEW STATUS", Field: ColReviewStatus},
	{Header: "NOTES", Field: ColNotes},
}

// ControlColumns is the schema of the control measure sheet.
var ControlColumns = []ColumnSpec{
	{Header: "Control Measure", Field: ColControlName, Required: true},
	{Header: "Engineering Description", Field: ColControlDescription},
	{Header: "Tag", Field: ColControlTag},
}

// Export-only columns appended after RiskColumns. Import ignores them.
var riskExportColumns = []string{"Reviewed By", "Reviewed At", "Last Modified"}

// Headers returns the header text of each spec, in order.
func Headers(specs []ColumnSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Header
	}
	return out
}

// riskRowValues renders r in RiskColumns order.
func riskRowValues(r *RiskAssessment) map[string]string {
	num := ""
	if r.AssessmentNumber > 0 {
		num = strconv.Itoa(r.AssessmentNumber)
	}
	return map[string]string{
		ColNumber:            num,
		ColAsset:             r.AssetName,
		ColOperation:         r.Operation,
		ColPlatform:          r.Platform,
		ColModelRef:          r.ModelRef,
		ColStrideCode:        r.StrideCode,
		ColStrideDescription: r.StrideDescription,
		ColFindingNumber:     r.FindingNumber,
		ColSeverity:          r.Severity,
		ColPreExploitRisk:    r.PreExploitRisk,
		ColPreRiskRating:     r.PreRiskRating,
		ColPostExploitRisk:   r.PostExploitRisk,
		ColPostRiskRating:    r.PostRiskRating,
		ColControls:          r.ControlRefs,
		ColReferenceDocs:     r.ReferenceDocs,
		ColReviewStatus:      string(r.ReviewStatus),
		ColNotes:             r.Notes,
	}
}

// riskFromRow maps a risk sheet row. The returned asset name is not yet
// resolved to an ID.
func riskFromRow(idx HeaderIndex, row []string) (*RiskAssessment, *RowError) {
	r := &RiskAssessment{
		AssetName:         idx.Get(row, ColAsset),
		Operation:         idx.Get(row, ColOperation),
		Platform:          idx.Get(row, ColPlatform),
		ModelRef:          idx.Get(row, ColModelRef),
		StrideCode:        NormalizeStrideCode(idx.Get(row, ColStrideCode)),
		StrideDescription: idx.Get(row, ColStrideDescription),
		FindingNumber:     idx.Get(row, ColFindingNumber),
		Severity:          idx.Get(row, ColSeverity),
		PreExploitRisk:    idx.Get(row, ColPreExploitRisk),
		PreRiskRating:     idx.Get(row, ColPreRiskRating),
		PostExploitRisk:   idx.Get(row, ColPostExploitRisk),
		PostRiskRating:    idx.Get(row, ColPostRiskRating),
		ControlRefs:       idx.Get(row, ColControls),
		ReferenceDocs:     idx.Get(row, ColReferenceDocs),
		ReviewStatus:      StatusPending,
		Notes:             idx.Get(row, ColNotes),
	}

	if r.AssetName == "" {
		return nil, &RowError{Field: "THREAT MODEL ASSET", Message: "asset name is required"}
	}
	if r.StrideCode == "" {
		return nil, &RowError{Field: "STRIDEL", Message: "threat category code is required"}
	}

	if raw := idx.Get(row, ColNumber); raw != "" {
		n, err := ParseAssessmentNumber(raw)
		if err != nil {
			return nil, &RowError{Field: "#", Message: err.Error()}
		}
		r.AssessmentNumber = n
	}

	if raw := idx.Get(row, ColReviewStatus); raw != "" {
		st, ok := ParseReviewStatus(raw)
		if !ok {
			return nil, &RowError{Field: "REVIEW STATUS", Message: "unknown review status " + strconv.Quote(raw)}
		}
		r.ReviewStatus = st
	}

	return r, nil
}

// controlFromRow maps a control sheet row.
func controlFromRow(idx HeaderIndex, row []string) (*Control, *RowError) {
	c := &Control{
		Name:        idx.Get(row, ColControlName),
		Description: idx.Get(row, ColControlDescription),
		CategoryTag: idx.Get(row, ColControlTag),
		IsActive:    true,
	}
	if c.Name == "" {
		return nil, &RowError{Field: "Control Measure", Message: "control name is required"}
	}
	return c, nil
}
