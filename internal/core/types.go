package core

import (
	"strings"
	"time"
)

// Asset is a system or component under threat modeling. Assets are created by
// import only and deduplicated by Name.
type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AssetType   AssetType `json:"assetType"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AssetSummary is an Asset with the number of risk items that reference it.
type AssetSummary struct {
	Asset
	RiskCount int64 `json:"riskCount"`
}

// AssetType classifies an asset in the threat model.
type AssetType string

const (
	AssetComponent AssetType = "Component"
	AssetDataFlow  AssetType = "DataFlow"
	AssetProcess   AssetType = "Process"
)

// processKeywords mark asset names that describe a process rather than a component.
var processKeywords = []string{"management", "authentication", "calculate"}

// InferAssetType derives the asset type from its name: flows are named
// "X to Y", processes carry one of processKeywords.
func InferAssetType(name string) AssetType {
	lower := strings.ToLower(name)
	if strings.Contains(lower, " to ") {
		return AssetDataFlow
	}
	for _, kw := range processKeywords {
		if strings.Contains(lower, kw) {
			return AssetProcess
		}
	}
	return AssetComponent
}

// Control is a mitigation measure. Controls are created by import only and
// deduplicated by Name.
type Control struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryTag string    `json:"categoryTag,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReviewStatus is the review state of a risk item.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "Pending"
	StatusInReview ReviewStatus = "In-Review"
	StatusReviewed ReviewStatus = "Reviewed"
	StatusApproved ReviewStatus = "Approved"
)

// ReviewStatuses lists every status in workflow order.
var ReviewStatuses = []ReviewStatus{StatusPending, StatusInReview, StatusReviewed, StatusApproved}

// ParseReviewStatus matches s case-insensitively, ignoring spaces, dashes and
// underscores, so "in review" and "IN_REVIEW" both yield StatusInReview.
func ParseReviewStatus(s string) (ReviewStatus, bool) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))

	for _, st := range ReviewStatuses {
		if strings.ReplaceAll(strings.ToLower(string(st)), "-", "") == key {
			return st, true
		}
	}
	return "", false
}

// IsSignedOff reports whether the status records a completed review.
func (s ReviewStatus) IsSignedOff() bool {
	return s == StatusReviewed || s == StatusApproved
}

// RiskAssessment is one risk item: a threat against one asset with its
// pre- and post-mitigation ratings.
type RiskAssessment struct {
	ID               int64  `json:"id"`
	AssessmentNumber int    `json:"assessmentNumber"`
	AssetID          int64  `json:"assetId"`
	AssetName        string `json:"assetName"`

	Operation         string `json:"operation,omitempty"`
	Platform          string `json:"platform,omitempty"`
	ModelRef          string `json:"modelRef,omitempty"`
	StrideCode        string `json:"strideCode"`
	StrideDescription string `json:"strideDescription,omitempty"`
	FindingNumber     string `json:"findingNumber,omitempty"`
	Severity          string `json:"severity,omitempty"`

	// Import-provided history, never edited.
	PreExploitRisk string `json:"preExploitRisk,omitempty"`
	PreRiskRating  string `json:"preRiskRating,omitempty"`

	// Current cycle, editable through Save.
	PostExploitRisk string       `json:"postExploitRisk,omitempty"`
	PostRiskRating  string       `json:"postRiskRating,omitempty"`
	ReviewStatus    ReviewStatus `json:"reviewStatus"`
	Notes           string       `json:"notes,omitempty"`

	ControlRefs   string `json:"controlRefs,omitempty"`
	ReferenceDocs string `json:"referenceDocs,omitempty"`

	ReviewedBy string     `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key returns the natural key used to deduplicate risk items across imports.
func (r *RiskAssessment) Key() RiskKey {
	return RiskKey{
		AssetID:          r.AssetID,
		StrideCode:       r.StrideCode,
		AssessmentNumber: r.AssessmentNumber,
		FindingNumber:    r.FindingNumber,
	}
}

// ControlNames splits ControlRefs into trimmed control names.
func (r *RiskAssessment) ControlNames() []string {
	var names []string
	for _, part := range strings.Split(r.ControlRefs, ",") {
		if p := strings.TrimSpace(part); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// RiskKey identifies a risk item independently of its storage ID.
type RiskKey struct {
	AssetID          int64
	StrideCode       string
	AssessmentNumber int
	FindingNumber    string
}

// Field names a column that can be changed through Save.
type Field string

const (
	FieldPostExploitRisk Field = "post_exploit_risk"
	FieldPostRiskRating  Field = "post_risk_rating"
	FieldReviewStatus    Field = "review_status"
	FieldNotes           Field = "notes"
)

// EditableFields lists the mutable fields in the order audit entries are written.
var EditableFields = []Field{FieldPostExploitRisk, FieldPostRiskRating, FieldReviewStatus, FieldNotes}

// IsEditable reports whether f may be changed through Save.
func (f Field) IsEditable() bool {
	for _, e := range EditableFields {
		if e == f {
			return true
		}
	}
	return false
}

// Get returns the current value of field f on r.
func (r *RiskAssessment) Get(f Field) string {
	switch f {
	case FieldPostExploitRisk:
		return r.PostExploitRisk
	case FieldPostRiskRating:
		return r.PostRiskRating
	case FieldReviewStatus:
		return string(r.ReviewStatus)
	case FieldNotes:
		return r.Notes
	}
	return ""
}

// set assigns an already validated value to field f.
func (r *RiskAssessment) set(f Field, v string) {
	switch f {
	case FieldPostExploitRisk:
		r.PostExploitRisk = v
	case FieldPostRiskRating:
		r.PostRiskRating = v
	case FieldReviewStatus:
		r.ReviewStatus = ReviewStatus(v)
	case FieldNotes:
		r.Notes = v
	}
}

// AuditEntry records one field change on a risk item. Entries are append-only.
type AuditEntry struct {
	ID        int64     `json:"id"`
	RiskID    int64     `json:"riskId"`
	Field     Field     `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	Actor     string    `json:"actor"`
	BatchID   string    `json:"batchId"`
	ChangedAt time.Time `json:"changedAt"`
}

// RowError describes a workbook row that import skipped.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportReport summarizes one import run.
type ImportReport struct {
	ImportID           string        `json:"importId"`
	AssetsCreated      int           `json:"assetsCreated"`
	ControlsCreated    int           `json:"controlsCreated"`
	AssessmentsCreated int           `json:"assessmentsCreated"`
	AssessmentsMatched int           `json:"assessmentsMatched"`
	RowsSkipped        int           `json:"rowsSkipped"`
	Errors             []RowError    `json:"errors"`
	Duration           time.Duration `json:"durationNs"`
}

// skip records a skipped row.
func (r *ImportReport) skip(e RowError) {
	r.RowsSkipped++
	r.Errors = append(r.Errors, e)
}
