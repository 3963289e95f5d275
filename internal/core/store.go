package core

import "context"

// Store is the storage collaborator. Implementations provide durability,
// natural-key uniqueness and foreign-key integrity; the service owns no
// storage state of its own.
//
// Implementations: internal/database (PostgreSQL, SQLite) and
// internal/database/memory.
type Store interface {
	Reader

	// InTx runs fn inside one transaction. If fn returns an error every write
	// made through tx is discarded.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Reader holds the read operations available both inside and outside a transaction.
type Reader interface {
	// GetRisk returns a NotFoundError when id does not exist.
	GetRisk(ctx context.Context, id int64) (*RiskAssessment, error)

	// ListRisks returns the rows matching q and the total count ignoring Limit/Offset.
	// Rows are ordered by q.Sort, then by ID ascending.
	ListRisks(ctx context.Context, q RiskQuery) ([]RiskAssessment, int64, error)

	ListAssets(ctx context.Context) ([]AssetSummary, error)
	ListControls(ctx context.Context) ([]Control, error)

	// ListAuditEntries returns entries newest first and the total count.
	ListAuditEntries(ctx context.Context, q AuditQuery) ([]AuditEntry, int64, error)

	// CountRisksBy groups all risk items by column.
	CountRisksBy(ctx context.Context, column GroupColumn) (map[string]int64, error)
}

// Tx is a transaction handle. It is only valid inside Store.InTx.
type Tx interface {
	Reader

	// Natural-key indexes used by import.
	AssetIndex(ctx context.Context) (map[string]int64, error)
	ControlIndex(ctx context.Context) (map[string]int64, error)
	RiskIndex(ctx context.Context) (map[RiskKey]int64, error)

	// Insert methods set the generated ID on their argument.
	InsertAsset(ctx context.Context, a *Asset) error
	InsertControl(ctx context.Context, c *Control) error
	InsertRisk(ctx context.Context, r *RiskAssessment) error
	InsertAuditEntry(ctx context.Context, e *AuditEntry) error

	// UpdateRisk writes the editable and review fields of r, provided the
	// stored version still equals prevVersion. Otherwise it returns a
	// ConflictError and writes nothing.
	UpdateRisk(ctx context.Context, r *RiskAssessment, prevVersion int) error
}

// SortColumn names an orderable column of the risk register.
type SortColumn string

const (
	SortNumber   SortColumn = "number"
	SortAsset    SortColumn = "asset"
	SortSeverity SortColumn = "severity"
	SortStatus   SortColumn = "status"
	SortRating   SortColumn = "rating"
	SortUpdated  SortColumn = "updated"
	SortID       SortColumn = "id"
)

// SortColumns lists the accepted sort columns.
var SortColumns = []SortColumn{SortNumber, SortAsset, SortSeverity, SortStatus, SortRating, SortUpdated, SortID}

// ParseSortColumn returns the column for s, or false if s is not orderable.
func ParseSortColumn(s string) (SortColumn, bool) {
	for _, c := range SortColumns {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// SortSpec orders the risk register. The ID is always appended ascending as a
// tiebreaker so that pages are stable.
type SortSpec struct {
	Column SortColumn
	Desc   bool
}

// RiskFilter holds conjunctive filter criteria. Zero values match everything.
type RiskFilter struct {
	Status         ReviewStatus `json:"status,omitempty"`
	AssetID        int64        `json:"assetId,omitempty"`
	Severity       string       `json:"severity,omitempty"`
	StrideCode     string       `json:"strideCode,omitempty"`
	PostRiskRating string       `json:"postRiskRating,omitempty"`

	// Search is a case-insensitive substring matched against the asset name,
	// STRIDE description, finding number and notes.
	Search string `json:"search,omitempty"`
}

// IsEmpty reports whether f matches every row.
func (f RiskFilter) IsEmpty() bool {
	return f == RiskFilter{}
}

// RiskQuery is a filtered, ordered window over the risk register.
// Limit 0 returns every matching row.
type RiskQuery struct {
	Filter RiskFilter
	Sort   SortSpec
	Limit  int
	Offset int
}

// AuditQuery selects audit entries. Zero values match everything.
type AuditQuery struct {
	RiskID int64
	Field  Field
	Actor  string
	Limit  int
	Offset int
}

// GroupColumn names a column risk items can be counted by.
type GroupColumn string

const (
	GroupStatus     GroupColumn = "review_status"
	GroupPostRating GroupColumn = "post_risk_rating"
	GroupStride     GroupColumn = "stride_code"
	GroupSeverity   GroupColumn = "severity"
)
