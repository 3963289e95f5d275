// Package database implements core.Store over PostgreSQL (pgx) and SQLite
// (go-sqlite3). Both share one set of queries; Dialect only changes the bind
// parameter style and the schema script.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// Store is a SQL-backed core.Store.
type Store struct {
	queries
	conn conn
}

var (
	_ core.Store = (*Store)(nil)
	_ core.Tx    = (*txQueries)(nil)
)

func newStore(c conn, d Dialect) *Store {
	return &Store{queries: queries{q: c, d: d}, conn: c}
}

// Dialect reports the SQL flavor of the store.
func (s *Store) Dialect() Dialect { return s.d }

// Migrate applies the schema. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.d == SQLite {
		schema = sqliteSchema
	}
	for _, stmt := range statements(schema) {
		if _, err := s.conn.exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// InTx runs fn in a transaction, committing if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) (err error) {
	tx, err := s.conn.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(&txQueries{queries{q: tx, d: s.d}}); err != nil {
		_ = tx.rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.conn.ping(ctx) }
func (s *Store) Close() error                   { return s.conn.close() }

// queries holds the statements shared by the pool and transactions.
type queries struct {
	q queryer
	d Dialect
}

// txQueries adds the write operations only available inside InTx.
type txQueries struct {
	queries
}

// placeholders returns n bind parameters starting at index from.
func (qs queries) placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = qs.d.Placeholder(from + i)
	}
	return strings.Join(ps, ", ")
}

// ----------------------------------------------------------------------------
// Risk items
// ----------------------------------------------------------------------------

const riskSelect = `SELECT r.id, r.assessment_number, r.asset_id, a.name,
	r.operation, r.platform, r.model_ref, r.stride_code, r.stride_description,
	r.finding_number, r.severity, r.pre_exploit_risk, r.pre_risk_rating,
	r.post_exploit_risk, r.post_risk_rating, r.review_status, r.notes,
	r.control_refs, r.reference_docs, r.reviewed_by, r.reviewed_at,
	r.version, r.created_at, r.updated_at
	FROM risk_assessments r JOIN assets a ON a.id = r.asset_id`

// searchColumns are matched by RiskFilter.Search.
var searchColumns = []string{"a.name", "r.stride_description", "r.finding_number", "r.notes"}

var sortColumns = map[core.SortColumn]string{
	core.SortNumber:   "r.assessment_number",
	core.SortAsset:    "a.name",
	core.SortSeverity: "r.severity",
	core.SortStatus:   "r.review_status",
	core.SortRating:   "r.post_risk_rating",
	core.SortUpdated:  "r.updated_at",
	core.SortID:       "r.id",
}

func scanRisk(sc row) (*core.RiskAssessment, error) {
	var (
		r      core.RiskAssessment
		status string
	)
	err := sc.Scan(
		&r.ID, &r.AssessmentNumber, &r.AssetID, &r.AssetName,
		&r.Operation, &r.Platform, &r.ModelRef, &r.StrideCode, &r.StrideDescription,
		&r.FindingNumber, &r.Severity, &r.PreExploitRisk, &r.PreRiskRating,
		&r.PostExploitRisk, &r.PostRiskRating, &status, &r.Notes,
		&r.ControlRefs, &r.ReferenceDocs, &r.ReviewedBy, &r.ReviewedAt,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ReviewStatus = core.ReviewStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if r.ReviewedAt != nil {
		t := r.ReviewedAt.UTC()
		r.ReviewedAt = &t
	}
	return &r, nil
}

func (qs queries) GetRisk(ctx context.Context, id int64) (*core.RiskAssessment, error) {
	r, err := scanRisk(qs.q.queryRow(ctx, riskSelect+" WHERE r.id = "+qs.d.Placeholder(1), id))
	if err != nil {
		if isNoRows(err) {
			return nil, &core.NotFoundError{Entity: "risk", ID: id}
		}
		return nil, fmt.Errorf("get risk %d: %w", id, err)
	}
	return r, nil
}

func (qs queries) riskWhere(f core.RiskFilter) *WhereBuilder {
	wb := NewWhereBuilder(qs.d)
	wb.Add("r.review_status", string(f.Status))
	wb.Add("r.asset_id", f.AssetID)
	wb.Add("r.severity", f.Severity)
	wb.Add("r.stride_code", f.StrideCode)
	wb.Add("r.post_risk_rating", f.PostRiskRating)
	wb.AddSearch(f.Search, searchColumns...)
	return wb
}

func (qs queries) ListRisks(ctx context.Context, q core.RiskQuery) ([]core.RiskAssessment, int64, error) {
	wb := qs.riskWhere(q.Filter)
	where, args := wb.Build()

	var total int64
	countQuery := "SELECT COUNT(*) FROM risk_assessments r JOIN assets a ON a.id = r.asset_id" + where
	if err := qs.q.queryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count risks: %w", err)
	}

	col, ok := sortColumns[q.Sort.Column]
	if !ok {
		col = sortColumns[core.SortNumber]
	}
	dir := "ASC"
	if q.Sort.Desc {
		dir = "DESC"
	}
	query := riskSelect + where + fmt.Sprintf(" ORDER BY %s %s, r.id ASC", col, dir)
	if q.Limit > 0 {
		n := wb.NextArgIndex()
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", qs.d.Placeholder(n), qs.d.Placeholder(n+1))
		args = append(args, q.Limit, q.Offset)
	}

	rs, err := qs.q.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list risks: %w", err)
	}
	defer rs.Close()

	risks := make([]core.RiskAssessment, 0)
	for rs.Next() {
		r, err := scanRisk(rs)
		if err != nil {
			return nil, 0, fmt.Errorf("scan risk: %w", err)
		}
		risks = append(risks, *r)
	}
	if err := rs.Err(); err != nil {
		return nil, 0, err
	}
	return risks, total, nil
}

var groupColumns = map[core.GroupColumn]string{
	core.GroupStatus:     "review_status",
	core.GroupPostRating: "post_risk_rating",
	core.GroupStride:     "stride_code",
	core.GroupSeverity:   "severity",
}

func (qs queries) CountRisksBy(ctx context.Context, column core.GroupColumn) (map[string]int64, error) {
	col, ok := groupColumns[column]
	if !ok {
		return nil, fmt.Errorf("unknown group column %q", column)
	}

	rs, err := qs.q.query(ctx, fmt.Sprintf("SELECT %[1]s, COUNT(*) FROM risk_assessments GROUP BY %[1]s", col))
	if err != nil {
		return nil, fmt.Errorf("count risks by %s: %w", col, err)
	}
	defer rs.Close()

	counts := make(map[string]int64)
	for rs.Next() {
		var (
			key string
			n   int64
		)
		if err := rs.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rs.Err()
}

func (tq *txQueries) RiskIndex(ctx context.Context) (map[core.RiskKey]int64, error) {
	rs, err := tq.q.query(ctx, `SELECT id, asset_id, stride_code, assessment_number, finding_number FROM risk_assessments`)
	if err != nil {
		return nil, fmt.Errorf("load risk index: %w", err)
	}
	defer rs.Close()

	index := make(map[core.RiskKey]int64)
	for rs.Next() {
		var (
			id  int64
			key core.RiskKey
		)
		if err := rs.Scan(&id, &key.AssetID, &key.StrideCode, &key.AssessmentNumber, &key.FindingNumber); err != nil {
			return nil, err
		}
		index[key] = id
	}
	return index, rs.Err()
}

func (tq *txQueries) InsertRisk(ctx context.Context, r *core.RiskAssessment) error {
	query := `INSERT INTO risk_assessments (assessment_number, asset_id, operation, platform,
		model_ref, stride_code, stride_description, finding_number, severity,
		pre_exploit_risk, pre_risk_rating, post_exploit_risk, post_risk_rating,
		review_status, notes, control_refs, reference_docs, reviewed_by, reviewed_at,
		version, created_at, updated_at)
		VALUES (` + tq.placeholders(1, 22) + `) RETURNING id`

	err := tq.q.queryRow(ctx, query,
		r.AssessmentNumber, r.AssetID, r.Operation, r.Platform,
		r.ModelRef, r.StrideCode, r.StrideDescription, r.FindingNumber, r.Severity,
		r.PreExploitRisk, r.PreRiskRating, r.PostExploitRisk, r.PostRiskRating,
		string(r.ReviewStatus), r.Notes, r.ControlRefs, r.ReferenceDocs, r.ReviewedBy, utcPtr(r.ReviewedAt),
		r.Version, r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert risk: %w", err)
	}
	return nil
}

func (tq *txQueries) UpdateRisk(ctx context.Context, r *core.RiskAssessment, prevVersion int) error {
	p := tq.d.Placeholder
	query := fmt.Sprintf(`UPDATE risk_assessments SET post_exploit_risk = %s, post_risk_rating = %s,
		review_status = %s, notes = %s, reviewed_by = %s, reviewed_at = %s,
		version = %s, updated_at = %s
		WHERE id = %s AND version = %s`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10))

	n, err := tq.q.exec(ctx, query,
		r.PostExploitRisk, r.PostRiskRating, string(r.ReviewStatus), r.Notes,
		r.ReviewedBy, utcPtr(r.ReviewedAt), r.Version, r.UpdatedAt.UTC(),
		r.ID, prevVersion,
	)
	if err != nil {
		return fmt.Errorf("update risk %d: %w", r.ID, err)
	}
	if n == 0 {
		current, err := tq.GetRisk(ctx, r.ID)
		if err != nil {
			return err
		}
		return &core.ConflictError{RiskID: r.ID, Expected: prevVersion, Actual: current.Version}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Assets and controls
// ----------------------------------------------------------------------------

func (qs queries) ListAssets(ctx context.Context) ([]core.AssetSummary, error) {
	rs, err := qs.q.query(ctx, `SELECT a.id, a.name, a.asset_type, a.description, a.created_at, COUNT(r.id)
		FROM assets a LEFT JOIN risk_assessments r ON r.asset_id = a.id
		GROUP BY a.id, a.name, a.asset_type, a.description, a.created_at
		ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rs.Close()

	assets := make([]core.AssetSummary, 0)
	for rs.Next() {
		var (
			a  core.AssetSummary
			at string
		)
		if err := rs.Scan(&a.ID, &a.Name, &at, &a.Description, &a.CreatedAt, &a.RiskCount); err != nil {
			return nil, err
		}
		a.AssetType = core.AssetType(at)
		a.CreatedAt = a.CreatedAt.UTC()
		assets = append(assets, a)
	}
	return assets, rs.Err()
}

func (qs queries) ListControls(ctx context.Context) ([]core.Control, error) {
	rs, err := qs.q.query(ctx, `SELECT id, name, description, category_tag, is_active, created_at
		FROM controls ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list controls: %w", err)
	}
	defer rs.Close()

	controls := make([]core.Control, 0)
	for rs.Next() {
		var c core.Control
		if err := rs.Scan(&c.ID, &c.Name, &c.Description, &c.CategoryTag, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		controls = append(controls, c)
	}
	return controls, rs.Err()
}

func (tq *txQueries) nameIndex(ctx context.Context, table string) (map[string]int64, error) {
	rs, err := tq.q.query(ctx, "SELECT id, name FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("load %s index: %w", table, err)
	}
	defer rs.Close()

	index := make(map[string]int64)
	for rs.Next() {
		var (
			id   int64
			name string
		)
		if err := rs.Scan(&id, &name); err != nil {
			return nil, err
		}
		index[name] = id
	}
	return index, rs.Err()
}

func (tq *txQueries) AssetIndex(ctx context.Context) (map[string]int64, error) {
	return tq.nameIndex(ctx, "assets")
}

func (tq *txQueries) ControlIndex(ctx context.Context) (map[string]int64, error) {
	return tq.nameIndex(ctx, "controls")
}

func (tq *txQueries) InsertAsset(ctx context.Context, a *core.Asset) error {
	query := `INSERT INTO assets (name, asset_type, description, created_at) VALUES (` +
		tq.placeholders(1, 4) + `) RETURNING id`
	if err := tq.q.queryRow(ctx, query, a.Name, string(a.AssetType), a.Description, a.CreatedAt.UTC()).Scan(&a.ID); err != nil {
		return fmt.Errorf("insert asset %q: %w", a.Name, err)
	}
	return nil
}

func (tq *txQueries) InsertControl(ctx context.Context, c *core.Control) error {
	query := `INSERT INTO controls (name, description, category_tag, is_active, created_at) VALUES (` +
		tq.placeholders(1, 5) + `) RETURNING id`
	if err := tq.q.queryRow(ctx, query, c.Name, c.Description, c.CategoryTag, c.IsActive, c.CreatedAt.UTC()).Scan(&c.ID); err != nil {
		return fmt.Errorf("insert control %q: %w", c.Name, err)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Audit log
// ----------------------------------------------------------------------------

func (qs queries) ListAuditEntries(ctx context.Context, q core.AuditQuery) ([]core.AuditEntry, int64, error) {
	wb := NewWhereBuilder(qs.d)
	wb.Add("risk_id", q.RiskID)
	wb.Add("field_name", string(q.Field))
	wb.Add("actor", q.Actor)
	where, args := wb.Build()

	var total int64
	if err := qs.q.queryRow(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `SELECT id, risk_id, field_name, old_value, new_value, actor, batch_id, changed_at
		FROM audit_log` + where + ` ORDER BY changed_at DESC, id DESC`
	if q.Limit > 0 {
		n := wb.NextArgIndex()
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", qs.d.Placeholder(n), qs.d.Placeholder(n+1))
		args = append(args, q.Limit, q.Offset)
	}

	rs, err := qs.q.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rs.Close()

	entries := make([]core.AuditEntry, 0)
	for rs.Next() {
		var (
			e     core.AuditEntry
			field string
		)
		if err := rs.Scan(&e.ID, &e.RiskID, &field, &e.OldValue, &e.NewValue, &e.Actor, &e.BatchID, &e.ChangedAt); err != nil {
			return nil, 0, err
		}
		e.Field = core.Field(field)
		e.ChangedAt = e.ChangedAt.UTC()
		entries = append(entries, e)
	}
	if err := rs.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (tq *txQueries) InsertAuditEntry(ctx context.Context, e *core.AuditEntry) error {
	query := `INSERT INTO audit_log (risk_id, field_name, old_value, new_value, actor, batch_id, changed_at)
		VALUES (` + tq.placeholders(1, 7) + `) RETURNING id`
	err := tq.q.queryRow(ctx, query,
		e.RiskID, string(e.Field), e.OldValue, e.NewValue, e.Actor, e.BatchID, e.ChangedAt.UTC(),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
