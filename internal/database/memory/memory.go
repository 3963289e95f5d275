// Package memory is an in-process core.Store. It keeps the same uniqueness
// and foreign-key rules as the SQL stores and is used by tests and by
// DATABASE_URL=memory://.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// state is one consistent snapshot of every table.
type state struct {
	assets   []core.Asset
	controls []core.Control
	risks    []core.RiskAssessment
	audit    []core.AuditEntry

	nextAsset, nextControl, nextRisk, nextAudit int64
}

func (s *state) clone() *state {
	c := *s
	c.assets = append([]core.Asset(nil), s.assets...)
	c.controls = append([]core.Control(nil), s.controls...)
	c.risks = make([]core.RiskAssessment, len(s.risks))
	for i := range s.risks {
		c.risks[i] = copyRisk(s.risks[i])
	}
	c.audit = append([]core.AuditEntry(nil), s.audit...)
	return &c
}

func copyRisk(r core.RiskAssessment) core.RiskAssessment {
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		r.ReviewedAt = &t
	}
	return r
}

// Store is a mutex-guarded core.Store. Transactions run on a private copy of
// the state that replaces the shared one on commit, so a failed transaction
// leaves no trace. Transactions are serialized.
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *state
}

var (
	_ core.Store = (*Store)(nil)
	_ core.Tx    = (*tx)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{state: &state{}}
}

func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(&tx{reader{work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

// Migrate is a no-op; the store has no schema.
func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) GetRisk(ctx context.Context, id int64) (*core.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.state}.GetRisk(ctx, id)
}

func (s *Store) ListRisks(ctx context.Context, q core.RiskQuery) ([]core.RiskAssessment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.state}.ListRisks(ctx, q)
}

func (s *Store) ListAssets(ctx context.Context) ([]core.AssetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.state}.ListAssets(ctx)
}

func (s *Store) ListControls(ctx context.Context) ([]core.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.state}.ListControls(ctx)
}

func (s *Store) ListAuditEntries(ctx context.Context, q core.AuditQuery) ([]core.AuditEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.state}.ListAuditEntries(ctx, q)
}

func (s *Store) CountRisksBy(ctx context.Context, column core.GroupColumn) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.state}.CountRisksBy(ctx, column)
}

// reader implements core.Reader over one state. Every result is a copy.
type reader struct {
	st *state
}

func (r reader) assetName(id int64) string {
	for _, a := range r.st.assets {
		if a.ID == id {
			return a.Name
		}
	}
	return ""
}

func (r reader) withAsset(risk core.RiskAssessment) core.RiskAssessment {
	risk = copyRisk(risk)
	risk.AssetName = r.assetName(risk.AssetID)
	return risk
}

func (r reader) GetRisk(_ context.Context, id int64) (*core.RiskAssessment, error) {
	for _, risk := range r.st.risks {
		if risk.ID == id {
			out := r.withAsset(risk)
			return &out, nil
		}
	}
	return nil, &core.NotFoundError{Entity: "risk", ID: id}
}

func (r reader) ListRisks(ctx context.Context, q core.RiskQuery) ([]core.RiskAssessment, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	matched := make([]core.RiskAssessment, 0)
	for _, risk := range r.st.risks {
		risk = r.withAsset(risk)
		if matches(&risk, q.Filter) {
			matched = append(matched, risk)
		}
	}

	less := lessFunc(q.Sort.Column)
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := &matched[i], &matched[j]
		if less(a, b) {
			return !q.Sort.Desc
		}
		if less(b, a) {
			return q.Sort.Desc
		}
		return a.ID < b.ID
	})

	total := int64(len(matched))
	if q.Limit > 0 {
		start := min(max(q.Offset, 0), len(matched))
		end := min(start+q.Limit, len(matched))
		matched = matched[start:end]
	}
	return matched, total, nil
}

func matches(r *core.RiskAssessment, f core.RiskFilter) bool {
	if f.Status != "" && r.ReviewStatus != f.Status {
		return false
	}
	if f.AssetID != 0 && r.AssetID != f.AssetID {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.StrideCode != "" && r.StrideCode != f.StrideCode {
		return false
	}
	if f.PostRiskRating != "" && r.PostRiskRating != f.PostRiskRating {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		for _, v := range []string{r.AssetName, r.StrideDescription, r.FindingNumber, r.Notes} {
			if strings.Contains(strings.ToLower(v), term) {
				return true
			}
		}
		return false
	}
	return true
}

func lessFunc(col core.SortColumn) func(a, b *core.RiskAssessment) bool {
	switch col {
	case core.SortAsset:
		return func(a, b *core.RiskAssessment) bool { return a.AssetName < b.AssetName }
	case core.SortSeverity:
		return func(a, b *core.RiskAssessment) bool { return a.Severity < b.Severity }
	case core.SortStatus:
		return func(a, b *core.RiskAssessment) bool { return a.ReviewStatus < b.ReviewStatus }
	case core.SortRating:
		return func(a, b *core.RiskAssessment) bool { return a.PostRiskRating < b.PostRiskRating }
	case core.SortUpdated:
		return func(a, b *core.RiskAssessment) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case core.SortID:
		return func(a, b *core.RiskAssessment) bool { return a.ID < b.ID }
	default:
		return func(a, b *core.RiskAssessment) bool { return a.AssessmentNumber < b.AssessmentNumber }
	}
}

func (r reader) ListAssets(context.Context) ([]core.AssetSummary, error) {
	counts := make(map[int64]int64)
	for _, risk := range r.st.risks {
		counts[risk.AssetID]++
	}
	out := make([]core.AssetSummary, 0, len(r.st.assets))
	for _, a := range r.st.assets {
		out = append(out, core.AssetSummary{Asset: a, RiskCount: counts[a.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r reader) ListControls(context.Context) ([]core.Control, error) {
	out := append([]core.Control{}, r.st.controls...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r reader) ListAuditEntries(_ context.Context, q core.AuditQuery) ([]core.AuditEntry, int64, error) {
	out := make([]core.AuditEntry, 0)
	for _, e := range r.st.audit {
		if q.RiskID != 0 && e.RiskID != q.RiskID {
			continue
		}
		if q.Field != "" && e.Field != q.Field {
			continue
		}
		if q.Actor != "" && e.Actor != q.Actor {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ChangedAt.After(out[j].ChangedAt)
		}
		return out[i].ID > out[j].ID
	})

	total := int64(len(out))
	if q.Limit > 0 {
		start := min(max(q.Offset, 0), len(out))
		end := min(start+q.Limit, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (r reader) CountRisksBy(_ context.Context, column core.GroupColumn) (map[string]int64, error) {
	var key func(*core.RiskAssessment) string
	switch column {
	case core.GroupStatus:
		key = func(r *core.RiskAssessment) string { return string(r.ReviewStatus) }
	case core.GroupPostRating:
		key = func(r *core.RiskAssessment) string { return r.PostRiskRating }
	case core.GroupStride:
		key = func(r *core.RiskAssessment) string { return r.StrideCode }
	case core.GroupSeverity:
		key = func(r *core.RiskAssessment) string { return r.Severity }
	default:
		return nil, fmt.Errorf("unknown group column %q", column)
	}

	counts := make(map[string]int64)
	for i := range r.st.risks {
		counts[key(&r.st.risks[i])]++
	}
	return counts, nil
}

// tx implements core.Tx over a private state copy.
type tx struct {
	reader
}

func (t *tx) AssetIndex(context.Context) (map[string]int64, error) {
	index := make(map[string]int64, len(t.st.assets))
	for _, a := range t.st.assets {
		index[a.Name] = a.ID
	}
	return index, nil
}

func (t *tx) ControlIndex(context.Context) (map[string]int64, error) {
	index := make(map[string]int64, len(t.st.controls))
	for _, c := range t.st.controls {
		index[c.Name] = c.ID
	}
	return index, nil
}

func (t *tx) RiskIndex(context.Context) (map[core.RiskKey]int64, error) {
	index := make(map[core.RiskKey]int64, len(t.st.risks))
	for i := range t.st.risks {
		index[t.st.risks[i].Key()] = t.st.risks[i].ID
	}
	return index, nil
}

func (t *tx) InsertAsset(_ context.Context, a *core.Asset) error {
	for _, existing := range t.st.assets {
		if existing.Name == a.Name {
			return fmt.Errorf("insert asset %q: duplicate key", a.Name)
		}
	}
	t.st.nextAsset++
	a.ID = t.st.nextAsset
	t.st.assets = append(t.st.assets, *a)
	return nil
}

func (t *tx) InsertControl(_ context.Context, c *core.Control) error {
	for _, existing := range t.st.controls {
		if existing.Name == c.Name {
			return fmt.Errorf("insert control %q: duplicate key", c.Name)
		}
	}
	t.st.nextControl++
	c.ID = t.st.nextControl
	t.st.controls = append(t.st.controls, *c)
	return nil
}

func (t *tx) InsertRisk(_ context.Context, r *core.RiskAssessment) error {
	if t.assetName(r.AssetID) == "" {
		return fmt.Errorf("insert risk: foreign key: asset %d does not exist", r.AssetID)
	}
	key := r.Key()
	for i := range t.st.risks {
		if t.st.risks[i].Key() == key {
			return fmt.Errorf("insert risk: duplicate key %+v", key)
		}
	}
	t.st.nextRisk++
	r.ID = t.st.nextRisk
	stored := copyRisk(*r)
	stored.AssetName = ""
	t.st.risks = append(t.st.risks, stored)
	return nil
}

func (t *tx) UpdateRisk(_ context.Context, r *core.RiskAssessment, prevVersion int) error {
	for i := range t.st.risks {
		cur := &t.st.risks[i]
		if cur.ID != r.ID {
			continue
		}
		if cur.Version != prevVersion {
			return &core.ConflictError{RiskID: r.ID, Expected: prevVersion, Actual: cur.Version}
		}
		updated := copyRisk(*r)
		cur.PostExploitRisk = updated.PostExploitRisk
		cur.PostRiskRating = updated.PostRiskRating
		cur.ReviewStatus = updated.ReviewStatus
		cur.Notes = updated.Notes
		cur.ReviewedBy = updated.ReviewedBy
		cur.ReviewedAt = updated.ReviewedAt
		cur.Version = updated.Version
		cur.UpdatedAt = updated.UpdatedAt
		return nil
	}
	return &core.NotFoundError{Entity: "risk", ID: r.ID}
}

func (t *tx) InsertAuditEntry(_ context.Context, e *core.AuditEntry) error {
	if _, err := t.GetRisk(context.Background(), e.RiskID); err != nil {
		return fmt.Errorf("insert audit entry: foreign key: %w", err)
	}
	t.st.nextAudit++
	e.ID = t.st.nextAudit
	t.st.audit = append(t.st.audit, *e)
	return nil
}
