// Package storetest holds the behavior every core.Store implementation must
// share. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// Run exercises store, which must be empty.
func Run(t *testing.T, open func(t *testing.T) core.Store) {
	t.Helper()

	t.Run("insert and get", func(t *testing.T) { testInsertAndGet(t, open(t)) })
	t.Run("rollback discards writes", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("filter and page", func(t *testing.T) { testFilterAndPage(t, open(t)) })
	t.Run("update checks version", func(t *testing.T) { testUpdateVersion(t, open(t)) })
	t.Run("audit entries newest first", func(t *testing.T) { testAuditOrder(t, open(t)) })
	t.Run("count by column", func(t *testing.T) { testCountBy(t, open(t)) })
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// seed creates two assets with five risk items between them and returns the
// risk IDs in insertion order.
func seed(t *testing.T, s core.Store) []int64 {
	t.Helper()
	ctx := context.Background()

	var ids []int64
	err := s.InTx(ctx, func(tx core.Tx) error {
		web := &core.Asset{Name: "Web Server", AssetType: core.AssetComponent, CreatedAt: base}
		flow := &core.Asset{Name: "Browser to Web Server", AssetType: core.AssetDataFlow, CreatedAt: base}
		for _, a := range []*core.Asset{web, flow} {
			if err := tx.InsertAsset(ctx, a); err != nil {
				return err
			}
		}
		if err := tx.InsertControl(ctx, &core.Control{Name: "MFA", CategoryTag: "AUTH", IsActive: true, CreatedAt: base}); err != nil {
			return err
		}

		rows := []core.RiskAssessment{
			{AssessmentNumber: 1, AssetID: web.ID, StrideCode: "S", Severity: "High", ReviewStatus: core.StatusPending, Notes: "needs TLS pinning"},
			{AssessmentNumber: 2, AssetID: web.ID, StrideCode: "T", Severity: "Low", ReviewStatus: core.StatusPending},
			{AssessmentNumber: 3, AssetID: flow.ID, StrideCode: "I", Severity: "High", ReviewStatus: core.StatusReviewed, FindingNumber: "F-7"},
			{AssessmentNumber: 4, AssetID: flow.ID, StrideCode: "D", Severity: "Medium", ReviewStatus: core.StatusPending},
			{AssessmentNumber: 5, AssetID: web.ID, StrideCode: "S", Severity: "High", ReviewStatus: core.StatusApproved, PostRiskRating: "Low"},
		}
		for i := range rows {
			r := rows[i]
			r.Version = 1
			r.CreatedAt, r.UpdatedAt = base, base.Add(time.Duration(i)*time.Minute)
			if err := tx.InsertRisk(ctx, &r); err != nil {
				return err
			}
			ids = append(ids, r.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ids
}

func testInsertAndGet(t *testing.T, s core.Store) {
	ctx := context.Background()
	ids := seed(t, s)

	got, err := s.GetRisk(ctx, ids[2])
	if err != nil {
		t.Fatalf("GetRisk() error = %v", err)
	}
	if got.AssetName != "Browser to Web Server" || got.StrideCode != "I" || got.FindingNumber != "F-7" {
		t.Errorf("GetRisk() = %+v", got)
	}
	if !got.UpdatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, base.Add(2*time.Minute))
	}
	if got.ReviewedAt != nil {
		t.Errorf("ReviewedAt = %v, want nil", got.ReviewedAt)
	}

	if _, err := s.GetRisk(ctx, 9999); !core.IsNotFound(err) {
		t.Errorf("GetRisk(missing) error = %v, want NotFoundError", err)
	}

	assets, err := s.ListAssets(ctx)
	if err != nil {
		t.Fatalf("ListAssets() error = %v", err)
	}
	if len(assets) != 2 || assets[0].Name != "Browser to Web Server" || assets[0].RiskCount != 2 || assets[1].RiskCount != 3 {
		t.Errorf("ListAssets() = %+v", assets)
	}

	controls, err := s.ListControls(ctx)
	if err != nil {
		t.Fatalf("ListControls() error = %v", err)
	}
	if len(controls) != 1 || controls[0].Name != "MFA" || !controls[0].IsActive {
		t.Errorf("ListControls() = %+v", controls)
	}

	err = s.InTx(ctx, func(tx core.Tx) error {
		assets, err := tx.AssetIndex(ctx)
		if err != nil {
			return err
		}
		if len(assets) != 2 {
			t.Errorf("AssetIndex() = %v", assets)
		}
		risks, err := tx.RiskIndex(ctx)
		if err != nil {
			return err
		}
		key := core.RiskKey{AssetID: assets["Browser to Web Server"], StrideCode: "I", AssessmentNumber: 3, FindingNumber: "F-7"}
		if risks[key] != ids[2] {
			t.Errorf("RiskIndex()[%+v] = %d, want %d", key, risks[key], ids[2])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}
}

func testRollback(t *testing.T, s core.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx core.Tx) error {
		if err := tx.InsertAsset(ctx, &core.Asset{Name: "Temp", AssetType: core.AssetComponent, CreatedAt: base}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	assets, err := s.ListAssets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 0 {
		t.Errorf("assets after rollback = %+v, want none", assets)
	}
}

func testFilterAndPage(t *testing.T, s core.Store) {
	ctx := context.Background()
	ids := seed(t, s)

	tests := []struct {
		name    string
		query   core.RiskQuery
		want    []int64
		wantTot int64
	}{
		{"all by number", core.RiskQuery{}, ids, 5},
		{"status", core.RiskQuery{Filter: core.RiskFilter{Status: core.StatusPending}}, []int64{ids[0], ids[1], ids[3]}, 3},
		{"severity and stride", core.RiskQuery{Filter: core.RiskFilter{Severity: "High", StrideCode: "S"}}, []int64{ids[0], ids[4]}, 2},
		{"search notes case-insensitive", core.RiskQuery{Filter: core.RiskFilter{Search: "tls"}}, []int64{ids[0]}, 1},
		{"search asset name", core.RiskQuery{Filter: core.RiskFilter{Search: "browser"}}, []int64{ids[2], ids[3]}, 2},
		{"search wildcard is literal", core.RiskQuery{Filter: core.RiskFilter{Search: "%"}}, []int64{}, 0},
		{"page two", core.RiskQuery{Limit: 2, Offset: 2}, []int64{ids[2], ids[3]}, 5},
		{"past the end", core.RiskQuery{Limit: 2, Offset: 10}, []int64{}, 5},
		{"severity desc, ties by id", core.RiskQuery{Sort: core.SortSpec{Column: core.SortSeverity, Desc: true}}, []int64{ids[3], ids[1], ids[0], ids[2], ids[4]}, 5},
		{"updated desc", core.RiskQuery{Sort: core.SortSpec{Column: core.SortUpdated, Desc: true}, Limit: 2}, []int64{ids[4], ids[3]}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := s.ListRisks(ctx, tt.query)
			if err != nil {
				t.Fatalf("ListRisks() error = %v", err)
			}
			if total != tt.wantTot {
				t.Errorf("total = %d, want %d", total, tt.wantTot)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("row %d id = %d, want %d", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func testUpdateVersion(t *testing.T, s core.Store) {
	ctx := context.Background()
	ids := seed(t, s)

	reviewedAt := base.Add(time.Hour)
	err := s.InTx(ctx, func(tx core.Tx) error {
		r, err := tx.GetRisk(ctx, ids[0])
		if err != nil {
			return err
		}
		r.ReviewStatus = core.StatusApproved
		r.ReviewedBy = "alice"
		r.ReviewedAt = &reviewedAt
		r.Notes = "approved"
		r.Version = 2
		r.UpdatedAt = reviewedAt
		return tx.UpdateRisk(ctx, r, 1)
	})
	if err != nil {
		t.Fatalf("UpdateRisk() error = %v", err)
	}

	got, err := s.GetRisk(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || got.ReviewStatus != core.StatusApproved || got.Notes != "approved" {
		t.Errorf("after update = %+v", got)
	}
	if got.ReviewedAt == nil || !got.ReviewedAt.Equal(reviewedAt) {
		t.Errorf("ReviewedAt = %v, want %v", got.ReviewedAt, reviewedAt)
	}

	err = s.InTx(ctx, func(tx core.Tx) error {
		r, err := tx.GetRisk(ctx, ids[0])
		if err != nil {
			return err
		}
		r.Notes = "stale write"
		r.Version = 2
		return tx.UpdateRisk(ctx, r, 1)
	})
	var ce *core.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("stale UpdateRisk() error = %v, want ConflictError", err)
	}
	if ce.Expected != 1 || ce.Actual != 2 {
		t.Errorf("ConflictError = %+v", ce)
	}

	got, _ = s.GetRisk(ctx, ids[0])
	if got.Notes != "approved" {
		t.Errorf("Notes after conflict = %q, want unchanged", got.Notes)
	}
}

func testAuditOrder(t *testing.T, s core.Store) {
	ctx := context.Background()
	ids := seed(t, s)

	err := s.InTx(ctx, func(tx core.Tx) error {
		entries := []core.AuditEntry{
			{RiskID: ids[0], Field: core.FieldNotes, OldValue: "", NewValue: "a", Actor: "alice", ChangedAt: base},
			{RiskID: ids[0], Field: core.FieldReviewStatus, OldValue: "Pending", NewValue: "Reviewed", Actor: "bob", ChangedAt: base.Add(time.Minute)},
			{RiskID: ids[1], Field: core.FieldNotes, OldValue: "", NewValue: "b", Actor: "alice", ChangedAt: base.Add(time.Minute)},
		}
		for i := range entries {
			if err := tx.InsertAuditEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InsertAuditEntry() error = %v", err)
	}

	got, total, err := s.ListAuditEntries(ctx, core.AuditQuery{RiskID: ids[0]})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("entries = %d (total %d), want 2", len(got), total)
	}
	if got[0].Field != core.FieldReviewStatus || got[1].Field != core.FieldNotes {
		t.Errorf("order = %s, %s; want newest first", got[0].Field, got[1].Field)
	}

	got, total, err = s.ListAuditEntries(ctx, core.AuditQuery{Actor: "alice", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(got) != 1 || got[0].RiskID != ids[1] {
		t.Errorf("alice page = %+v (total %d)", got, total)
	}

	err = s.InTx(ctx, func(tx core.Tx) error {
		return tx.InsertAuditEntry(ctx, &core.AuditEntry{RiskID: 9999, Field: core.FieldNotes, Actor: "x", ChangedAt: base})
	})
	if err == nil {
		t.Error("audit entry for missing risk was accepted")
	}
}

func testCountBy(t *testing.T, s core.Store) {
	ctx := context.Background()
	seed(t, s)

	got, err := s.CountRisksBy(ctx, core.GroupStatus)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{"Pending": 3, "Reviewed": 1, "Approved": 1}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("count[%s] = %d, want %d", k, got[k], v)
		}
	}
	if len(got) != len(want) {
		t.Errorf("CountRisksBy() = %v", got)
	}
}
