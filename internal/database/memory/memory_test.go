package memory

import (
	"context"
	"testing"

	"github.com/JonMunkholm/RiskTracker/internal/core"
	"github.com/JonMunkholm/RiskTracker/internal/database/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store { return New() })
}

func TestGetRiskReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	var id int64
	err := s.InTx(ctx, func(tx core.Tx) error {
		a := &core.Asset{Name: "API"}
		if err := tx.InsertAsset(ctx, a); err != nil {
			return err
		}
		r := &core.RiskAssessment{AssetID: a.ID, StrideCode: "S", Version: 1}
		if err := tx.InsertRisk(ctx, r); err != nil {
			return err
		}
		id = r.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	r, _ := s.GetRisk(ctx, id)
	r.Notes = "mutated outside a transaction"

	again, _ := s.GetRisk(ctx, id)
	if again.Notes != "" {
		t.Errorf("stored risk changed through a returned copy: %q", again.Notes)
	}
}

func TestInsertRiskRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(tx core.Tx) error {
		a := &core.Asset{Name: "API"}
		if err := tx.InsertAsset(ctx, a); err != nil {
			return err
		}
		if err := tx.InsertRisk(ctx, &core.RiskAssessment{AssetID: a.ID, StrideCode: "S", AssessmentNumber: 1}); err != nil {
			return err
		}
		return tx.InsertRisk(ctx, &core.RiskAssessment{AssetID: a.ID, StrideCode: "S", AssessmentNumber: 1})
	})
	if err == nil {
		t.Fatal("duplicate natural key was accepted")
	}
	if got := core.MapError(err).Code; got != "DB001" {
		t.Errorf("MapError code = %q, want DB001", got)
	}
}

func TestListWindowOutOfRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.InTx(ctx, func(tx core.Tx) error {
		a := &core.Asset{Name: "API"}
		if err := tx.InsertAsset(ctx, a); err != nil {
			return err
		}
		return tx.InsertRisk(ctx, &core.RiskAssessment{AssetID: a.ID, StrideCode: "S", AssessmentNumber: 1, Version: 1})
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, offset := range []int{-50, 1 << 30} {
		rows, total, err := s.ListRisks(ctx, core.RiskQuery{Limit: 50, Offset: offset})
		if err != nil {
			t.Fatalf("ListRisks(offset %d) error = %v", offset, err)
		}
		if total != 1 {
			t.Errorf("ListRisks(offset %d) total = %d, want 1", offset, total)
		}
		if offset < 0 && len(rows) != 1 {
			t.Errorf("negative offset returned %d rows, want the first page", len(rows))
		}
		if offset > 0 && len(rows) != 0 {
			t.Errorf("offset past the end returned %d rows", len(rows))
		}

		entries, _, err := s.ListAuditEntries(ctx, core.AuditQuery{Limit: 50, Offset: offset})
		if err != nil || len(entries) != 0 {
			t.Errorf("ListAuditEntries(offset %d) = %d entries, %v", offset, len(entries), err)
		}
	}
}
