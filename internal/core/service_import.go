package core

// service_import.go implements the workbook import pipeline.
//
// The flow is:
//  1. Resolve both sheets and validate their headers (fail fast, no writes)
//  2. Map every row; rows missing required values are skipped and reported
//  3. Transaction 1: create missing assets named by the risk sheet
//  4. Transaction 2: create missing controls
//  5. Transaction 3: create missing risk items
//
// Each transaction starts by loading the natural-key index it needs, and
// consults it before every insert. Existing records are reused, never updated,
// so re-running an import creates nothing and keeps edits made through Save.

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/RiskTracker/internal/logging"
	"github.com/JonMunkholm/RiskTracker/internal/workbook"
)

// parsedRisk is a mapped risk row and its 1-based sheet row number.
type parsedRisk struct {
	row  int
	risk *RiskAssessment
}

// Import reads an xlsx workbook and upserts its assets, controls and risk items.
//
// A non-nil report is returned whenever the workbook passed validation, even
// if a later sheet failed; the error then names the sheet that was rolled back.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	wb, err := workbook.Read(r)
	if err != nil {
		verr := &ValidationError{Field: "file", Message: "not a valid xlsx workbook (" + err.Error() + ")"}
		s.recorder.ImportFinished(nil, verr)
		return nil, verr
	}
	return s.ImportWorkbook(ctx, wb)
}

// ImportWorkbook runs the import pipeline over an already parsed workbook.
func (s *Service) ImportWorkbook(ctx context.Context, wb *workbook.Workbook) (report *ImportReport, err error) {
	defer func() { s.recorder.ImportFinished(report, err) }()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	report = &ImportReport{ImportID: uuid.NewString(), Errors: []RowError{}}
	logger := logging.WithFields(ctx, "import_id", report.ImportID)

	riskRows, riskIdx, err := s.sheet(wb, s.cfg.RiskSheet, RiskColumns)
	if err != nil {
		return nil, err
	}
	controlRows, controlIdx, err := s.sheet(wb, s.cfg.ControlSheet, ControlColumns)
	if err != nil {
		return nil, err
	}

	logger.Info("import started",
		"risk_rows", len(riskRows)-1,
		"control_rows", len(controlRows)-1,
	)

	var risks []parsedRisk
	for i, row := range riskRows[1:] {
		if isBlankRow(row) {
			continue
		}
		risk, rowErr := riskFromRow(riskIdx, row)
		if rowErr != nil {
			rowErr.Sheet, rowErr.Row = s.cfg.RiskSheet, i+2
			report.skip(*rowErr)
			continue
		}
		risks = append(risks, parsedRisk{row: i + 2, risk: risk})
	}

	var controls []*Control
	for i, row := range controlRows[1:] {
		if isBlankRow(row) {
			continue
		}
		c, rowErr := controlFromRow(controlIdx, row)
		if rowErr != nil {
			rowErr.Sheet, rowErr.Row = s.cfg.ControlSheet, i+2
			report.skip(*rowErr)
			continue
		}
		controls = append(controls, c)
	}

	now := s.now()

	created, err := s.importAssets(ctx, risks, now)
	if err != nil {
		return report, fmt.Errorf("import assets: %w", err)
	}
	report.AssetsCreated = created

	created, err = s.importControls(ctx, controls, now)
	if err != nil {
		return report, fmt.Errorf("import controls: %w", err)
	}
	report.ControlsCreated = created

	created, matched, err := s.importRisks(ctx, risks, now)
	if err != nil {
		return report, fmt.Errorf("import risk items: %w", err)
	}
	report.AssessmentsCreated = created
	report.AssessmentsMatched = matched
	report.Duration = time.Since(start)

	logger.Info("import completed",
		"assets_created", report.AssetsCreated,
		"controls_created", report.ControlsCreated,
		"assessments_created", report.AssessmentsCreated,
		"assessments_matched", report.AssessmentsMatched,
		"rows_skipped", report.RowsSkipped,
		"duration_ms", report.Duration.Milliseconds(),
	)

	return report, nil
}

// sheet resolves a sheet and validates its header row.
func (s *Service) sheet(wb *workbook.Workbook, name string, specs []ColumnSpec) ([][]string, HeaderIndex, error) {
	rows, ok := wb.Sheet(name)
	if !ok {
		return nil, nil, &ValidationError{Sheet: name, Message: "sheet not found in workbook"}
	}
	if len(rows) == 0 {
		return nil, nil, &ValidationError{Sheet: name, Message: "sheet has no header row"}
	}

	idx, err := ValidateHeaders(rows[0], specs)
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Sheet = name
		}
		return nil, nil, err
	}
	return rows, idx, nil
}

func (s *Service) importAssets(ctx context.Context, risks []parsedRisk, now time.Time) (int, error) {
	created := 0
	err := s.store.InTx(ctx, func(tx Tx) error {
		created = 0
		index, err := tx.AssetIndex(ctx)
		if err != nil {
			return err
		}

		for _, p := range risks {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := p.risk.AssetName
			if _, ok := index[name]; ok {
				continue
			}
			a := &Asset{Name: name, AssetType: InferAssetType(name), CreatedAt: now}
			if err := tx.InsertAsset(ctx, a); err != nil {
				return fmt.Errorf("row %d: %w", p.row, err)
			}
			index[name] = a.ID
			created++
		}
		return nil
	})
	return created, err
}

func (s *Service) importControls(ctx context.Context, controls []*Control, now time.Time) (int, error) {
	created := 0
	err := s.store.InTx(ctx, func(tx Tx) error {
		created = 0
		index, err := tx.ControlIndex(ctx)
		if err != nil {
			return err
		}

		for _, c := range controls {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := index[c.Name]; ok {
				continue
			}
			c.CreatedAt = now
			if err := tx.InsertControl(ctx, c); err != nil {
				return fmt.Errorf("control %q: %w", c.Name, err)
			}
			index[c.Name] = c.ID
			created++
		}
		return nil
	})
	return created, err
}

func (s *Service) importRisks(ctx context.Context, risks []parsedRisk, now time.Time) (int, int, error) {
	created, matched := 0, 0
	err := s.store.InTx(ctx, func(tx Tx) error {
		created, matched = 0, 0
		assets, err := tx.AssetIndex(ctx)
		if err != nil {
			return err
		}
		index, err := tx.RiskIndex(ctx)
		if err != nil {
			return err
		}

		for _, p := range risks {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := p.risk
			assetID, ok := assets[r.AssetName]
			if !ok {
				return fmt.Errorf("row %d: asset %q vanished during import", p.row, r.AssetName)
			}
			r.AssetID = assetID

			key := r.Key()
			if _, ok := index[key]; ok {
				matched++
				continue
			}

			r.Version = 1
			r.CreatedAt, r.UpdatedAt = now, now
			if err := tx.InsertRisk(ctx, r); err != nil {
				return fmt.Errorf("row %d: %w", p.row, err)
			}
			index[key] = r.ID
			created++
		}
		return nil
	})
	return created, matched, err
}
