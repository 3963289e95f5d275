package core

// service_export.go writes the register back into the template layout.
//
// The risk sheet uses the RiskColumns headers in order, followed by the
// export-only columns; the control sheet always lists every control. Both
// sheets keep the configured import names, so an exported file is a valid
// import: re-importing it matches every record by natural key.

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/RiskTracker/internal/logging"
	"github.com/JonMunkholm/RiskTracker/internal/workbook"
)

// exportTimeLayout formats timestamps in export-only columns.
const exportTimeLayout = "2006-01-02 15:04:05"

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Export writes the risk items matching filter, and all controls, as an xlsx workbook.
func (s *Service) Export(ctx context.Context, filter RiskFilter, w io.Writer) (err error) {
	defer func() { s.recorder.ExportFinished(FormatXLSX, err) }()

	filter, err = NormalizeFilter(filter)
	if err != nil {
		return err
	}

	risks, _, err := s.store.ListRisks(ctx, RiskQuery{Filter: filter, Sort: SortSpec{Column: SortNumber}})
	if err != nil {
		return WrapStorage("export risks", err)
	}
	controls, err := s.store.ListControls(ctx)
	if err != nil {
		return WrapStorage("export controls", err)
	}

	xw := workbook.NewWriter()
	defer xw.Close()

	if err := writeRiskSheet(xw, s.cfg.RiskSheet, risks); err != nil {
		return err
	}
	if err := writeControlSheet(xw, s.cfg.ControlSheet, controls); err != nil {
		return err
	}
	if _, err := xw.WriteTo(w); err != nil {
		return err
	}

	logging.FromContext(ctx).Info("register exported",
		"format", FormatXLSX,
		"risks", len(risks),
		"controls", len(controls),
		"filtered", !filter.IsEmpty(),
	)
	return nil
}

func writeRiskSheet(xw *workbook.Writer, name string, risks []RiskAssessment) error {
	header := append(Headers(RiskColumns), riskExportColumns...)
	sw, err := xw.AddSheet(name, header)
	if err != nil {
		return err
	}

	for i := range risks {
		r := &risks[i]
		values := riskRowValues(r)
		row := make([]string, 0, len(header))
		for _, spec := range RiskColumns {
			row = append(row, values[spec.Field])
		}
		row = append(row, r.ReviewedBy, formatTime(r.ReviewedAt), formatTime(&r.UpdatedAt))
		if err := sw.Append(row); err != nil {
			return fmt.Errorf("risk %d: %w", r.ID, err)
		}
	}
	return sw.Flush()
}

func writeControlSheet(xw *workbook.Writer, name string, controls []Control) error {
	sw, err := xw.AddSheet(name, Headers(ControlColumns))
	if err != nil {
		return err
	}
	for _, c := range controls {
		if err := sw.Append([]string{c.Name, c.Description, c.CategoryTag}); err != nil {
			return fmt.Errorf("control %q: %w", c.Name, err)
		}
	}
	return sw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(exportTimeLayout)
}
