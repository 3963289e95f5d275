package core

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"github.com/JonMunkholm/RiskTracker/internal/logging"
)

// reportColumn is one column of the PDF risk table.
type reportColumn struct {
	title string
	width float64
	value func(r *RiskAssessment) string
}

var reportColumns = []reportColumn{
	{"#", 12, func(r *RiskAssessment) string { return fmt.Sprint(r.AssessmentNumber) }},
	{"Asset", 62, func(r *RiskAssessment) string { return r.AssetName }},
	{"STRIDE", 16, func(r *RiskAssessment) string { return r.StrideCode }},
	{"Finding", 20, func(r *RiskAssessment) string { return r.FindingNumber }},
	{"Severity", 28, func(r *RiskAssessment) string { return r.Severity }},
	{"Pre Rating", 40, func(r *RiskAssessment) string { return r.PreRiskRating }},
	{"Post Rating", 40, func(r *RiskAssessment) string { return r.PostRiskRating }},
	{"Status", 24, func(r *RiskAssessment) string { return string(r.ReviewStatus) }},
	{"Reviewed By", 35, func(r *RiskAssessment) string { return r.ReviewedBy }},
}

// ExportReport writes a PDF report of the risk items matching filter: a
// summary of review progress and ratings followed by one line per item.
func (s *Service) ExportReport(ctx context.Context, filter RiskFilter, w io.Writer) (err error) {
	defer func() { s.recorder.ExportFinished(FormatPDF, err) }()

	filter, err = NormalizeFilter(filter)
	if err != nil {
		return err
	}

	risks, total, err := s.store.ListRisks(ctx, RiskQuery{Filter: filter, Sort: SortSpec{Column: SortNumber}})
	if err != nil {
		return WrapStorage("report risks", err)
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Risk Assessment Report", true)
	pdf.SetCreator("risktracker", true)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Risk Assessment Report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr("Generated "+s.now().Format(exportTimeLayout)+" UTC"))
	pdf.Ln(6)
	if !filter.IsEmpty() {
		pdf.Cell(0, 6, tr(describeFilter(filter)))
		pdf.Ln(6)
	}

	byStatus := map[string]int64{}
	byRating := map[string]int64{}
	var done int64
	for i := range risks {
		byStatus[string(risks[i].ReviewStatus)]++
		byRating[ratingLabel(risks[i].PostRiskRating)]++
		if risks[i].ReviewStatus.IsSignedOff() {
			done++
		}
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 7, "Summary")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	progress := 0.0
	if total > 0 {
		progress = float64(done) / float64(total) * 100
	}
	pdf.Cell(0, 6, fmt.Sprintf("Risk items: %d   Reviewed or approved: %d (%.1f%%)", total, done, progress))
	pdf.Ln(6)
	for _, st := range ReviewStatuses {
		pdf.Cell(0, 5, fmt.Sprintf("  %s: %d", st, byStatus[string(st)]))
		pdf.Ln(5)
	}
	for _, rating := range sortedKeys(byRating) {
		pdf.Cell(0, 5, tr(fmt.Sprintf("  Post-mitigation %s: %d", rating, byRating[rating])))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(217, 225, 242)
	for _, col := range reportColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for i := range risks {
		if i%200 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for _, col := range reportColumns {
			pdf.CellFormat(col.width, 6, tr(fit(pdf, col.value(&risks[i]), col.width)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	logging.FromContext(ctx).Info("register exported", "format", FormatPDF, "risks", len(risks))
	return nil
}

// fit shortens s with an ellipsis until it fits in width millimeters.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	const padding = 2
	if pdf.GetStringWidth(s) <= width-padding {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width-padding {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func ratingLabel(r string) string {
	if r == "" {
		return "(not rated)"
	}
	return r
}

func describeFilter(f RiskFilter) string {
	desc := "Filtered by"
	if f.Status != "" {
		desc += " status=" + string(f.Status)
	}
	if f.AssetID > 0 {
		desc += fmt.Sprintf(" asset=%d", f.AssetID)
	}
	if f.Severity != "" {
		desc += " severity=" + f.Severity
	}
	if f.StrideCode != "" {
		desc += " stride=" + f.StrideCode
	}
	if f.PostRiskRating != "" {
		desc += " rating=" + f.PostRiskRating
	}
	if f.Search != "" {
		desc += fmt.Sprintf(" search=%q", f.Search)
	}
	return desc
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
