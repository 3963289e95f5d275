package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// defaultSheet is the sheet excelize creates with every new file.
const defaultSheet = "Sheet1"

// Writer builds an xlsx file one sheet at a time.
type Writer struct {
	f           *excelize.File
	sheets      int
	headerStyle int
	styleErr    error
}

// NewWriter starts an empty workbook.
func NewWriter() *Writer {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	return &Writer{f: f, headerStyle: style, styleErr: err}
}

// SheetWriter streams the rows of one sheet. Flush must be called before the
// next sheet is added.
type SheetWriter struct {
	sw   *excelize.StreamWriter
	next int
}

// AddSheet creates a sheet and writes its header row.
func (w *Writer) AddSheet(name string, header []string) (*SheetWriter, error) {
	if w.styleErr != nil {
		return nil, fmt.Errorf("header style: %w", w.styleErr)
	}

	if w.sheets == 0 {
		if err := w.f.SetSheetName(defaultSheet, name); err != nil {
			return nil, fmt.Errorf("rename sheet %q: %w", name, err)
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("create sheet %q: %w", name, err)
	}
	w.sheets++

	sw, err := w.f.NewStreamWriter(name)
	if err != nil {
		return nil, fmt.Errorf("stream sheet %q: %w", name, err)
	}

	s := &SheetWriter{sw: sw, next: 1}
	if len(header) == 0 {
		return s, nil
	}

	if err := sw.SetColWidth(1, len(header), 22); err != nil {
		return nil, fmt.Errorf("column width %q: %w", name, err)
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header %q: %w", name, err)
	}
	if err := s.append(header, excelize.RowOpts{StyleID: w.headerStyle}); err != nil {
		return nil, err
	}
	return s, nil
}

// Append writes the next row.
func (s *SheetWriter) Append(values []string) error {
	return s.append(values)
}

func (s *SheetWriter) append(values []string, opts ...excelize.RowOpts) error {
	cell, err := excelize.CoordinatesToCellName(1, s.next)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := s.sw.SetRow(cell, row, opts...); err != nil {
		return fmt.Errorf("write row %d: %w", s.next, err)
	}
	s.next++
	return nil
}

// Flush finishes the sheet.
func (s *SheetWriter) Flush() error {
	return s.sw.Flush()
}

// WriteTo writes the finished workbook to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	w.f.SetActiveSheet(0)
	n, err := w.f.WriteTo(out)
	if err != nil {
		return n, fmt.Errorf("write workbook: %w", err)
	}
	return n, nil
}

// Close releases temporary files held by the stream writers.
func (w *Writer) Close() error {
	return w.f.Close()
}
