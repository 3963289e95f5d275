// Package workbook reads and writes the xlsx files exchanged with the
// organization's risk template.
//
// Reading loads every sheet as rows of formatted cell text, which is what a
// user sees in a spreadsheet tool. Writing streams rows sheet by sheet with a
// bold, frozen header row.
package workbook

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook is an in-memory copy of a workbook's cell text.
type Workbook struct {
	names  []string
	sheets map[string][][]string
}

// Read parses an xlsx document.
func Read(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	wb := &Workbook{sheets: make(map[string][][]string)}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		wb.names = append(wb.names, name)
		wb.sheets[name] = rows
	}
	return wb, nil
}

// New builds a Workbook from rows already in memory, mainly for tests.
func New() *Workbook {
	return &Workbook{sheets: make(map[string][][]string)}
}

// Add appends a sheet, replacing any sheet with the same name.
func (w *Workbook) Add(name string, rows [][]string) {
	if _, ok := w.sheets[name]; !ok {
		w.names = append(w.names, name)
	}
	w.sheets[name] = rows
}

// SheetNames returns sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	return append([]string(nil), w.names...)
}

// Sheet returns the rows of the named sheet. An exact match wins; otherwise
// names are compared case-insensitively with surrounding spaces ignored.
func (w *Workbook) Sheet(name string) ([][]string, bool) {
	if rows, ok := w.sheets[name]; ok {
		return rows, true
	}
	want := strings.TrimSpace(name)
	for _, n := range w.names {
		if strings.EqualFold(strings.TrimSpace(n), want) {
			return w.sheets[n], true
		}
	}
	return nil, false
}

// Write serializes the workbook with the first row of every sheet styled as a header.
func (w *Workbook) Write(out io.Writer) error {
	xw := NewWriter()
	defer xw.Close()

	for _, name := range w.names {
		rows := w.sheets[name]
		var header []string
		if len(rows) > 0 {
			header, rows = rows[0], rows[1:]
		}
		sw, err := xw.AddSheet(name, header)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := sw.Append(row); err != nil {
				return err
			}
		}
		if err := sw.Flush(); err != nil {
			return err
		}
	}
	_, err := xw.WriteTo(out)
	return err
}
