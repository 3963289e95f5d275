package core

// validation.go checks workbook headers against a sheet schema and provides
// lookup of cell values by field key.
//
// Header validation fails fast: every missing required column is listed in a
// single ValidationError so the user can fix the template in one pass.

import (
	"strings"
)

// HeaderIndex maps a field key to its column position in the sheet.
type HeaderIndex map[string]int

// Get returns the cleaned cell for field, or "" when the column is absent or
// the row is short (trailing empty cells are not materialized by readers).
func (h HeaderIndex) Get(row []string, field string) string {
	pos, ok := h[field]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// ValidateHeaders resolves every spec against the header row. It returns a
// ValidationError listing all required columns that could not be found.
func ValidateHeaders(headers []string, specs []ColumnSpec) (HeaderIndex, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	idx := make(HeaderIndex, len(specs))
	var missing []string

	for _, spec := range specs {
		want := NormalizeHeader(spec.Header)
		pos := -1
		for i, got := range normalized {
			if got == "" {
				continue
			}
			if got == want || (spec.Match == MatchContains && strings.Contains(got, want)) {
				pos = i
				break
			}
		}

		if pos >= 0 {
			idx[spec.Field] = pos
		} else if spec.Required {
			missing = append(missing, spec.Header)
		}
	}

	if len(missing) > 0 {
		return nil, &ValidationError{
			Message: "missing required columns: " + strings.Join(missing, ", "),
		}
	}

	return idx, nil
}

// isBlankRow reports whether every cell of row is empty after cleaning.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}
