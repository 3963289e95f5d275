package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace (including non-breaking spaces) and the Excel
// text-formula wrapper ="...".
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return s
}

// NormalizeHeader lowercases h and collapses every whitespace run (spaces,
// tabs, line breaks inside a wrapped header cell) into one space.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(CleanCell(h)), " "))
}

// NormalizeStrideCode upper-cases and trims a threat-category code.
func NormalizeStrideCode(s string) string {
	return strings.ToUpper(CleanCell(s))
}

// ParseAssessmentNumber parses the "#" column. Spreadsheet tools may render
// whole numbers as "12.0", which is accepted; fractions and negatives are not.
func ParseAssessmentNumber(s string) (int, error) {
	s = CleanCell(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("assessment number %d must not be negative", n)
		}
		return n, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("invalid assessment number %q", s)
	}
	return int(f), nil
}

// MaxCellChars is the most characters an xlsx cell holds. Longer values could
// not be exported intact, so edits are rejected at that length.
const MaxCellChars = 32767

// normalizeValue prepares an edited value for comparison and storage.
func normalizeValue(f Field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if utf8.RuneCountInString(v) > MaxCellChars {
		return "", &ValidationError{
			Field:   string(f),
			Message: fmt.Sprintf("must be at most %d characters", MaxCellChars),
		}
	}
	if f != FieldReviewStatus {
		return v, nil
	}

	st, ok := ParseReviewStatus(v)
	if !ok {
		return "", &ValidationError{
			Field:   string(f),
			Value:   v,
			Message: "invalid enum value, must be one of: " + joinStatuses(),
		}
	}
	return string(st), nil
}

func joinStatuses() string {
	names := make([]string, len(ReviewStatuses))
	for i, s := range ReviewStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
