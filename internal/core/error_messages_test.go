package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"not found", &NotFoundError{Entity: "risk", ID: 9}, "NF001"},
		{"wrapped not found", fmt.Errorf("load: %w", &NotFoundError{Entity: "risk", ID: 9}), "NF001"},
		{"conflict", &ConflictError{RiskID: 1, Expected: 2, Actual: 3}, "CONF001"},
		{"import queue full", fmt.Errorf("import: %w", ErrTooManyImports), "IMP001"},
		{"missing columns", &ValidationError{Sheet: "Risks", Message: "missing required columns: STRIDEL"}, "VAL004"},
		{"missing sheet", &ValidationError{Sheet: "ControlMeasures", Message: "sheet not found in workbook"}, "VAL005"},
		{"not a workbook", &ValidationError{Field: "file", Message: "not a valid xlsx workbook (zip: not a valid zip file)"}, "FILE002"},
		{"bad status", &ValidationError{Field: "review_status", Message: "invalid enum value, must be one of: Pending"}, "VAL006"},
		{"read-only field", &ValidationError{Field: "severity", Message: "field is not editable"}, "VAL007"},
		{"generic validation", &ValidationError{Field: "sort", Message: "unknown sort column"}, "VAL001"},
		{"duplicate key", errors.New(`ERROR: duplicate key value violates unique constraint "assets_name_key"`), "DB001"},
		{"sqlite unique", errors.New("UNIQUE constraint failed: assets.name"), "DB001"},
		{"foreign key", errors.New("violates foreign key constraint"), "DB002"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"sqlite busy", errors.New("database is locked"), "DB007"},
		{"body too large", errors.New("http: request body too large"), "FILE001"},
		{"cancelled", context.Canceled, "IMP002"},
		{"deadline", context.DeadlineExceeded, "IMP003"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
		{"case insensitive matching", errors.New("DUPLICATE KEY value"), "DB001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_ValidationDetail(t *testing.T) {
	err := &ValidationError{Sheet: "RiskAssessment-Detailed", Message: "missing required columns: THREAT MODEL ASSET, STRIDEL"}
	msg := MapError(err)

	if !strings.Contains(msg.Detail, "THREAT MODEL ASSET, STRIDEL") {
		t.Errorf("Detail = %q, want the missing column list", msg.Detail)
	}
	if strings.HasPrefix(msg.Detail, "validation:") {
		t.Errorf("Detail = %q, should not carry the error prefix", msg.Detail)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(&ConflictError{RiskID: 1})
	want := "Someone else changed this risk item while you were editing (Code: CONF001). Reload the item, review the changes and save again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"typed error is user facing", &NotFoundError{Entity: "risk", ID: 1}, true},
		{"known pattern is user facing", errors.New("duplicate key"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
