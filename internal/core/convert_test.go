package core

import (
	"errors"
	"strings"
	"testing"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple string unchanged", "hello", "hello"},
		{"empty string", "", ""},
		{"surrounded by whitespace", "  hello  ", "hello"},
		{"non-breaking space", " Web Server ", "Web Server"},
		{"excel text formula", `="0042"`, "0042"},
		{"plain formula kept", "=SUM(A1)", "=SUM(A1)"},
		{"lone equals quote kept", `="`, `="`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"THREAT MODEL ASSET", "threat model asset"},
		{"  STRIDEL  ", "stridel"},
		{"POST-MITIGATION\nRISK RATING", "post-mitigation risk rating"},
		{"Model\tRef#", "model ref#"},
	}

	for _, tt := range tests {
		if got := NormalizeHeader(tt.input); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseAssessmentNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"integer", "12", 12, false},
		{"float rendered integer", "12.0", 12, false},
		{"surrounding spaces", " 7 ", 7, false},
		{"zero", "0", 0, false},
		{"fraction", "1.5", 0, true},
		{"negative", "-3", 0, true},
		{"text", "twelve", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssessmentNumber(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAssessmentNumber(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAssessmentNumber(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseReviewStatus(t *testing.T) {
	tests := []struct {
		input  string
		want   ReviewStatus
		wantOK bool
	}{
		{"Pending", StatusPending, true},
		{"in review", StatusInReview, true},
		{"IN_REVIEW", StatusInReview, true},
		{"In-Review", StatusInReview, true},
		{" approved ", StatusApproved, true},
		{"Done", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseReviewStatus(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseReviewStatus(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	got, err := normalizeValue(FieldReviewStatus, "reviewed")
	if err != nil || got != "Reviewed" {
		t.Errorf("normalizeValue(status) = %q, %v", got, err)
	}

	_, err = normalizeValue(FieldReviewStatus, "closed")
	if err == nil || !strings.Contains(err.Error(), "invalid enum value, must be one of: Pending, In-Review, Reviewed, Approved") {
		t.Errorf("normalizeValue(bad status) error = %v", err)
	}

	got, err = normalizeValue(FieldNotes, "  keep inner  spacing ")
	if err != nil || got != "keep inner  spacing" {
		t.Errorf("normalizeValue(notes) = %q, %v", got, err)
	}

	full := strings.Repeat("é", MaxCellChars)
	if got, err = normalizeValue(FieldNotes, full); err != nil || got != full {
		t.Errorf("normalizeValue(%d chars) error = %v", MaxCellChars, err)
	}

	_, err = normalizeValue(FieldNotes, full+"x")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "must be at most 32767 characters" {
		t.Errorf("normalizeValue(too long) error = %v", err)
	}
}

func TestInferAssetType(t *testing.T) {
	tests := []struct {
		name string
		want AssetType
	}{
		{"Web Server", AssetComponent},
		{"Browser to Web Server", AssetDataFlow},
		{"User Management", AssetProcess},
		{"Authentication Service", AssetProcess},
		{"Calculate Premium", AssetProcess},
	}

	for _, tt := range tests {
		if got := InferAssetType(tt.name); got != tt.want {
			t.Errorf("InferAssetType(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestValidateHeaders(t *testing.T) {
	t.Run("resolves template headers", func(t *testing.T) {
		headers := []string{"#", " threat model asset ", "STRIDEL", "POST-MITIGATION EXPLOIT RISK (after controls)", "NOTES"}
		idx, err := ValidateHeaders(headers, RiskColumns)
		if err != nil {
			t.Fatalf("ValidateHeaders() error = %v", err)
		}
		checks := map[string]int{ColNumber: 0, ColAsset: 1, ColStrideCode: 2, ColPostExploitRisk: 3, ColNotes: 4}
		for field, want := range checks {
			if got, ok := idx[field]; !ok || got != want {
				t.Errorf("idx[%s] = %d, %v; want %d", field, got, ok, want)
			}
		}
		if _, ok := idx[ColSeverity]; ok {
			t.Error("absent optional column was indexed")
		}
	})

	t.Run("description column is not the code column", func(t *testing.T) {
		idx, err := ValidateHeaders([]string{"STRIDEL Description", "STRIDEL", "THREAT MODEL ASSET"}, RiskColumns)
		if err != nil {
			t.Fatal(err)
		}
		if idx[ColStrideCode] != 1 || idx[ColStrideDescription] != 0 {
			t.Errorf("stride columns = %d/%d, want 1/0", idx[ColStrideCode], idx[ColStrideDescription])
		}
	})

	t.Run("lists every missing column", func(t *testing.T) {
		_, err := ValidateHeaders([]string{"#", "NOTES"}, RiskColumns)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "missing required columns: THREAT MODEL ASSET, STRIDEL") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestHeaderIndex_Get(t *testing.T) {
	idx := HeaderIndex{ColAsset: 0, ColNotes: 3}
	row := []string{"  API ", "S"}

	if got := idx.Get(row, ColAsset); got != "API" {
		t.Errorf("Get(asset) = %q, want API", got)
	}
	if got := idx.Get(row, ColNotes); got != "" {
		t.Errorf("Get(short row) = %q, want empty", got)
	}
	if got := idx.Get(row, ColSeverity); got != "" {
		t.Errorf("Get(absent) = %q, want empty", got)
	}
}

func TestRiskFromRow(t *testing.T) {
	idx, err := ValidateHeaders(Headers(RiskColumns), RiskColumns)
	if err != nil {
		t.Fatal(err)
	}
	row := make([]string, len(RiskColumns))
	row[idx[ColNumber]] = "3.0"
	row[idx[ColAsset]] = "API"
	row[idx[ColStrideCode]] = "e"
	row[idx[ColControls]] = "MFA, WAF ,"

	r, rowErr := riskFromRow(idx, row)
	if rowErr != nil {
		t.Fatalf("riskFromRow() error = %+v", rowErr)
	}
	if r.AssessmentNumber != 3 || r.StrideCode != "E" || r.ReviewStatus != StatusPending {
		t.Errorf("riskFromRow() = %+v", r)
	}
	if names := r.ControlNames(); strings.Join(names, "|") != "MFA|WAF" {
		t.Errorf("ControlNames() = %v", names)
	}

	row[idx[ColNumber]] = "x"
	if _, rowErr := riskFromRow(idx, row); rowErr == nil || rowErr.Field != "#" {
		t.Errorf("bad number rowErr = %+v", rowErr)
	}
}
