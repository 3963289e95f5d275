package workbook

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteRead_PreservesSheetsAndCells(t *testing.T) {
	wb := New()
	wb.Add("Risks", [][]string{
		{"#", "THREAT MODEL ASSET", "NOTES"},
		{"1", "Billing API", "needs review"},
		{"2", "Billing API to Ledger", ""},
	})
	wb.Add("Controls", [][]string{
		{"Control Measure", "Tag"},
		{"MFA", "IAM"},
	})

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if names := got.SheetNames(); strings.Join(names, ",") != "Risks,Controls" {
		t.Errorf("SheetNames() = %v, want [Risks Controls]", names)
	}

	risks, ok := got.Sheet("Risks")
	if !ok {
		t.Fatal("Risks sheet missing")
	}
	if len(risks) != 3 {
		t.Fatalf("Risks has %d rows, want 3", len(risks))
	}
	if risks[1][1] != "Billing API" || risks[1][2] != "needs review" {
		t.Errorf("row 2 = %v", risks[1])
	}
	if risks[2][1] != "Billing API to Ledger" {
		t.Errorf("row 3 asset = %q", risks[2][1])
	}

	controls, _ := got.Sheet("Controls")
	if len(controls) != 2 || controls[1][0] != "MFA" {
		t.Errorf("Controls rows = %v", controls)
	}
}

func TestSheet_CaseInsensitiveFallback(t *testing.T) {
	wb := New()
	wb.Add("ControlMeasures ", [][]string{{"Control Measure"}})

	if _, ok := wb.Sheet("controlmeasures"); !ok {
		t.Error("Sheet() should match names case-insensitively")
	}
	if _, ok := wb.Sheet("Controls"); ok {
		t.Error("Sheet() matched an unrelated name")
	}
}

func TestRead_RejectsNonWorkbook(t *testing.T) {
	_, err := Read(strings.NewReader("a,b,c\n1,2,3\n"))
	if err == nil {
		t.Fatal("Read() expected error for CSV input")
	}
	if !strings.Contains(err.Error(), "open workbook") {
		t.Errorf("error = %v, want open workbook prefix", err)
	}
}
