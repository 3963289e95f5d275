package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

func TestImportFinished(t *testing.T) {
	m := New()

	m.ImportFinished(&core.ImportReport{AssetsCreated: 3, ControlsCreated: 2, AssessmentsCreated: 10, RowsSkipped: 1}, nil)
	m.ImportFinished(&core.ImportReport{AssessmentsMatched: 10}, nil)
	m.ImportFinished(nil, errors.New("bad workbook"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"successful imports", testutil.ToFloat64(m.imports.WithLabelValues("success")), 2},
		{"failed imports", testutil.ToFloat64(m.imports.WithLabelValues("error")), 1},
		{"assets created", testutil.ToFloat64(m.importRows.WithLabelValues("asset_created")), 3},
		{"risks created", testutil.ToFloat64(m.importRows.WithLabelValues("risk_created")), 10},
		{"risks matched", testutil.ToFloat64(m.importRows.WithLabelValues("risk_matched")), 10},
		{"rows skipped", testutil.ToFloat64(m.importRows.WithLabelValues("skipped")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSaveAndExportFinished(t *testing.T) {
	m := New()

	m.SaveFinished(core.SaveChanged, 2)
	m.SaveFinished(core.SaveChanged, 1)
	m.SaveFinished(core.SaveConflict, 0)
	m.ExportFinished(core.FormatXLSX, nil)
	m.ExportFinished(core.FormatPDF, errors.New("disk full"))

	if got := testutil.ToFloat64(m.saves.WithLabelValues("changed")); got != 2 {
		t.Errorf("changed saves = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.auditEntries); got != 3 {
		t.Errorf("audit entries = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.exports.WithLabelValues("pdf", "error")); got != 1 {
		t.Errorf("failed pdf exports = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SaveFinished(core.SaveUnchanged, 0)
	m.ObserveRequest("/api/risks", "GET", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`riskreg_saves_total{outcome="unchanged"} 1`,
		`riskreg_http_request_duration_seconds_count{method="GET",route="/api/risks",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
