package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/JonMunkholm/RiskTracker/internal/config"
	"github.com/JonMunkholm/RiskTracker/internal/core"
	"github.com/JonMunkholm/RiskTracker/internal/database/memory"
	"github.com/JonMunkholm/RiskTracker/internal/metrics"
	"github.com/JonMunkholm/RiskTracker/internal/workbook"
)

// testConfig loads defaults with rate limiting off, overridden by env.
func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"DATABASE_URL":       "memory://",
		"RATE_LIMIT_ENABLED": "false",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadFrom(func(k string) string { return base[k] })
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

// testWorkbook builds a small register: three risk items over two assets.
func testWorkbook() *workbook.Workbook {
	row := func(num, asset, stride, finding, status string) []string {
		values := map[string]string{
			core.ColNumber:            num,
			core.ColAsset:             asset,
			core.ColStrideCode:        stride,
			core.ColStrideDescription: "threat " + stride,
			core.ColFindingNumber:     finding,
			core.ColSeverity:          "3 - Serious",
			core.ColPostExploitRisk:   "3 - Medium",
			core.ColControls:          "MFA",
			core.ColReviewStatus:      status,
		}
		out := make([]string, len(core.RiskColumns))
		for i, spec := range core.RiskColumns {
			out[i] = values[spec.Field]
		}
		return out
	}

	wb := workbook.New()
	wb.Add(core.DefaultRiskSheet, [][]string{
		core.Headers(core.RiskColumns),
		row("1", "Web Server", "S", "F-1", "Pending"),
		row("2", "Web Server", "T", "F-2", "Pending"),
		row("3", "Browser to Web Server", "I", "F-3", "Approved"),
	})
	wb.Add(core.DefaultControlSheet, [][]string{
		core.Headers(core.ControlColumns),
		{"MFA", "Multi-factor authentication", "IAM"},
	})
	return wb
}

func workbookBytes(t *testing.T, wb *workbook.Workbook) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

type testEnv struct {
	server  *Server
	service *core.Service
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, env map[string]string, seed bool) *testEnv {
	t.Helper()
	cfg := testConfig(t, env)
	m := metrics.New()
	svc := core.NewService(memory.New(), cfg.Import, core.WithRecorder(m))
	if seed {
		if _, err := svc.ImportWorkbook(context.Background(), testWorkbook()); err != nil {
			t.Fatalf("seed import: %v", err)
		}
	}
	s := NewServer(svc, cfg, m)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return &testEnv{server: s, service: svc, metrics: m}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// riskID returns the ID of the risk item with the given assessment number.
func (e *testEnv) riskID(t *testing.T, number int) int64 {
	t.Helper()
	page, err := e.service.ListRisks(context.Background(), core.RiskFilter{}, core.SortSpec{}, 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range page.Risks {
		if r.AssessmentNumber == number {
			return r.ID
		}
	}
	t.Fatalf("risk #%d not found", number)
	return 0
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rec.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil, false)

	rec := e.get("/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %q, want ok", got)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("security headers missing: %v", rec.Header())
	}
}

func TestAPIListRisks(t *testing.T) {
	e := newTestEnv(t, nil, true)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int64
		wantFirst int
		errCode   string
	}{
		{name: "all", query: "", wantCode: 200, wantTotal: 3, wantFirst: 1},
		{name: "status filter", query: "status=approved", wantCode: 200, wantTotal: 1, wantFirst: 3},
		{name: "stride filter", query: "stride=t", wantCode: 200, wantTotal: 1, wantFirst: 2},
		{name: "search asset", query: "q=browser", wantCode: 200, wantTotal: 1, wantFirst: 3},
		{name: "sort desc", query: "sort=number&dir=desc", wantCode: 200, wantTotal: 3, wantFirst: 3},
		{name: "second page", query: "page=2&page_size=2", wantCode: 200, wantTotal: 3, wantFirst: 3},
		{name: "bad status", query: "status=closed", wantCode: 400, errCode: "VAL006"},
		{name: "bad sort", query: "sort=color", wantCode: 400, errCode: "VAL001"},
		{name: "bad asset", query: "asset=x", wantCode: 400, errCode: "VAL001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.get("/api/risks?" + tt.query)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.errCode != "" {
				if got := decode[ErrorResponse](t, rec).Code; got != tt.errCode {
					t.Errorf("code = %s, want %s", got, tt.errCode)
				}
				return
			}
			page := decode[core.RiskPage](t, rec)
			if page.TotalCount != tt.wantTotal {
				t.Errorf("totalCount = %d, want %d", page.TotalCount, tt.wantTotal)
			}
			if len(page.Risks) == 0 || page.Risks[0].AssessmentNumber != tt.wantFirst {
				t.Errorf("first risk = %+v, want #%d", page.Risks, tt.wantFirst)
			}
		})
	}
}

func TestAPIGetRisk(t *testing.T) {
	e := newTestEnv(t, nil, true)
	id := e.riskID(t, 2)

	rec := e.get(fmt.Sprintf("/api/risks/%d", id))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if r := decode[core.RiskAssessment](t, rec); r.StrideCode != "T" || r.AssetName != "Web Server" {
		t.Errorf("risk = %+v", r)
	}

	tests := []struct {
		path     string
		wantCode int
		errCode  string
	}{
		{"/api/risks/9999", http.StatusNotFound, "NF001"},
		{"/api/risks/abc", http.StatusBadRequest, "VAL001"},
		{"/api/risks/9999/audit", http.StatusNotFound, "NF001"},
	}
	for _, tt := range tests {
		rec := e.get(tt.path)
		if rec.Code != tt.wantCode {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.wantCode)
			continue
		}
		if got := decode[ErrorResponse](t, rec).Code; got != tt.errCode {
			t.Errorf("GET %s code = %s, want %s", tt.path, got, tt.errCode)
		}
	}
}

func patchRisk(id int64, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/risks/%d", id), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAPISaveRisk(t *testing.T) {
	e := newTestEnv(t, nil, true)
	id := e.riskID(t, 1)

	req := patchRisk(id, `{"changes":{"post_exploit_risk":"1 - Low","review_status":"Approved","notes":""},"expectedVersion":1}`)
	req.Header.Set("X-Actor", "alice")
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decode[core.SaveResult](t, rec)
	if !result.Changed || len(result.Entries) != 2 {
		t.Fatalf("result = %+v, want 2 audit entries", result)
	}
	for _, entry := range result.Entries {
		if entry.Actor != "alice" {
			t.Errorf("entry actor = %q, want alice", entry.Actor)
		}
	}
	if result.Risk.Version != 2 || result.Risk.ReviewedBy != "alice" {
		t.Errorf("risk = %+v", result.Risk)
	}

	t.Run("trail lists entries", func(t *testing.T) {
		rec := e.get(fmt.Sprintf("/api/risks/%d/audit", id))
		if entries := decode[[]core.AuditEntry](t, rec); len(entries) != 2 {
			t.Errorf("trail = %d entries, want 2", len(entries))
		}
		rec = e.get("/api/audit-log?actor=alice&field=review_status")
		if page := decode[core.AuditPage](t, rec); page.TotalCount != 1 || page.Entries[0].NewValue != "Approved" {
			t.Errorf("audit log = %+v", page)
		}
	})

	tests := []struct {
		name     string
		body     string
		wantCode int
		errCode  string
	}{
		{"stale version", `{"changes":{"notes":"late"},"expectedVersion":1}`, http.StatusConflict, "CONF001"},
		{"bad status", `{"changes":{"review_status":"Closed"}}`, http.StatusBadRequest, "VAL006"},
		{"read-only field", `{"changes":{"severity":"4 - CRITICAL"}}`, http.StatusBadRequest, "VAL007"},
		{"no changes", `{"changes":{}}`, http.StatusBadRequest, "VAL003"},
		{"malformed", `{"changes":`, http.StatusBadRequest, "VAL001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(patchRisk(id, tt.body))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.errCode {
				t.Errorf("code = %s, want %s", got, tt.errCode)
			}
		})
	}
}

func multipartImport(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		part, err := mw.CreateFormFile("file", "register.xlsx")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	} else {
		mw.WriteField("note", "no file here")
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAPIImport(t *testing.T) {
	e := newTestEnv(t, nil, false)
	data := workbookBytes(t, testWorkbook())

	rec := e.do(multipartImport(t, "/api/import", data))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	report := decode[core.ImportReport](t, rec)
	if report.AssetsCreated != 2 || report.ControlsCreated != 1 || report.AssessmentsCreated != 3 {
		t.Errorf("report = %+v", report)
	}

	rec = e.do(multipartImport(t, "/api/import", data))
	if again := decode[core.ImportReport](t, rec); again.AssessmentsCreated != 0 || again.AssessmentsMatched != 3 {
		t.Errorf("second import = %+v, want everything matched", again)
	}

	tests := []struct {
		name     string
		env      map[string]string
		data     []byte
		wantCode int
		errCode  string
	}{
		{"no file", nil, nil, http.StatusBadRequest, "FILE003"},
		{"not a workbook", nil, []byte("a,b,c\n1,2,3\n"), http.StatusBadRequest, "FILE002"},
		{"too large", map[string]string{"IMPORT_MAX_FILE_SIZE": "512"}, data, http.StatusRequestEntityTooLarge, "FILE001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, tt.env, false)
			rec := e.do(multipartImport(t, "/api/import", tt.data))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.errCode {
				t.Errorf("code = %s, want %s", got, tt.errCode)
			}
		})
	}
}

func TestExport(t *testing.T) {
	e := newTestEnv(t, nil, true)

	rec := e.get("/api/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Errorf("content disposition = %q", cd)
	}

	wb, err := workbook.Read(rec.Body)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	rows, ok := wb.Sheet(core.DefaultRiskSheet)
	if !ok || len(rows) != 4 {
		t.Fatalf("risk sheet rows = %d, %v; want header + 3", len(rows), ok)
	}

	t.Run("filtered", func(t *testing.T) {
		rec := e.get("/api/export?status=Approved")
		wb, err := workbook.Read(rec.Body)
		if err != nil {
			t.Fatal(err)
		}
		if rows, _ := wb.Sheet(core.DefaultRiskSheet); len(rows) != 2 {
			t.Errorf("filtered rows = %d, want header + 1", len(rows))
		}
	})

	t.Run("report", func(t *testing.T) {
		rec := e.get("/api/export/report")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
			t.Fatalf("status = %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
			t.Error("report is not a PDF")
		}
	})

	t.Run("bad filter", func(t *testing.T) {
		if rec := e.get("/api/export?status=nope"); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestPages(t *testing.T) {
	e := newTestEnv(t, nil, true)
	id := e.riskID(t, 3)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/", http.StatusOK, "reviewed or approved"},
		{"/risks", http.StatusOK, "3 matching items"},
		{"/risks?stride=S", http.StatusOK, "1 matching items"},
		{fmt.Sprintf("/risks/%d", id), http.StatusOK, "Browser to Web Server"},
		{"/assets", http.StatusOK, "Web Server"},
		{"/controls", http.StatusOK, "Multi-factor authentication"},
		{"/import", http.StatusOK, core.DefaultRiskSheet},
		{"/risks/9999", http.StatusNotFound, "NF001"},
		{"/risks?status=closed", http.StatusBadRequest, "VAL006"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := e.get(tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("content type = %q", ct)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body missing %q", tt.contains)
			}
		})
	}
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRiskForm(t *testing.T) {
	e := newTestEnv(t, nil, true)
	id := e.riskID(t, 2)
	path := fmt.Sprintf("/risks/%d", id)

	form := url.Values{
		"version":           {"1"},
		"post_exploit_risk": {"3 - Medium"},
		"post_risk_rating":  {"Acceptable"},
		"review_status":     {"Pending"},
		"notes":             {"checked with vendor"},
		"actor":             {"bob"},
	}
	rec := e.do(postForm(path, form))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (body %s)", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != path+"?saved=2" {
		t.Errorf("location = %q, want %s?saved=2", loc, path)
	}

	trail, err := e.service.AuditTrail(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 2 || trail[0].Actor != "bob" {
		t.Errorf("trail = %+v", trail)
	}

	page := e.get(path + "?saved=2")
	if !strings.Contains(page.Body.String(), "Saved 2 changed field(s).") {
		t.Error("detail page does not confirm the save")
	}

	t.Run("stale form re-renders with conflict", func(t *testing.T) {
		rec := e.do(postForm(path, url.Values{"version": {"1"}, "notes": {"late edit"}}))
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		if body := rec.Body.String(); !strings.Contains(body, "CONF001") || !strings.Contains(body, "checked with vendor") {
			t.Error("conflict page should show the code and the stored notes")
		}
	})

	t.Run("invalid status re-renders", func(t *testing.T) {
		rec := e.do(postForm(path, url.Values{"review_status": {"Closed"}}))
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "VAL006") {
			t.Errorf("status = %d, want 400 with VAL006", rec.Code)
		}
	})
}

func TestImportForm(t *testing.T) {
	e := newTestEnv(t, nil, false)

	rec := e.do(multipartImport(t, "/import", workbookBytes(t, testWorkbook())))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "risk items created") {
		t.Error("import page does not show the report")
	}

	rec = e.do(multipartImport(t, "/import", nil))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "FILE003") {
		t.Errorf("no-file status = %d, want 400 with FILE003", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	e := newTestEnv(t, map[string]string{"AUTH_USERNAME": "auditor", "AUTH_PASSWORD": "s3cret"}, true)
	id := e.riskID(t, 1)

	if rec := e.get("/api/stats"); rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials status = %d, want 401", rec.Code)
	}
	if rec := e.get("/health"); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without credentials", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.SetBasicAuth("auditor", "wrong")
	if rec := e.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	req = patchRisk(id, `{"changes":{"notes":"signed"},"actor":"mallory"}`)
	req.SetBasicAuth("auditor", "s3cret")
	req.Header.Set("X-Actor", "mallory")
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if result := decode[core.SaveResult](t, rec); result.Entries[0].Actor != "auditor" {
		t.Errorf("actor = %q, want the authenticated user", result.Entries[0].Actor)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, map[string]string{
		"RATE_LIMIT_ENABLED":             "true",
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "2",
		"RATE_LIMIT_IMPORT":              "1",
	}, false)

	for i := 0; i < 2; i++ {
		if rec := e.get("/health"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := e.get("/api/stats")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec).Code; got != "RATE001" {
		t.Errorf("code = %s, want RATE001", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.RemoteAddr = "198.51.100.7:4000"
	if rec := e.do(other); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, nil, true)
	e.get("/api/risks")

	rec := e.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`riskreg_http_request_duration_seconds_count{method="GET",route="/api/risks",status="200"} 1`,
		`riskreg_imports_total{result="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Message: "x"}, http.StatusBadRequest},
		{&core.NotFoundError{Entity: "risk", ID: 1}, http.StatusNotFound},
		{fmt.Errorf("save: %w", &core.ConflictError{RiskID: 1}), http.StatusConflict},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{errFileTooLarge, http.StatusRequestEntityTooLarge},
		{&core.StorageError{Op: "get", Err: fmt.Errorf("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
