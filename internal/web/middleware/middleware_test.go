package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/RiskTracker/internal/config"
	"github.com/JonMunkholm/RiskTracker/internal/core"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "no trusted proxies ignores headers",
			remoteAddr: "203.0.113.9:5000",
			headers:    map[string]string{"X-Real-IP": "10.1.1.1"},
			want:       "203.0.113.9:5000",
		},
		{
			name:       "trusted proxy X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.2:5000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "198.51.100.4",
		},
		{
			name:       "trusted proxy first forwarded-for entry",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.2:5000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.7"},
			want:       "198.51.100.4",
		},
		{
			name:       "single address entry",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:5000",
			headers:    map[string]string{"X-Real-IP": "2001:db8::1"},
			want:       "2001:db8::1",
		},
		{
			name:       "untrusted source keeps remote addr",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "192.0.2.50:5000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "192.0.2.50:5000",
		},
		{
			name:       "malformed header ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.2:5000",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.0.0.2:5000",
		},
		{
			name:       "invalid trusted entry skipped",
			trusted:    []string{"bogus", "10.0.0.0/8"},
			remoteAddr: "10.0.0.2:5000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "198.51.100.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBasicAuth(t *testing.T) {
	var actor string
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = core.ActorFromContext(r.Context())
	})

	t.Run("disabled passes through", func(t *testing.T) {
		actor = ""
		rec := httptest.NewRecorder()
		BasicAuth(&config.SecurityConfig{})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK || actor != "" {
			t.Errorf("status = %d, actor = %q", rec.Code, actor)
		}
	})

	cfg := &config.SecurityConfig{AuthUsername: "auditor", AuthPassword: "s3cret"}
	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		wantCode   int
	}{
		{"valid", "auditor", "s3cret", true, http.StatusOK},
		{"wrong password", "auditor", "nope", true, http.StatusUnauthorized},
		{"wrong user", "admin", "s3cret", true, http.StatusUnauthorized},
		{"missing", "", "", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			BasicAuth(cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && actor != "auditor" {
				t.Errorf("actor = %q, want auditor", actor)
			}
			if tt.wantCode == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := &config.SecurityConfig{AuthUsername: "auditor", AuthPassword: "s3cret"}
	h := Logger(BasicAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/risks/1", nil)
	req.SetBasicAuth("auditor", "s3cret")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{"msg=request", "method=POST", "path=/api/risks/1", "status=201", "bytes=5", "actor=auditor"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q: %s", want, line)
		}
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	w.WriteHeader(http.StatusNotFound)
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("gone"))

	if w.status != http.StatusNotFound || rec.Code != http.StatusNotFound {
		t.Errorf("status = %d/%d, want 404", w.status, rec.Code)
	}
	if w.bytes != 4 {
		t.Errorf("bytes = %d, want 4", w.bytes)
	}
}
