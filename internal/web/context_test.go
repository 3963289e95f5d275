package web

import (
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

func TestWithRequestActor(t *testing.T) {
	long := strings.Repeat("ü", 150)

	tests := []struct {
		name     string
		auth     string
		header   string
		fallback string
		want     string
	}{
		{"authenticated user wins", "admin", "alice", "bob", "admin"},
		{"header over fallback", "", " alice ", "bob", "alice"},
		{"fallback", "", "", " bob ", "bob"},
		{"nobody", "", "", "", ""},
		{"multi-byte name cut on characters", "", long, "", strings.Repeat("ü", maxActorLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/risks/1", nil)
			if tt.auth != "" {
				r = r.WithContext(core.ContextWithActor(r.Context(), tt.auth))
			}
			if tt.header != "" {
				r.Header.Set(actorHeader, tt.header)
			}

			got := core.ActorFromContext(WithRequestActor(r, tt.fallback))
			if got != tt.want {
				t.Errorf("actor = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("actor %q is not valid UTF-8", got)
			}
		})
	}
}
