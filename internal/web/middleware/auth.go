package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/RiskTracker/internal/config"
	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// BasicAuth returns middleware that checks HTTP Basic credentials against the
// configured user. The authenticated user becomes the actor recorded in the
// audit log. When no credentials are configured all requests pass through.
func BasicAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.AuthEnabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !validCredentials(user, pass, cfg.AuthUsername, cfg.AuthPassword) {
				slog.Warn("auth: rejected credentials",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"provided", ok,
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="risk-tracker", charset="UTF-8"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required","code":"AUTH001"}`))
				return
			}

			recordActor(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), user)))
		})
	}
}

// validCredentials compares fixed-length digests in constant time, so neither
// the content nor the length of the secrets leaks through timing.
func validCredentials(user, pass, wantUser, wantPass string) bool {
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	wu := sha256.Sum256([]byte(wantUser))
	wp := sha256.Sum256([]byte(wantPass))
	userOK := subtle.ConstantTimeCompare(u[:], wu[:])
	passOK := subtle.ConstantTimeCompare(p[:], wp[:])
	return userOK&passOK == 1
}
