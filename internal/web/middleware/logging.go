// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/RiskTracker/internal/logging"
)

// Logger is an HTTP middleware that logs one structured line per request.
//
// It runs after chi's RequestID, so every line carries request_id, and after
// TrustedRealIP, so ip is the resolved client address.
//
// Log fields:
//   - method, path: request line
//   - status: response status code
//   - duration_ms: processing time in milliseconds
//   - bytes: response body size
//   - ip, user_agent: client
//   - actor: authenticated user, when Basic auth is enabled
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		actor := &actorCapture{}
		next.ServeHTTP(ww, r.WithContext(withActorCapture(r.Context(), actor)))

		logger := logging.FromContext(r.Context())
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.bytes,
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if actor.name != "" {
			args = append(args, "actor", actor.name)
		}

		switch {
		case ww.status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case ww.status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code and size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap provides access to the underlying ResponseWriter for
// http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// actorCapture lets BasicAuth, which runs further down the chain, report the
// authenticated user back to Logger.
type actorCapture struct{ name string }

type captureKey struct{}

func withActorCapture(ctx context.Context, c *actorCapture) context.Context {
	return context.WithValue(ctx, captureKey{}, c)
}

// recordActor stores the actor for the access log, if Logger is in the chain.
func recordActor(ctx context.Context, actor string) {
	if c, ok := ctx.Value(captureKey{}).(*actorCapture); ok {
		c.name = actor
	}
}
