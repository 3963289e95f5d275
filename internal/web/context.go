package web

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// actorHeader names the acting user when Basic auth is disabled.
const actorHeader = "X-Actor"

// maxActorLen bounds caller-supplied actor names, in characters.
const maxActorLen = 100

// WithRequestActor returns the request context carrying the acting user. An
// authenticated user set by BasicAuth wins over the X-Actor header and over
// fallback, which is a name supplied in the request body or form.
func WithRequestActor(r *http.Request, fallback string) context.Context {
	ctx := r.Context()
	if core.ActorFromContext(ctx) != "" {
		return ctx
	}
	actor := strings.TrimSpace(r.Header.Get(actorHeader))
	if actor == "" {
		actor = strings.TrimSpace(fallback)
	}
	if actor == "" {
		return ctx
	}
	if utf8.RuneCountInString(actor) > maxActorLen {
		actor = string([]rune(actor)[:maxActorLen])
	}
	return core.ContextWithActor(ctx, actor)
}
