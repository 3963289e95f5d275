package core

import (
	"context"
	"strings"
)

type contextKey string

const ctxKeyActor contextKey = "actor"

// UnknownActor is recorded when a save carries no actor identity.
const UnknownActor = "Unknown"

// ContextWithActor attaches the identity of the requesting user.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ActorFromContext returns the actor set by ContextWithActor, or "".
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyActor).(string); ok {
		return v
	}
	return ""
}

// resolveActor picks the explicit actor, then the context actor, then UnknownActor.
func resolveActor(ctx context.Context, explicit string) string {
	if a := strings.TrimSpace(explicit); a != "" {
		return a
	}
	if a := strings.TrimSpace(ActorFromContext(ctx)); a != "" {
		return a
	}
	return UnknownActor
}
