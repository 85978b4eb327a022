// Package auth provides actor context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// actorContextKey is the key used to store the calling actor in context.
	actorContextKey contextKey = "actor"
)

// GetActor retrieves the actor from the context.
//
// Returns the zero Actor (no id, not a moderator) when none was set, which
// holds no role on any content.
//
// Usage:
//
//	actor := auth.GetActor(r.Context())
//	if actor.ID == uuid.Nil {
//	    // Handle anonymous request
//	}
func GetActor(ctx context.Context) domain.Actor {
	actor, ok := ctx.Value(actorContextKey).(domain.Actor)
	if !ok {
		return domain.Actor{}
	}
	return actor
}

// GetActorFromRequest retrieves the actor from the request context.
func GetActorFromRequest(r *http.Request) domain.Actor {
	return GetActor(r.Context())
}

// SetActor stores an actor in the context.
//
// This is called by the actor middleware after reading the identity
// headers set by the gateway.
func SetActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
