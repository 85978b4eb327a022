// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/auth"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// Identity headers set by the gateway in front of this service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// ActorMiddleware resolves the calling actor from gateway headers.
//
// The gateway authenticates the caller and forwards the account id and role.
// This service trusts those headers and must not be reachable directly.
type ActorMiddleware struct {
	logger *slog.Logger
}

// NewActorMiddleware creates a new ActorMiddleware.
func NewActorMiddleware(logger *slog.Logger) *ActorMiddleware {
	return &ActorMiddleware{
		logger: logger,
	}
}

// WithActor stores the actor in the request context. Requests without an
// actor id continue anonymously; malformed headers are rejected.
func (m *ActorMiddleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if rawID == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(rawID)
		if err != nil {
			m.logger.Warn("invalid actor id header", "path", r.URL.Path, "ip", getClientIP(r))
			writeError(w, http.StatusUnauthorized, domain.EUNAUTHORIZED, "Invalid actor identity")
			return
		}

		role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))
		switch domain.ActorRole(role) {
		case "", domain.RoleOwner, domain.RoleModerator:
		default:
			m.logger.Warn("invalid actor role header", "path", r.URL.Path, "role", role)
			writeError(w, http.StatusUnauthorized, domain.EUNAUTHORIZED, "Invalid actor role")
			return
		}

		actor := domain.Actor{
			ID:        id,
			Moderator: domain.ActorRole(role) == domain.RoleModerator,
		}
		next.ServeHTTP(w, r.WithContext(auth.SetActor(r.Context(), actor)))
	})
}

// RequireActor rejects anonymous requests with 401.
// Must be used after WithActor.
func (m *ActorMiddleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetActor(r.Context()).ID == uuid.Nil {
			writeError(w, http.StatusUnauthorized, domain.EUNAUTHORIZED, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stack composes middlewares so the first one listed runs first.
//
// Usage:
//
//	protected := middleware.Stack(actorMw.RequireActor, writeLimit.Limit)
//	mux.Handle("POST /api/accounts/{id}/events", protected(h))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// writeError writes the API's JSON error shape.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
