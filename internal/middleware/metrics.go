package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// MetricsAuthMiddleware guards GET /metrics with optional basic auth.
type MetricsAuthMiddleware struct {
	username []byte
	password []byte
	logger   *slog.Logger
}

// NewMetricsAuthMiddleware returns a middleware checking the scrape
// credentials. Empty username and password leave /metrics open.
func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		username: []byte(username),
		password: []byte(password),
		logger:   logger,
	}
}

func (m *MetricsAuthMiddleware) enabled() bool {
	return len(m.username) > 0 || len(m.password) > 0
}

// Handler wraps the scrape handler.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	if !m.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := m.refusal(r); reason != "" {
			m.logger.Warn("metrics scrape refused",
				"reason", reason,
				"client_ip", getClientIP(r),
			)
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			writeError(w, http.StatusUnauthorized, domain.EUNAUTHORIZED, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// refusal returns why the request may not scrape, or "" if it may.
func (m *MetricsAuthMiddleware) refusal(r *http.Request) string {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return "missing credentials"
	}
	// Compare both so timing does not reveal which one was wrong.
	userOK := subtle.ConstantTimeCompare([]byte(user), m.username) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), m.password) == 1
	if !userOK || !passOK {
		return "bad credentials"
	}
	return ""
}
