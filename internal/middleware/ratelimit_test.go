package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("actor:a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("actor:a") {
		t.Error("4th request should be denied")
	}
	if !rl.Allow("actor:b") {
		t.Error("other keys have their own window")
	}

	if got := rl.TimeUntilReset("actor:a"); got != time.Minute {
		t.Errorf("expected 1m until reset, got %v", got)
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("actor:a") {
		t.Error("request after the window should be allowed")
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("ip:1.2.3.4")
	now = now.Add(2 * time.Minute)
	rl.sweep()

	if len(rl.entries) != 0 {
		t.Errorf("expected expired entries to be removed, %d left", len(rl.entries))
	}
}

func TestRateLimitMiddleware_Limit(t *testing.T) {
	var buf bytes.Buffer
	actorMw := NewActorMiddleware(testLogger(&buf))
	limitMw := NewRateLimitMiddleware(NewRateLimiter(1, time.Minute), testLogger(&buf))

	handler := Stack(actorMw.WithActor, limitMw.Limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/accounts/x/events", nil)
		req.Header.Set(HeaderActorID, actor)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	a, b := uuid.NewString(), uuid.NewString()

	if rec := send(a); rec.Code != http.StatusCreated {
		t.Fatalf("first request: expected 201, got %d", rec.Code)
	}
	rec := send(a)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec := send(b); rec.Code != http.StatusCreated {
		t.Errorf("other actor: expected 201, got %d", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "10.0.0.1:5000", nil, "10.0.0.1"},
		{"remote addr without port", "10.0.0.1", nil, "10.0.0.1"},
		{"forwarded for", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "203.0.113.7"},
		{"real ip", "10.0.0.1:5000", map[string]string{"X-Real-IP": "203.0.113.8"}, "203.0.113.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
