package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vendora-market/vendora-backend/internal/ratelimit"
	"github.com/vendora-market/vendora-backend/pkg/enums"
)

type fakeLimiter struct {
	decision ratelimit.Decision
	lastIP   string
}

func (f *fakeLimiter) Allow(ctx context.Context, clientIP string, class enums.EndpointClass) ratelimit.Decision {
	f.lastIP = clientIP
	return f.decision
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitSetsWindowHeaders(t *testing.T) {
	limiter := &fakeLimiter{decision: ratelimit.Decision{
		Allowed:   true,
		Limit:     10,
		Remaining: 7,
		ResetAt:   time.Now().Add(30 * time.Second),
	}}
	handler := RateLimit(limiter, enums.EndpointClassCheckout)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "203.0.113.7", limiter.lastIP)
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	limiter := &fakeLimiter{decision: ratelimit.Decision{
		Allowed:   false,
		Limit:     5,
		Remaining: 0,
		ResetAt:   time.Now().Add(45 * time.Second),
	}}
	handler := RateLimit(limiter, enums.EndpointClassCheckout)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitPrefersForwardedFor(t *testing.T) {
	limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 5, Remaining: 4, ResetAt: time.Now()}}
	handler := RateLimit(limiter, enums.EndpointClassCheckout)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "198.51.100.4", limiter.lastIP)
}
