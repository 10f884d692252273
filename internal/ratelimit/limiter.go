package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/metrics"
)

// windowStore is the subset of the Redis client the limiter uses.
type windowStore interface {
	RateLimitKey(parts ...string) string
	SlidingWindowAllow(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (int64, bool, error)
	SlidingWindowOldest(ctx context.Context, key string) (time.Time, error)
}

// Policy is the window and ceiling applied to one endpoint class.
type Policy struct {
	Window time.Duration
	Limit  int
}

// Decision is the outcome of one Allow call, including everything the HTTP
// layer needs for the X-RateLimit response headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces per-(client, endpoint class) sliding window limits. When
// Redis is unreachable the limiter fails open: throttling protects capacity,
// it is not worth an outage of its own.
type Limiter struct {
	store    windowStore
	logger   *logger.Logger
	metrics  *metrics.RateLimitMetrics
	policies map[enums.EndpointClass]Policy
	now      func() time.Time
}

// LimiterParams carries the dependencies for NewLimiter.
type LimiterParams struct {
	Store    windowStore
	Logger   *logger.Logger
	Metrics  *metrics.RateLimitMetrics
	Policies map[enums.EndpointClass]Policy
	Now      func() time.Time
}

// PoliciesFromConfig maps the environment configuration onto per-class
// policies.
func PoliciesFromConfig(cfg config.RateLimitConfig) map[enums.EndpointClass]Policy {
	return map[enums.EndpointClass]Policy{
		enums.EndpointClassCheckout: {Window: cfg.CheckoutWindow, Limit: cfg.CheckoutLimit},
		enums.EndpointClassWebhook:  {Window: cfg.WebhookWindow, Limit: cfg.WebhookLimit},
		enums.EndpointClassDiscount: {Window: cfg.DiscountWindow, Limit: cfg.DiscountLimit},
		enums.EndpointClassAdmin:    {Window: cfg.AdminWindow, Limit: cfg.AdminLimit},
	}
}

// NewLimiter builds the sliding window limiter.
func NewLimiter(params LimiterParams) (*Limiter, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("window store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Policies) == 0 {
		return nil, fmt.Errorf("at least one rate limit policy required")
	}
	for class, policy := range params.Policies {
		if policy.Window <= 0 || policy.Limit <= 0 {
			return nil, fmt.Errorf("invalid policy for class %s", class)
		}
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Limiter{
		store:    params.Store,
		logger:   params.Logger,
		metrics:  params.Metrics,
		policies: params.Policies,
		now:      params.Now,
	}, nil
}

// Allow decides one request from clientIP against the class window. Only
// admitted requests are recorded in the window log, so a throttled client
// regains capacity as soon as its earlier requests age out.
func (l *Limiter) Allow(ctx context.Context, clientIP string, class enums.EndpointClass) Decision {
	policy, ok := l.policies[class]
	if !ok {
		// Unclassified routes are not throttled.
		return Decision{Allowed: true, Limit: 0, Remaining: 0, ResetAt: l.now()}
	}

	now := l.now()
	key := l.store.RateLimitKey(string(class), clientIP)

	count, allowed, err := l.store.SlidingWindowAllow(ctx, key, now, policy.Window, policy.Limit)
	if err != nil {
		l.failOpen(ctx, class, err)
		return Decision{Allowed: true, Limit: policy.Limit, Remaining: 0, ResetAt: now.Add(policy.Window)}
	}

	resetAt := now.Add(policy.Window)
	if oldest, err := l.store.SlidingWindowOldest(ctx, key); err == nil {
		resetAt = oldest.Add(policy.Window)
	}

	remaining := policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	decision := Decision{
		Allowed:   allowed,
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if decision.Allowed {
		if l.metrics != nil {
			l.metrics.IncAllowed(string(class))
		}
		return decision
	}

	if l.metrics != nil {
		l.metrics.IncRejected(string(class))
	}
	logCtx := l.logger.WithFields(ctx, map[string]any{
		"client_ip": clientIP,
		"class":     string(class),
		"limit":     policy.Limit,
	})
	l.logger.Warn(logCtx, "rate limit exceeded")
	return decision
}

func (l *Limiter) failOpen(ctx context.Context, class enums.EndpointClass, err error) {
	if l.metrics != nil {
		l.metrics.IncFailOpen(string(class))
	}
	l.logger.Error(l.logger.WithField(ctx, "class", string(class)), "rate limit store unavailable, failing open", err)
}
