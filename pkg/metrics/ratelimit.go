package metrics

import "github.com/prometheus/client_golang/prometheus"

// RateLimitMetrics counts throttle decisions per endpoint class.
type RateLimitMetrics struct {
	allowed  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	failOpen *prometheus.CounterVec
}

// NewRateLimitMetrics registers rate limiter counters on the provided registerer.
func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	if reg == nil {
		return &RateLimitMetrics{}
	}
	allowed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_allowed_total",
		Help: "Requests allowed through the rate limiter.",
	}, []string{"class"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejected_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"class"})
	failOpen := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_fail_open_total",
		Help: "Requests allowed because the limiter store was unreachable.",
	}, []string{"class"})
	reg.MustRegister(allowed, rejected, failOpen)
	return &RateLimitMetrics{allowed: allowed, rejected: rejected, failOpen: failOpen}
}

// IncAllowed records an allowed request for the class.
func (m *RateLimitMetrics) IncAllowed(class string) {
	if m == nil || m.allowed == nil {
		return
	}
	m.allowed.WithLabelValues(normalizeLabel(class)).Inc()
}

// IncRejected records a rejected request for the class.
func (m *RateLimitMetrics) IncRejected(class string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(class)).Inc()
}

// IncFailOpen records a fail-open decision for the class.
func (m *RateLimitMetrics) IncFailOpen(class string) {
	if m == nil || m.failOpen == nil {
		return
	}
	m.failOpen.WithLabelValues(normalizeLabel(class)).Inc()
}
