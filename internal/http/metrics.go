package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kyc",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"})

		r.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kyc",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"})

		r.rateLimitHits = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kyc",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		})

		r.submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kyc",
			Subsystem: "workflow",
			Name:      "submissions_total",
			Help:      "Accepted KYC submissions by kind",
		}, []string{"kind"})

		r.decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kyc",
			Subsystem: "workflow",
			Name:      "decisions_total",
			Help:      "Administrator decisions by resulting status",
		}, []string{"status"})

		r.requestTotal = registerCollector(r.requestTotal)
		r.requestLatency = registerCollector(r.requestLatency)
		r.rateLimitHits = registerCollector(r.rateLimitHits)
		r.submissionsTotal = registerCollector(r.submissionsTotal)
		r.decisionsTotal = registerCollector(r.decisionsTotal)
		r.metricsInitialized = true
	})
}

// registerCollector registers c, reusing an identical collector registered earlier.
func registerCollector[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit() {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.Inc()
}

func (r *Router) recordSubmission(resubmitted bool) {
	if !r.metricsInitialized {
		return
	}
	kind := "new"
	if resubmitted {
		kind = "resubmission"
	}
	r.submissionsTotal.WithLabelValues(kind).Inc()
}

func (r *Router) recordDecision(status string) {
	if !r.metricsInitialized {
		return
	}
	r.decisionsTotal.WithLabelValues(status).Inc()
}
