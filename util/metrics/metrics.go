// Package metrics exposes Prometheus collectors for the registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "patient_registry"

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Security metrics
	FailedLoginAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failed_logins_total",
		Help:      "Login attempts rejected for bad credentials.",
	})

	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_rate_limit_hits_total",
		Help:      "Login attempts rejected by the rate limiter.",
	})

	SessionTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_timeouts_total",
		Help:      "Sessions cleared after the idle timeout.",
	})

	// Registry metrics
	PatientWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "patient_writes_total",
		Help:      "Patient record writes by operation.",
	}, []string{"op"})
)
