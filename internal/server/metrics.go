package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts handled requests.
	// Labels: method, route (gin route pattern), status
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capsule",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests handled",
	}, []string{"method", "route", "status"})

	// requestDuration measures handler latency.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "capsule",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	// entriesSaved counts saved entries by mode and outcome (ok, partial).
	entriesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capsule",
		Subsystem: "journal",
		Name:      "entries_saved_total",
		Help:      "Total journal entries saved",
	}, []string{"mode", "outcome"})

	// badgesAwarded counts badges handed out on save.
	badgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capsule",
		Subsystem: "journal",
		Name:      "badges_awarded_total",
		Help:      "Total streak badges awarded",
	}, []string{"badge"})
)
