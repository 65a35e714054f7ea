package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessChecks counts resource access evaluations and their outcome (allowed|denied|error).
	AccessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbstats_access_checks_total",
			Help: "Total number of resource access checks",
		},
		[]string{"resource_type", "result"},
	)

	// RoleChecks counts role gate evaluations by required role and outcome.
	RoleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbstats_role_checks_total",
			Help: "Total number of role gate evaluations",
		},
		[]string{"required_role", "result"},
	)

	// AccessRequests counts request workflow transitions (created|approved|rejected).
	AccessRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbstats_access_requests_total",
			Help: "Total number of access request workflow transitions",
		},
		[]string{"transition"},
	)

	// RoleCacheLookups counts role cache hits and misses.
	RoleCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbstats_role_cache_lookups_total",
			Help: "Role cache lookups by result",
		},
		[]string{"result"},
	)

	// GrantsSwept tracks how many grants the periodic sweep deactivated.
	GrantsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fbstats_grants_swept_total",
			Help: "Expired grants deactivated by the background sweep",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fbstats_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
