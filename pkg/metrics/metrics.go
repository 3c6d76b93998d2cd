package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionChecks counts membership authority decisions by action and result (allow|deny).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adboard_permission_checks_total",
			Help: "Total number of workspace permission checks",
		},
		[]string{"action", "result"},
	)

	// WorkspaceOperations counts lifecycle operations by operation and result (success|failure).
	WorkspaceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adboard_workspace_operations_total",
			Help: "Total number of workspace lifecycle operations",
		},
		[]string{"operation", "result"},
	)

	// Invitations counts invitation transitions (created|conflict|accepted|revoked|expired).
	Invitations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adboard_invitations_total",
			Help: "Total number of workspace invitation transitions",
		},
		[]string{"event"},
	)

	// ReconcileRepairs counts rows fixed by the reconciliation sweep, by kind.
	ReconcileRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adboard_reconcile_repairs_total",
			Help: "Total number of rows repaired by the reconciliation sweep",
		},
		[]string{"kind"},
	)

	// RequestsInFlight is the number of HTTP requests being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adboard_api_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// RateLimited counts requests rejected by the rate limiter, by route.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adboard_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adboard_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
