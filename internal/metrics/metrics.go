// Package metrics provides Prometheus metrics for PolicyStore
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PolicyStore
type Metrics struct {
	// Service operation metrics
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	OperationsInFlight prometheus.Gauge

	// Decision metrics
	DecisionsTotal       *prometheus.CounterVec
	QuorumResolutions    *prometheus.CounterVec
	RosterSeedsTotal     prometheus.Counter
	PendingDecisionsSeen prometheus.Gauge

	// Policy metrics
	PoliciesTotal prometheus.Gauge
	VersionsTotal prometheus.Gauge

	// Store metrics
	StoreOperationsTotal  *prometheus.CounterVec
	StoreOperationSeconds *prometheus.HistogramVec
	StoreSizeBytes        prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policystore_operations_total",
			Help: "Total number of service operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policystore_operation_duration_seconds",
			Help:    "Duration of service operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.OperationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policystore_operations_in_flight",
			Help: "Number of service operations currently being processed",
		},
	)

	m.DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policystore_decisions_total",
			Help: "Total number of recorded decisions",
		},
		[]string{"role", "outcome"},
	)

	m.QuorumResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policystore_quorum_resolutions_total",
			Help: "Total number of resolved quorum stages",
		},
		[]string{"role", "verdict"},
	)

	m.RosterSeedsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "policystore_roster_seeds_total",
			Help: "Total number of seeded pending decision rows",
		},
	)

	m.PendingDecisionsSeen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policystore_pending_decisions",
			Help: "Pending decisions observed by the last evaluation",
		},
	)

	m.PoliciesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policystore_policies_total",
			Help: "Total number of policies",
		},
	)

	m.VersionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policystore_versions_total",
			Help: "Total number of policy file versions",
		},
	)

	m.StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policystore_store_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policystore_store_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.StoreSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policystore_store_size_bytes",
			Help: "Current commit log size in bytes",
		},
	)

	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policystore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	go m.updateUptime()

	return m
}

// updateUptime periodically updates the server uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordOperation records a service operation with its status
func (m *Metrics) RecordOperation(op string, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordDecision records a recorded decision
func (m *Metrics) RecordDecision(role string, outcome string) {
	m.DecisionsTotal.WithLabelValues(role, outcome).Inc()
}

// RecordResolution records a resolved quorum stage
func (m *Metrics) RecordResolution(role string, verdict string) {
	m.QuorumResolutions.WithLabelValues(role, verdict).Inc()
}

// RecordStoreOperation records a storage operation
func (m *Metrics) RecordStoreOperation(operation string, status string, duration time.Duration) {
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateStoreStats updates store-level statistics
func (m *Metrics) UpdateStoreStats(sizeBytes int64, policyCount int64, versionCount int64) {
	m.StoreSizeBytes.Set(float64(sizeBytes))
	m.PoliciesTotal.Set(float64(policyCount))
	m.VersionsTotal.Set(float64(versionCount))
}
