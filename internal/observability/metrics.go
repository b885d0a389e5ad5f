// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Vault operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SharesMinted      *prometheus.CounterVec
	SharesBurned      *prometheus.CounterVec
	AssetsDeposited   *prometheus.CounterVec
	AssetsWithdrawn   *prometheus.CounterVec
	VaultsInitialized prometheus.Counter

	// Pool state metrics
	PooledBalance *prometheus.GaugeVec
	ShareSupply   *prometheus.GaugeVec
	SharePrice    *prometheus.GaugeVec

	// Watcher metrics
	DonationsDetected *prometheus.CounterVec
	HighestSlotSeen   prometheus.Gauge
	SnapshotsRecorded *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency   *prometheus.HistogramVec
	WSMessageLatency prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "share_vault"
	}

	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "operations_total",
			Help:      "Total number of vault operations by kind and status",
		}, []string{"kind", "status"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "operation_duration_seconds",
			Help:      "Vault operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		SharesMinted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "shares_minted_total",
			Help:      "Total shares minted by vault",
		}, []string{"vault"}),
		SharesBurned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "shares_burned_total",
			Help:      "Total shares burned by vault",
		}, []string{"vault"}),
		AssetsDeposited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "assets_deposited_total",
			Help:      "Total asset units deposited by vault",
		}, []string{"vault"}),
		AssetsWithdrawn: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "assets_withdrawn_total",
			Help:      "Total asset units withdrawn by vault",
		}, []string{"vault"}),
		VaultsInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "initialized_total",
			Help:      "Total number of vaults initialized",
		}),

		PooledBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "balance",
			Help:      "Pooled asset balance last observed",
		}, []string{"vault"}),
		ShareSupply: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "share_supply",
			Help:      "Share supply last observed",
		}, []string{"vault"}),
		SharePrice: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "share_price",
			Help:      "Asset units per share last observed",
		}, []string{"vault"}),

		DonationsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "donations_detected_total",
			Help:      "Pool balance increases without share supply change",
		}, []string{"vault"}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),
		SnapshotsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "snapshots_recorded_total",
			Help:      "Total number of price snapshots recorded by source",
		}, []string{"source"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSMessageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_message_latency_seconds",
			Help:      "WebSocket message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records a finished vault operation.
func RecordOperation(kind, status string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordEnter records the amounts moved by a committed deposit.
func RecordEnter(vault string, assets, shares uint64) {
	DefaultMetrics.AssetsDeposited.WithLabelValues(vault).Add(float64(assets))
	DefaultMetrics.SharesMinted.WithLabelValues(vault).Add(float64(shares))
}

// RecordLeave records the amounts moved by a committed withdrawal.
func RecordLeave(vault string, assets, shares uint64) {
	DefaultMetrics.AssetsWithdrawn.WithLabelValues(vault).Add(float64(assets))
	DefaultMetrics.SharesBurned.WithLabelValues(vault).Add(float64(shares))
}

// RecordVaultInitialized increments the initialized vaults counter.
func RecordVaultInitialized() {
	DefaultMetrics.VaultsInitialized.Inc()
}

// UpdatePool sets the pool gauges for a vault.
func UpdatePool(vault string, pooled, supply uint64, price float64) {
	DefaultMetrics.PooledBalance.WithLabelValues(vault).Set(float64(pooled))
	DefaultMetrics.ShareSupply.WithLabelValues(vault).Set(float64(supply))
	DefaultMetrics.SharePrice.WithLabelValues(vault).Set(price)
}

// RecordDonation increments the donations detected counter.
func RecordDonation(vault string) {
	DefaultMetrics.DonationsDetected.WithLabelValues(vault).Inc()
}

// RecordSnapshots counts recorded price snapshots.
func RecordSnapshots(source string, n int) {
	DefaultMetrics.SnapshotsRecorded.WithLabelValues(source).Add(float64(n))
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot int64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSMessage records WebSocket message handling latency.
func RecordWSMessage(seconds float64) {
	DefaultMetrics.WSMessageLatency.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest counts an API request.
func RecordHTTPRequest(route string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
