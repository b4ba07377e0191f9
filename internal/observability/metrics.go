// Package observability provides Prometheus metrics and structured logging.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency    *prometheus.HistogramVec
	EndpointProbes    *prometheus.CounterVec
	ResolverDegraded  prometheus.Counter
	ResolvedEndpoints *prometheus.CounterVec

	// Metadata cache metrics
	MetadataRefreshes   *prometheus.CounterVec
	MetadataLookups     prometheus.Counter
	MetadataIDsResolved *prometheus.CounterVec
	MetadataCacheSize   prometheus.Gauge
	MetadataFetchedAt   prometheus.Gauge

	// Market metrics
	MarketLoads         *prometheus.CounterVec
	MarketLoadDuration  prometheus.Histogram
	BankRecordsSeen     prometheus.Counter
	BankRecordsSkipped  prometheus.Counter
	RateSamplesRecorded prometheus.Counter

	// Action metrics
	ActionsDispatched *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lend_widget"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		EndpointProbes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "probes_total",
			Help:      "Total number of endpoint liveness probes by result",
		}, []string{"result"}),
		ResolverDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "degraded_total",
			Help:      "Total number of resolutions that fell back to an unverified endpoint",
		}),
		ResolvedEndpoints: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of resolutions by candidate position",
		}, []string{"position"}),

		MetadataRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "refreshes_total",
			Help:      "Total number of strict list refreshes by status",
		}, []string{"status"}),
		MetadataLookups: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "lookups_total",
			Help:      "Total number of batched metadata lookups",
		}),
		MetadataIDsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "ids_total",
			Help:      "Total number of looked up mints by outcome",
		}, []string{"outcome"}),
		MetadataCacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "cache_size",
			Help:      "Number of mints in the current snapshot",
		}),
		MetadataFetchedAt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "snapshot_fetched_timestamp",
			Help:      "Unix timestamp of the current snapshot",
		}),

		MarketLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "loads_total",
			Help:      "Total number of market loads by status",
		}, []string{"status"}),
		MarketLoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "load_duration_seconds",
			Help:      "Market load duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		BankRecordsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "bank_records_total",
			Help:      "Total number of bank records processed",
		}),
		BankRecordsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "bank_records_skipped_total",
			Help:      "Total number of bank records skipped due to errors",
		}),
		RateSamplesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "rate_samples_recorded_total",
			Help:      "Total number of rate samples written to history",
		}),

		ActionsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "dispatched_total",
			Help:      "Total number of dispatched actions by kind and status",
		}, []string{"kind", "status"}),

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
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordProbe records one endpoint liveness probe.
func RecordProbe(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DefaultMetrics.EndpointProbes.WithLabelValues(result).Inc()
}

// RecordResolution records which candidate position won, or a degraded fallback.
func RecordResolution(position string, verified bool) {
	DefaultMetrics.ResolvedEndpoints.WithLabelValues(position).Inc()
	if !verified {
		DefaultMetrics.ResolverDegraded.Inc()
	}
}

// RecordMetadataRefresh records a strict list refresh and the resulting snapshot.
func RecordMetadataRefresh(err error, size int, fetchedAtMs int64) {
	if err != nil {
		DefaultMetrics.MetadataRefreshes.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.MetadataRefreshes.WithLabelValues("success").Inc()
	DefaultMetrics.MetadataCacheSize.Set(float64(size))
	DefaultMetrics.MetadataFetchedAt.Set(float64(fetchedAtMs / 1000))
}

// RecordMetadataLookup records a batched lookup.
func RecordMetadataLookup(found, missing int) {
	DefaultMetrics.MetadataLookups.Inc()
	DefaultMetrics.MetadataIDsResolved.WithLabelValues("found").Add(float64(found))
	DefaultMetrics.MetadataIDsResolved.WithLabelValues("missing").Add(float64(missing))
}

// RecordMarketLoad records a market load.
func RecordMarketLoad(status string, seen, skipped int, durationSeconds float64) {
	DefaultMetrics.MarketLoads.WithLabelValues(status).Inc()
	DefaultMetrics.MarketLoadDuration.Observe(durationSeconds)
	DefaultMetrics.BankRecordsSeen.Add(float64(seen))
	DefaultMetrics.BankRecordsSkipped.Add(float64(skipped))
}

// RecordRateSamples records rate samples written to history.
func RecordRateSamples(n int) {
	DefaultMetrics.RateSamplesRecorded.Add(float64(n))
}

// RecordAction records a dispatched action.
func RecordAction(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.ActionsDispatched.WithLabelValues(kind, status).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
