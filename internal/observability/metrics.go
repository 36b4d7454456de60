// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	ScansTotal          prometheus.Counter
	CandidatesFound     prometheus.Counter
	ReclaimableLamports prometheus.Gauge

	// Operation metrics
	OperationsTotal *prometheus.CounterVec
	FailuresByStage *prometheus.CounterVec

	// Batch metrics
	BatchRunsTotal    *prometheus.CounterVec
	BatchDuration     *prometheus.HistogramVec
	ChunksCompleted   *prometheus.CounterVec
	BatchProgress     *prometheus.GaugeVec
	LamportsMoved     *prometheus.CounterVec
	IncidentalCost    *prometheus.GaugeVec
	LastSuccessfulRun *prometheus.GaugeVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ledgerops"
	}

	return &Metrics{
		// Scan metrics
		ScansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of wallet scans",
		}),
		CandidatesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_found_total",
			Help:      "Total number of reclaimable token accounts found",
		}),
		ReclaimableLamports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "reclaimable_lamports",
			Help:      "Rent locked in reclaimable accounts at the last scan",
		}),

		// Operation metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "total",
			Help:      "Total number of ledger operations by kind and status",
		}, []string{"kind", "status"}),
		FailuresByStage: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "failures_total",
			Help:      "Failed ledger operations by kind and last stage reached",
		}, []string{"kind", "stage"}),

		// Batch metrics
		BatchRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by kind and status",
		}, []string{"kind", "status"}),
		BatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		ChunksCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "chunks_completed_total",
			Help:      "Total number of chunks joined",
		}, []string{"kind"}),
		BatchProgress: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "progress_ratio",
			Help:      "Fraction of targets processed in the current run",
		}, []string{"kind"}),
		LamportsMoved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "lamports_moved_total",
			Help:      "Lamports recovered or transferred by confirmed operations",
		}, []string{"kind"}),
		IncidentalCost: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "incidental_cost_lamports",
			Help:      "Balance delta not explained by outcomes in the last run",
		}, []string{"kind"}),
		LastSuccessfulRun: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last run without failures",
		}, []string{"kind"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
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

// RecordScan records a completed wallet scan.
func RecordScan(candidates int, rentLamports uint64) {
	DefaultMetrics.ScansTotal.Inc()
	DefaultMetrics.CandidatesFound.Add(float64(candidates))
	DefaultMetrics.ReclaimableLamports.Set(float64(rentLamports))
}

// RecordOutcome records one ledger operation. stage is ignored on success.
func RecordOutcome(kind string, succeeded bool, stage string) {
	if succeeded {
		DefaultMetrics.OperationsTotal.WithLabelValues(kind, "succeeded").Inc()
		return
	}
	DefaultMetrics.OperationsTotal.WithLabelValues(kind, "failed").Inc()
	DefaultMetrics.FailuresByStage.WithLabelValues(kind, stage).Inc()
}

// RecordChunk records a joined chunk and the run's progress.
func RecordChunk(kind string, processed, total int) {
	DefaultMetrics.ChunksCompleted.WithLabelValues(kind).Inc()
	if total > 0 {
		DefaultMetrics.BatchProgress.WithLabelValues(kind).Set(float64(processed) / float64(total))
	}
}

// RecordBatch records a finished batch run.
func RecordBatch(kind, status string, durationSeconds float64, movedLamports uint64, incidentalLamports int64) {
	DefaultMetrics.BatchRunsTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.BatchDuration.WithLabelValues(kind).Observe(durationSeconds)
	DefaultMetrics.LamportsMoved.WithLabelValues(kind).Add(float64(movedLamports))
	DefaultMetrics.IncidentalCost.WithLabelValues(kind).Set(float64(incidentalLamports))
	if status == "ok" {
		DefaultMetrics.LastSuccessfulRun.WithLabelValues(kind).Set(float64(time.Now().Unix()))
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
