package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Membership metrics
	NodesConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skitter_nodes_connected",
			Help: "Total number of worker nodes currently connected to the master",
		},
	)

	NodeJoinsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skitter_node_joins_total",
			Help: "Total number of successful node join handshakes",
		},
	)

	NodeHandshakeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_node_handshake_failures_total",
			Help: "Total number of failed node join handshakes by reason",
		},
		[]string{"reason"},
	)

	// Raft metrics (master HA replication)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skitter_raft_is_leader",
			Help: "Whether this master is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skitter_raft_peers_total",
			Help: "Total number of Raft peers in the master quorum",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skitter_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_api_requests_total",
			Help: "Total number of dispatch requests by tag and status",
		},
		[]string{"tag", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skitter_api_request_duration_seconds",
			Help:    "Dispatch request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tag"},
	)

	// Worker metrics
	WorkersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skitter_workers_active",
			Help: "Number of running workers by component",
		},
		[]string{"component"},
	)

	WorkerInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_worker_invocations_total",
			Help: "Total number of receive hook invocations by component",
		},
		[]string{"component"},
	)

	WorkerInvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skitter_worker_invocation_seconds",
			Help:    "Time taken to run a receive hook invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	WorkerCrashesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_worker_crashes_total",
			Help: "Total number of worker crashes by component",
		},
		[]string{"component"},
	)

	// Deployment metrics
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_deployments_total",
			Help: "Total number of workflow deployments by status",
		},
		[]string{"status"},
	)

	DeploymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skitter_deployment_duration_seconds",
			Help:    "Time taken to deploy a workflow",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reconciliation metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skitter_reconciliation_duration_seconds",
			Help:    "Time taken to run one master reconciliation cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skitter_reconciliation_cycles_total",
			Help: "Total number of master reconciliation cycles run",
		},
	)

	// Router metrics
	RoutedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_routed_messages_total",
			Help: "Total number of values delivered through the router by destination component",
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(
		NodesConnected,
		NodeJoinsTotal,
		NodeHandshakeFailuresTotal,
		RaftLeader,
		RaftPeers,
		RaftApplyDuration,
		APIRequestsTotal,
		APIRequestDuration,
		WorkersActive,
		WorkerInvocationsTotal,
		WorkerInvocationDuration,
		WorkerCrashesTotal,
		DeploymentsTotal,
		DeploymentDuration,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		RoutedMessagesTotal,
	)
}

// Handler returns the Prometheus scrape handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an in-flight operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a plain histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
