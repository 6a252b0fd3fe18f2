/*
Package metrics provides Prometheus metrics collection and exposition for
skitter, plus the HTTP health/readiness/liveness surface in health.go.

All metrics are package-level Prometheus collectors registered once in
init(), exposed over HTTP for scraping by a Prometheus server.

# Metrics Catalog

Cluster and Raft:

	skitter_nodes_connected
	  Gauge. Workers currently connected to this master.

	skitter_node_joins_total
	  Counter. Node join attempts accepted.

	skitter_node_handshake_failures_total
	  Counter. Node join attempts rejected during handshake.

	skitter_raft_is_leader
	  Gauge. 1 if this node is the Raft leader, 0 otherwise.

	skitter_raft_peers_total
	  Gauge. Current Raft peer count.

	skitter_raft_apply_duration_seconds
	  Histogram. Time to apply a Raft log entry.

API:

	skitter_api_requests_total{tag,status}
	  Counter. Dispatch requests by envelope tag and outcome.

	skitter_api_request_duration_seconds{tag}
	  Histogram. Request handling duration.

Workers:

	skitter_workers_active{component}
	  Gauge. Workers currently spawned on this node, by component name.

	skitter_worker_invocations_total{component}
	  Counter. receive hook invocations, by component name.

	skitter_worker_invocation_seconds{component}
	  Histogram. receive hook duration, by component name.

	skitter_worker_crashes_total{component}
	  Counter. Panics recovered from a worker's receive invocation.

Deployment and reconciliation:

	skitter_deployments_total{status}
	  Counter. Workflow deployments, by status.

	skitter_deployment_duration_seconds
	  Histogram. Time spent in Deploy's flatten/resolve/deploy/route pipeline.

	skitter_reconciliation_duration_seconds
	  Histogram. Reconciler cycle duration.

	skitter_reconciliation_cycles_total
	  Counter. Completed reconciliation cycles.

Routing:

	skitter_routed_messages_total{component}
	  Counter. Values delivered through the router, by destination component.

# Usage

	import "github.com/skitter-project/skitter/pkg/metrics"

	metrics.NodesConnected.Set(3)
	metrics.WorkerInvocationsTotal.WithLabelValues("average").Inc()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.WorkerInvocationDuration, "average")

Exposing the endpoint (see cmd/skitter/master.go and worker.go for the
full mux, which also serves /healthz, /readyz and /livez from health.go):

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(metricsAddr, mux)

# Health and readiness

health.go tracks per-component health independently of the Prometheus
collectors above, fed by RegisterComponent/UpdateComponent (one call per
long-lived subsystem: "raft", "dispatch", "master", depending on run
mode). GetHealth aggregates these into the /healthz response; GetReadiness
additionally requires every registered component to be healthy and at
least one to have registered at all before reporting ready, since
skitter's run modes each register a different subset of components.
*/
package metrics
