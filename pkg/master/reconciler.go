package master

import (
	"time"

	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/metrics"
)

// Reconciler periodically sweeps the membership table for nodes whose
// liveness monitor has gone quiet and disconnects them, replicating the
// leave through Raft so every master's view converges. Adapted from the
// teacher's pkg/reconciler correction loop, narrowed from container/task
// state repair down to the one thing a master alone can decide: whether a
// node is still part of the cluster.
type Reconciler struct {
	master *Master
	stopCh chan struct{}
}

// NewReconciler builds a reconciler over m. Its loop runs on any master;
// each reconcile pass returns at once unless m holds Raft leadership.
func NewReconciler(m *Master) *Reconciler {
	return &Reconciler{master: m, stopCh: make(chan struct{})}
}

// Start begins the reconciliation loop in its own goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop halts the loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	logger := log.WithComponent("master-reconciler")
	logger.Info().Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	if !r.master.IsLeader() {
		return
	}

	r.master.Tokens.CleanupExpired()

	logger := log.WithComponent("master-reconciler")
	for _, id := range r.master.Table.Nodes() {
		entry, ok := r.master.Table.Lookup(id)
		if !ok || entry.Monitor == nil {
			continue
		}
		if !entry.Monitor.Alive() {
			logger.Warn().Str("node", id.String()).Msg("node missed too many heartbeats, disconnecting")
			if err := r.master.DisconnectNode(id); err != nil {
				logger.Error().Err(err).Str("node", id.String()).Msg("failed to disconnect unresponsive node")
			}
		}
	}
}
