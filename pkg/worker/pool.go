package worker

import (
	"sync"
	"time"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/strategy"
)

// maxRestartsPerInterval bounds how many times Pool will respawn the same
// worker identity within restartInterval before giving up and leaving it
// crashed, so a worker whose receive hook panics on every message does not
// spin the node's CPU forever.
const (
	maxRestartsPerInterval = 5
	restartInterval        = 10 * time.Second
)

type restartBudget struct {
	count     int
	windowEnd time.Time
}

// Pool supervises every worker spawned on one node, restarting crashed
// workers with a fresh empty state and keeping a lookup table for the
// router and deployment engine.
type Pool struct {
	mu       sync.Mutex
	workers  map[Ref]*Worker
	restarts map[Ref]*restartBudget
}

// NewPool returns an empty, ready-to-use pool.
func NewPool() *Pool {
	return &Pool{
		workers:  make(map[Ref]*Worker),
		restarts: make(map[Ref]*restartBudget),
	}
}

// Spawn creates, registers, and starts a new worker under this pool. The
// pool's own crash handler is wired in transparently so callers only
// supply the publish sink.
func (p *Pool) Spawn(ref Ref, comp *component.Component, strat *strategy.Strategy, deploymentData any, tag string, mailboxSize int, publish Publisher) *Worker {
	w := New(ref, comp, strat, deploymentData, tag, mailboxSize, publish, p.handleCrash)
	p.mu.Lock()
	p.workers[ref] = w
	p.mu.Unlock()
	w.Start()
	return w
}

func (p *Pool) handleCrash(ref Ref, reason error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	budget := p.restarts[ref]
	now := time.Now()
	if budget == nil || now.After(budget.windowEnd) {
		budget = &restartBudget{count: 0, windowEnd: now.Add(restartInterval)}
		p.restarts[ref] = budget
	}
	budget.count++
	if budget.count > maxRestartsPerInterval {
		log.WithComponent("worker-pool").Error().Str("worker", ref.String()).Msg("restart budget exceeded, leaving worker crashed")
		return
	}

	old, ok := p.workers[ref]
	if !ok {
		return
	}
	p.workers[ref] = old.restart()
}

// Lookup returns the worker currently registered under ref, if any.
func (p *Pool) Lookup(ref Ref) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[ref]
	return w, ok
}

// All returns every worker currently registered, in no particular order.
func (p *Pool) All() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w)
	}
	return out
}

// Remove stops and unregisters a worker, invoking its strategy's
// drop_invocation hook is the caller's responsibility (the deployment
// engine does this before calling Remove, since only it knows the full
// deployment context a drop hook needs).
func (p *Pool) Remove(ref Ref) {
	p.mu.Lock()
	w, ok := p.workers[ref]
	delete(p.workers, ref)
	delete(p.restarts, ref)
	p.mu.Unlock()
	if ok {
		w.Stop()
	}
}

// Count returns how many workers are currently registered.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
