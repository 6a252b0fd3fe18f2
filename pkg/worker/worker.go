package worker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/metrics"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/strategy"
)

// Ref identifies one spawned worker, scoped to the node it runs on.
type Ref struct {
	Node    string
	LocalID string
}

func (r Ref) String() string { return r.Node + "/" + r.LocalID }

// Status is the worker's lifecycle state, matching spec.md §4.10's worker
// state machine: a worker is created, then running, and ends either
// crashed (supervisor will respawn it) or stopped (deliberately torn down,
// no respawn).
type Status int32

const (
	StatusCreated Status = iota
	StatusRunning
	StatusCrashed
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusCrashed:
		return "crashed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Publisher hands a published value on an out-port to whatever routes it
// onward (pkg/router.Table in production, a test stub in unit tests).
type Publisher func(outPort string, value any)

// CrashHandler is notified when a worker's receive invocation panics.
type CrashHandler func(ref Ref, reason error)

// Worker drains a FIFO mailbox with a single goroutine, invoking its
// strategy's receive hook once per message and forwarding any published
// values through Publish. state is guarded by mu and status is atomic;
// invoke never runs concurrently with another invoke of the same worker
// because only the drain loop calls it.
type Worker struct {
	Ref            Ref
	Component      *component.Component
	Strategy       *strategy.Strategy
	DeploymentData any
	Tag            string

	mailbox chan []any
	publish Publisher
	onCrash CrashHandler

	mu     sync.Mutex
	state  any
	status atomic.Int32

	stopCh chan struct{}
	done   chan struct{}
	logger zerolog.Logger
}

// New constructs a worker in the Created state with an empty mailbox of the
// given capacity and a nil starting state. It does not start the drain
// loop; call Start for that.
func New(ref Ref, comp *component.Component, strat *strategy.Strategy, deploymentData any, tag string, mailboxSize int, publish Publisher, onCrash CrashHandler) *Worker {
	w := &Worker{
		Ref:            ref,
		Component:      comp,
		Strategy:       strat,
		DeploymentData: deploymentData,
		Tag:            tag,
		mailbox:        make(chan []any, mailboxSize),
		publish:        publish,
		onCrash:        onCrash,
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
		logger:         log.WithComponent("worker").With().Str("worker", ref.String()).Logger(),
	}
	w.status.Store(int32(StatusCreated))
	return w
}

// currentStatus returns the worker's current lifecycle state.
func (w *Worker) currentStatus() Status { return Status(w.status.Load()) }

// Start begins the drain loop in its own goroutine.
func (w *Worker) Start() {
	w.status.Store(int32(StatusRunning))
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stopCh:
			w.status.Store(int32(StatusStopped))
			return
		case args, ok := <-w.mailbox:
			if !ok {
				w.status.Store(int32(StatusStopped))
				return
			}
			w.invoke(args)
		}
	}
}

func (w *Worker) invoke(args []any) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Errorf("%v", r)
			w.logger.Error().Err(reason).Msg("worker panicked, resetting state")
			w.status.Store(int32(StatusCrashed))
			metrics.WorkerCrashesTotal.WithLabelValues(w.Component.Name).Inc()
			w.mu.Lock()
			w.state = nil
			w.mu.Unlock()
			if w.onCrash != nil {
				w.onCrash(w.Ref, reason)
			}
		}
	}()

	timer := metrics.NewTimer()

	w.mu.Lock()
	state := w.state
	w.mu.Unlock()

	ctx := &strategy.Context{
		ComponentRef:   w.Component.Name,
		StrategyRef:    w.Strategy.Name,
		DeploymentData: w.DeploymentData,
		InvocationData: w.Tag,
	}
	res, err := strategy.Dispatch(w.Strategy, strategy.HookReceive, ctx, args, state)
	timer.ObserveDurationVec(metrics.WorkerInvocationDuration, w.Component.Name)
	metrics.WorkerInvocationsTotal.WithLabelValues(w.Component.Name).Inc()
	if err != nil {
		w.logger.Error().Err(err).Msg("receive hook failed")
		return
	}

	if res.State != nil {
		w.mu.Lock()
		w.state = res.State
		w.mu.Unlock()
	}

	if w.publish != nil {
		for port, values := range res.Published {
			for _, v := range values {
				w.publish(port, v)
			}
		}
	}
}

// Send pushes a message onto the worker's mailbox. The default
// back-pressure policy blocks the caller when the mailbox is full.
func (w *Worker) Send(args []any) error {
	if w.currentStatus() == StatusStopped {
		return fmt.Errorf("worker %s: %w", w.Ref, skerr.ErrNotConnected)
	}
	w.mailbox <- args
	return nil
}

// TrySend pushes a message without blocking, returning false, with nothing
// enqueued, if the mailbox is full. The router does not use it; it always
// delivers with the blocking Send.
func (w *Worker) TrySend(args []any) bool {
	select {
	case w.mailbox <- args:
		return true
	default:
		return false
	}
}

// Stop signals the drain loop to exit after the current message, if any,
// finishes processing, and waits for it to do so.
func (w *Worker) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.done
}

// State returns a snapshot of the worker's current state, mainly for tests
// and diagnostics.
func (w *Worker) State() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// restart replaces this worker's goroutine with a fresh one sharing the
// same identity and deployment tuple but a nil state, per the
// crash-then-fresh-state supervision rule.
func (w *Worker) restart() *Worker {
	fresh := New(w.Ref, w.Component, w.Strategy, w.DeploymentData, w.Tag, cap(w.mailbox), w.publish, w.onCrash)
	fresh.Start()
	return fresh
}
