package router

import (
	"fmt"
	"sync"

	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/worker"
	"github.com/skitter-project/skitter/pkg/workflow"
)

// Destination is one wired target of a published value. A local
// destination carries the strategy that decides which of its workers
// should receive the value and the pool those workers live in. A
// destination placed on another cluster node carries Forward instead:
// deliverOne hands the raw value to it rather than dispatching to a
// strategy's send hook, letting the deployment engine relay it across the
// wire without the router package knowing anything about transport.
type Destination struct {
	ComponentRef   string
	InPort         string
	Strategy       *strategy.Strategy
	Pool           *worker.Pool
	DeploymentData any
	Forward        func(value any) error
}

// Table is the routing table built by the deployment engine: for every
// source endpoint (a node's out-port), the ordered list of destinations
// wired to it.
type Table struct {
	mu     sync.RWMutex
	routes map[workflow.Endpoint][]Destination
}

// NewTable returns an empty routing table.
func NewTable() *Table {
	return &Table{routes: make(map[workflow.Endpoint][]Destination)}
}

// AddRoute wires a source endpoint to one more destination, appended after
// any routes already registered for that source.
func (t *Table) AddRoute(from workflow.Endpoint, dest Destination) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[from] = append(t.routes[from], dest)
}

// Dispatch delivers one published value to every destination wired to
// `from`, in the order they were registered. Ordering across different
// out-ports or different callback invocations is never guaranteed by this
// package — only the values published by a single callback call, in a
// single publish, are delivered in the order Invoke produced them (the
// caller is expected to call Dispatch once per published value, in order).
func (t *Table) Dispatch(from workflow.Endpoint, value any) error {
	t.mu.RLock()
	dests := append([]Destination(nil), t.routes[from]...)
	t.mu.RUnlock()

	for _, d := range dests {
		if err := deliverOne(d, value); err != nil {
			return err
		}
	}
	return nil
}

// deliverOne builds the send hook's destination context with all four
// fields spec.md §4.9 names: the destination component and strategy, its
// deployment data, and its invocation data. InvocationData is left empty
// here — the send hook picks which of the destination's (possibly many)
// workers will receive the value, so no single worker's per-invocation tag
// exists yet at this point; it is seeded once the chosen worker's own
// receive runs (see pkg/worker.Worker.invoke).
func deliverOne(d Destination, value any) error {
	if d.Forward != nil {
		if err := d.Forward(value); err != nil {
			return fmt.Errorf("forwarding to %s.%s: %w", d.ComponentRef, d.InPort, err)
		}
		return nil
	}

	ctx := &strategy.Context{ComponentRef: d.ComponentRef, StrategyRef: d.Strategy.Name, DeploymentData: d.DeploymentData}
	res, err := strategy.Dispatch(d.Strategy, strategy.HookSend, ctx, []any{d.InPort, value}, nil)
	if err != nil {
		return fmt.Errorf("routing to %s.%s: %w", d.ComponentRef, d.InPort, err)
	}

	refs, err := asRefs(res.Value)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		w, ok := d.Pool.Lookup(ref)
		if !ok {
			return fmt.Errorf("routing to %s.%s: worker %s not found", d.ComponentRef, d.InPort, ref)
		}
		if err := w.Send([]any{value}); err != nil {
			return err
		}
	}
	return nil
}

func asRefs(v any) ([]worker.Ref, error) {
	switch t := v.(type) {
	case worker.Ref:
		return []worker.Ref{t}, nil
	case []worker.Ref:
		return t, nil
	default:
		return nil, fmt.Errorf("send hook returned %T, expected worker.Ref or []worker.Ref", v)
	}
}
