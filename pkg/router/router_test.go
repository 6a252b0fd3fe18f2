package router

import (
	"testing"
	"time"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/worker"
	"github.com/skitter-project/skitter/pkg/workflow"
	"github.com/stretchr/testify/require"
)

func singleWorkerStrategy(ref worker.Ref) *strategy.Strategy {
	send := &component.Callback{
		Name:              "send",
		PublishCapability: false,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			return component.CallbackResult{Value: ref}, nil
		},
	}
	recv := &component.Callback{
		Name:            "receive",
		StateCapability: true,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			return component.CallbackResult{State: env.Args[0]}, nil
		},
	}
	return strategy.New("single", map[strategy.HookName]*component.Callback{
		strategy.HookSend:    send,
		strategy.HookReceive: recv,
	})
}

func TestDispatchDeliversToSelectedWorker(t *testing.T) {
	comp, err := component.NewComponent("sink", nil, nil, nil, nil)
	require.NoError(t, err)

	pool := worker.NewPool()
	ref := worker.Ref{Node: "n1", LocalID: "w1"}
	strat := singleWorkerStrategy(ref)
	pool.Spawn(ref, comp, strat, nil, "primary", 4, nil)

	table := NewTable()
	from := workflow.Internal("source", "out")
	table.AddRoute(from, Destination{ComponentRef: "sink", InPort: "in", Strategy: strat, Pool: pool})

	require.NoError(t, table.Dispatch(from, 42))

	require.Eventually(t, func() bool {
		w, ok := pool.Lookup(ref)
		return ok && w.State() == 42
	}, time.Second, time.Millisecond)
}
