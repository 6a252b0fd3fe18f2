package worker

import (
	"testing"
	"time"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumStrategy(t *testing.T, panicOn *int) *strategy.Strategy {
	t.Helper()
	receive := &component.Callback{
		Name:            "receive",
		StateCapability: true,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			v := env.Args[0].(int)
			if panicOn != nil && v == *panicOn {
				panic("boom")
			}
			sum := 0
			if env.State != nil {
				sum = env.State.(int)
			}
			return component.CallbackResult{State: sum + v}, nil
		},
	}
	return strategy.New("sum", map[strategy.HookName]*component.Callback{strategy.HookReceive: receive})
}

func TestWorkerProcessesMessagesInFIFOOrder(t *testing.T) {
	comp, err := component.NewComponent("acc", nil, nil, nil, nil)
	require.NoError(t, err)

	record := &component.Callback{
		Name:            "receive",
		StateCapability: true,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			seen, _ := env.State.([]int)
			return component.CallbackResult{State: append(seen, env.Args[0].(int))}, nil
		},
	}
	strat := strategy.New("record", map[strategy.HookName]*component.Callback{strategy.HookReceive: record})

	w := New(Ref{Node: "n1", LocalID: "w1"}, comp, strat, nil, "primary", 8, nil, nil)
	w.Start()
	defer w.Stop()

	for _, v := range []int{1, 2, 3, 4, 5} {
		require.NoError(t, w.Send([]any{v}))
	}

	require.Eventually(t, func() bool {
		s, ok := w.State().([]int)
		return ok && len(s) == 5
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, w.State())
}

func TestWorkerCrashResetsToFreshEmptyState(t *testing.T) {
	comp, err := component.NewComponent("acc", nil, nil, nil, nil)
	require.NoError(t, err)

	crashed := make(chan Ref, 1)
	poison := 99
	w := New(Ref{Node: "n1", LocalID: "w2"}, comp, sumStrategy(t, &poison), nil, "primary", 8, nil, func(ref Ref, reason error) {
		crashed <- ref
	})
	w.Start()
	defer w.Stop()

	require.NoError(t, w.Send([]any{5}))
	require.Eventually(t, func() bool { return w.State() != nil }, time.Second, time.Millisecond)

	require.NoError(t, w.Send([]any{poison}))

	select {
	case <-crashed:
	case <-time.After(time.Second):
		t.Fatal("expected crash notification")
	}
	assert.Equal(t, StatusCrashed, w.currentStatus())
	assert.Nil(t, w.State(), "state must reset to nil after a crash")
}

func TestPoolRespawnsCrashedWorkerWithFreshState(t *testing.T) {
	comp, err := component.NewComponent("acc", nil, nil, nil, nil)
	require.NoError(t, err)
	poison := 7

	p := NewPool()
	ref := Ref{Node: "n1", LocalID: "w3"}
	p.Spawn(ref, comp, sumStrategy(t, &poison), nil, "primary", 8, nil)

	require.NoError(t, mustLookupSend(t, p, ref, 3))
	require.Eventually(t, func() bool {
		w, _ := p.Lookup(ref)
		return w.State() != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, mustLookupSend(t, p, ref, poison))

	require.Eventually(t, func() bool {
		w, ok := p.Lookup(ref)
		return ok && w.currentStatus() == StatusRunning
	}, time.Second, time.Millisecond)

	w, ok := p.Lookup(ref)
	require.True(t, ok)
	assert.Nil(t, w.State())
}

func mustLookupSend(t *testing.T, p *Pool, ref Ref, v int) error {
	t.Helper()
	w, ok := p.Lookup(ref)
	require.True(t, ok)
	return w.Send([]any{v})
}
