package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/deploy"
	"github.com/skitter-project/skitter/pkg/storage"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/worker"
)

func sumReceive() *component.Callback {
	return &component.Callback{
		Name:            "receive",
		StateCapability: true,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			total := 0
			if env.State != nil {
				total = int(toFloat(env.State))
			}
			total += int(toFloat(env.Args[0]))
			return component.CallbackResult{State: float64(total)}, nil
		},
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func TestImmutableSpawnsOneWorkerAndRoutesToIt(t *testing.T) {
	strat := Immutable("local", sumReceive())
	require.True(t, strategy.Complete(strat))

	res, err := strategy.Dispatch(strat, strategy.HookDeploy, &strategy.Context{ComponentRef: "avg"}, nil, nil)
	require.NoError(t, err)
	dr := res.Value.(deploy.DeployResult)
	require.Len(t, dr.Workers, 1)
	assert.Equal(t, TagPrimary, dr.Workers[0].Tag)

	sendRes, err := strategy.Dispatch(strat, strategy.HookSend, &strategy.Context{ComponentRef: "avg"}, []any{"in", 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, worker.Ref{Node: "local", LocalID: "avg#primary"}, sendRes.Value)
}

func TestKeyedReplicatedRoutesSameKeyToSameReplica(t *testing.T) {
	strat := KeyedReplicated("local", 4, func(v any) string { return v.(string) }, sumReceive())

	res, err := strategy.Dispatch(strat, strategy.HookDeploy, &strategy.Context{ComponentRef: "agg"}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, res.Value.(deploy.DeployResult).Workers, 4)

	ctx := &strategy.Context{ComponentRef: "agg"}
	first, err := strategy.Dispatch(strat, strategy.HookSend, ctx, []any{"in", "tenant-a"}, nil)
	require.NoError(t, err)
	second, err := strategy.Dispatch(strat, strategy.HookSend, ctx, []any{"in", "tenant-a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
}

func TestCheckpointedPersistsAndRestoresState(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	child := Immutable("local", sumReceive())
	wrapped := Checkpointed(child, store)
	require.True(t, strategy.Complete(wrapped))

	ctx := &strategy.Context{ComponentRef: "avg", InvocationData: TagPrimary}
	_, err = strategy.Dispatch(wrapped, strategy.HookReceive, ctx, []any{5}, nil)
	require.NoError(t, err)

	data, err := store.GetCheckpoint("avg#primary")
	require.NoError(t, err)
	assert.NotNil(t, data)

	res, err := strategy.Dispatch(wrapped, strategy.HookReceive, ctx, []any{2}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(7), res.State)
}

func TestCheckpointedRestoresAfterFreshWorkerState(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	child := Immutable("local", sumReceive())
	wrapped := Checkpointed(child, store)
	ctx := &strategy.Context{ComponentRef: "avg", InvocationData: TagPrimary}

	_, err = strategy.Dispatch(wrapped, strategy.HookReceive, ctx, []any{10}, nil)
	require.NoError(t, err)

	// Simulate a fresh worker (state reset to nil, e.g. after a crash
	// restart) — the next invocation should pick the checkpoint back up
	// instead of starting from zero.
	res, err := strategy.Dispatch(wrapped, strategy.HookReceive, ctx, []any{5}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(15), res.State)
}
