package deploy

import (
	"errors"
	"testing"
	"time"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/worker"
	"github.com/skitter-project/skitter/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(env *component.Env) (component.CallbackResult, error) { return component.CallbackResult{}, nil }

func singleWorkerStrategy(t *testing.T, name string) *strategy.Strategy {
	t.Helper()
	deployHook := &component.Callback{
		Name: "deploy",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			return component.CallbackResult{Value: DeployResult{Workers: []WorkerSpec{{Tag: "primary"}}}}, nil
		},
	}
	sendHook := &component.Callback{
		Name: "send",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			ctx := env.Extra.(*strategy.Context)
			return component.CallbackResult{Value: worker.Ref{Node: "local", LocalID: ctx.ComponentRef + "#primary"}}, nil
		},
	}
	receiveHook := &component.Callback{
		Name:            "receive",
		StateCapability: true,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			return component.CallbackResult{State: env.Args[0]}, nil
		},
	}
	trivial := func(n string) *component.Callback { return &component.Callback{Name: n, Fn: noop} }
	return strategy.New(name, map[strategy.HookName]*component.Callback{
		strategy.HookDefine:         trivial("define"),
		strategy.HookDeploy:         deployHook,
		strategy.HookPrepare:        trivial("prepare"),
		strategy.HookSend:           sendHook,
		strategy.HookReceive:        receiveHook,
		strategy.HookDropDeployment: trivial("drop_deployment"),
		strategy.HookDropInvocation: trivial("drop_invocation"),
	})
}

func twoNodeWorkflow(t *testing.T) *workflow.Workflow {
	t.Helper()
	a, err := component.NewComponent("A", nil, nil, []component.Port{{Name: "out"}}, nil)
	require.NoError(t, err)
	b, err := component.NewComponent("B", nil, []component.Port{{Name: "in"}}, nil, nil)
	require.NoError(t, err)

	w, err := workflow.Build("pipeline",
		[]workflow.Node{
			&workflow.ComponentNode{NodeID: "a", Component: a},
			&workflow.ComponentNode{NodeID: "b", Component: b},
		},
		[]workflow.Link{{From: workflow.Internal("a", "out"), To: workflow.Internal("b", "in")}},
		nil, nil,
	)
	require.NoError(t, err)
	return w
}

func TestDeployThenDestroyLeavesNoResidualWorkers(t *testing.T) {
	w := twoNodeWorkflow(t)
	pool := worker.NewPool()
	stratA := singleWorkerStrategy(t, "stratA")
	stratB := singleWorkerStrategy(t, "stratB")

	dw, err := Deploy(w, []Binding{
		{NodeID: "a", DefaultStrategy: stratA},
		{NodeID: "b", DefaultStrategy: stratB},
	}, pool, "local", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Count())

	require.NoError(t, dw.Table.Dispatch(workflow.Internal("a", "out"), 7))
	require.Eventually(t, func() bool {
		w, ok := pool.Lookup(worker.Ref{Node: "local", LocalID: "b#primary"})
		return ok && w.State() == 7
	}, time.Second, time.Millisecond)

	require.NoError(t, Destroy(dw))
	assert.Equal(t, 0, pool.Count())
}

func failingDeployStrategy(t *testing.T, name string, reason error) *strategy.Strategy {
	t.Helper()
	deployHook := &component.Callback{
		Name: "deploy",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			return component.CallbackResult{}, reason
		},
	}
	trivial := func(n string) *component.Callback { return &component.Callback{Name: n, Fn: noop} }
	return strategy.New(name, map[strategy.HookName]*component.Callback{
		strategy.HookDefine:         trivial("define"),
		strategy.HookDeploy:         deployHook,
		strategy.HookPrepare:        trivial("prepare"),
		strategy.HookSend:           trivial("send"),
		strategy.HookReceive:        trivial("receive"),
		strategy.HookDropDeployment: trivial("drop_deployment"),
		strategy.HookDropInvocation: trivial("drop_invocation"),
	})
}

func TestDeployPartialFailureRollsBackAndReportsPartial(t *testing.T) {
	w := twoNodeWorkflow(t)
	pool := worker.NewPool()
	stratA := singleWorkerStrategy(t, "stratA")
	boom := errors.New("boom")
	stratB := failingDeployStrategy(t, "stratB", boom)

	_, err := Deploy(w, []Binding{
		{NodeID: "a", DefaultStrategy: stratA},
		{NodeID: "b", DefaultStrategy: stratB},
	}, pool, "local", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrDeploymentPartial)

	var pd *skerr.PartialDeployment
	require.True(t, errors.As(err, &pd))
	assert.ErrorIs(t, pd.Failures["b"], boom)
	assert.Equal(t, 0, pool.Count(), "successful node's worker must be torn down on partial failure")
}

func crossNodeWorkflow(t *testing.T, remoteNode string) *workflow.Workflow {
	t.Helper()
	a, err := component.NewComponent("A", nil, nil, []component.Port{{Name: "out"}}, nil)
	require.NoError(t, err)
	b, err := component.NewComponent("B", nil, []component.Port{{Name: "in"}}, nil, nil)
	require.NoError(t, err)

	w, err := workflow.Build("pipeline",
		[]workflow.Node{
			&workflow.ComponentNode{NodeID: "a", Component: a},
			&workflow.ComponentNode{NodeID: "b", Component: b, Node: remoteNode},
		},
		[]workflow.Link{{From: workflow.Internal("a", "out"), To: workflow.Internal("b", "in")}},
		nil, nil,
	)
	require.NoError(t, err)
	return w
}

// TestDeployRoutesToRemoteNodeViaForwarder covers spec.md §1's central
// cross-node distribution claim directly: a workflow that places one
// component on another physical node spawns no local worker for it and
// instead relays published values through the injected Forwarder, keyed by
// that component's physical node name rather than this node's own.
func TestDeployRoutesToRemoteNodeViaForwarder(t *testing.T) {
	w := crossNodeWorkflow(t, "worker-2")
	pool := worker.NewPool()
	stratA := singleWorkerStrategy(t, "stratA")

	var forwardedNode string
	var forwardedTo workflow.Endpoint
	var forwardedValue any
	forwarder := func(node string, to workflow.Endpoint, value any) error {
		forwardedNode, forwardedTo, forwardedValue = node, to, value
		return nil
	}

	dw, err := Deploy(w, []Binding{
		{NodeID: "a", DefaultStrategy: stratA},
	}, pool, "worker-1", forwarder)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Count(), "only the locally-placed node should spawn a worker")

	require.NoError(t, dw.Table.Dispatch(workflow.Internal("a", "out"), 42))
	assert.Equal(t, "worker-2", forwardedNode)
	assert.Equal(t, workflow.Internal("b", "in"), forwardedTo)
	assert.Equal(t, 42, forwardedValue)
}

// TestDeployWithoutForwarderRejectsRemoteNode confirms a workflow that
// names a remote placement can't silently route nowhere: without a
// Forwarder, Deploy itself fails rather than building a Destination with a
// nil Forward hook that would panic the first time something is routed to it.
func TestDeployWithoutForwarderRejectsRemoteNode(t *testing.T) {
	w := crossNodeWorkflow(t, "worker-2")
	pool := worker.NewPool()
	stratA := singleWorkerStrategy(t, "stratA")

	_, err := Deploy(w, []Binding{
		{NodeID: "a", DefaultStrategy: stratA},
	}, pool, "worker-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrNotDistributed)
}

func TestDeployRejectsIncompleteStrategy(t *testing.T) {
	w := twoNodeWorkflow(t)
	pool := worker.NewPool()
	incomplete := strategy.New("incomplete", map[strategy.HookName]*component.Callback{
		strategy.HookDeploy: &component.Callback{Name: "deploy", Fn: noop},
	})

	_, err := Deploy(w, []Binding{
		{NodeID: "a", DefaultStrategy: incomplete},
		{NodeID: "b", DefaultStrategy: incomplete},
	}, pool, "local", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrStrategyIncomplete)
	assert.Equal(t, 0, pool.Count(), "no worker should be spawned before completeness is confirmed")
}
