package strategy

import (
	"testing"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hook(tag string) *component.Callback {
	return &component.Callback{
		Name: tag,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			return component.CallbackResult{Value: tag}, nil
		},
	}
}

func TestMergePrecedenceChildWins(t *testing.T) {
	parent := New("parent", map[HookName]*component.Callback{
		HookDeploy: hook("parent-deploy"),
		HookSend:   hook("parent-send"),
	})
	child := New("child", map[HookName]*component.Callback{
		HookSend: hook("child-send"),
	})

	merged := Merge(child, parent)
	assert.Equal(t, "parent-deploy", mustDispatch(t, merged, HookDeploy))
	assert.Equal(t, "child-send", mustDispatch(t, merged, HookSend))
}

func TestMergeAllChildAlwaysWinsRegardlessOfParentOrder(t *testing.T) {
	child := New("child", map[HookName]*component.Callback{HookReceive: hook("child-receive")})
	p1 := New("p1", map[HookName]*component.Callback{HookReceive: hook("p1-receive")})
	p2 := New("p2", map[HookName]*component.Callback{HookReceive: hook("p2-receive")})

	merged := MergeAll(child, p1, p2)
	assert.Equal(t, "child-receive", mustDispatch(t, merged, HookReceive))
}

func TestCompleteRequiresAllSevenHooks(t *testing.T) {
	s := New("partial", map[HookName]*component.Callback{
		HookDefine: hook("d"), HookDeploy: hook("d"), HookPrepare: hook("d"),
		HookSend: hook("d"), HookReceive: hook("d"), HookDropDeployment: hook("d"),
	})
	assert.False(t, Complete(s))

	s.Hooks[HookDropInvocation] = hook("d")
	assert.True(t, Complete(s))
}

func TestDispatchMissingHookIsStrategyIncomplete(t *testing.T) {
	s := New("empty", nil)
	_, err := Dispatch(s, HookSend, &Context{}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrStrategyIncomplete)
}

func mustDispatch(t *testing.T, s *Strategy, h HookName) string {
	t.Helper()
	res, err := Dispatch(s, h, &Context{}, nil, nil)
	require.NoError(t, err)
	return res.Value.(string)
}
