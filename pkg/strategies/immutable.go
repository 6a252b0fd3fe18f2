package strategies

import (
	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/deploy"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/worker"
)

// TagPrimary is the single worker tag Immutable spawns under.
const TagPrimary = "primary"

// Immutable builds a strategy that spawns one worker per component at
// deploy time and routes every message to it, matching spec.md's
// `Average`-style read-only-state components. receive is the component's
// own message-processing callback; everything else (deploy/send/the
// no-op hooks) is supplied here.
func Immutable(node string, receive *component.Callback) *strategy.Strategy {
	deployHook := &component.Callback{
		Name: "deploy",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			return component.CallbackResult{
				Value: deploy.DeployResult{Workers: []deploy.WorkerSpec{{Tag: TagPrimary}}},
			}, nil
		},
	}
	sendHook := &component.Callback{
		Name: "send",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			ctx := env.Extra.(*strategy.Context)
			return component.CallbackResult{
				Value: worker.Ref{Node: node, LocalID: ctx.ComponentRef + "#" + TagPrimary},
			}, nil
		},
	}
	return strategy.New("immutable", map[strategy.HookName]*component.Callback{
		strategy.HookDefine:         noopCallback("define"),
		strategy.HookDeploy:         deployHook,
		strategy.HookPrepare:        noopCallback("prepare"),
		strategy.HookSend:           sendHook,
		strategy.HookReceive:        receive,
		strategy.HookDropDeployment: noopCallback("drop_deployment"),
		strategy.HookDropInvocation: noopCallback("drop_invocation"),
	})
}

func noopCallback(name string) *component.Callback {
	return &component.Callback{
		Name: name,
		Fn:   func(env *component.Env) (component.CallbackResult, error) { return component.CallbackResult{}, nil },
	}
}
