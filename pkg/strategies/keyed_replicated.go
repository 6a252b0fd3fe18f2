package strategies

import (
	"hash/fnv"
	"strconv"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/deploy"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/worker"
)

// KeyFunc extracts the partition key a published value should hash on.
type KeyFunc func(value any) string

// KeyedReplicated builds a strategy that spawns `replicas` workers for a
// component and deterministically routes each published value to one of
// them by hashing keyFn(value), the same hash/fnv idiom pkg/transport's
// Balancer.SelectPermanent uses for node selection — here applied to
// worker replicas within one node instead of nodes within a cluster.
func KeyedReplicated(node string, replicas int, keyFn KeyFunc, receive *component.Callback) *strategy.Strategy {
	deployHook := &component.Callback{
		Name: "deploy",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			workers := make([]deploy.WorkerSpec, replicas)
			for i := range workers {
				workers[i] = deploy.WorkerSpec{Tag: strconv.Itoa(i)}
			}
			return component.CallbackResult{Value: deploy.DeployResult{Workers: workers}}, nil
		},
	}
	sendHook := &component.Callback{
		Name: "send",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			ctx := env.Extra.(*strategy.Context)
			value := env.Args[1]
			idx := partitionOf(keyFn(value), replicas)
			tag := strconv.Itoa(idx)
			return component.CallbackResult{
				Value: worker.Ref{Node: node, LocalID: ctx.ComponentRef + "#" + tag},
			}, nil
		},
	}
	return strategy.New("keyed_replicated", map[strategy.HookName]*component.Callback{
		strategy.HookDefine:         noopCallback("define"),
		strategy.HookDeploy:         deployHook,
		strategy.HookPrepare:        noopCallback("prepare"),
		strategy.HookSend:           sendHook,
		strategy.HookReceive:        receive,
		strategy.HookDropDeployment: noopCallback("drop_deployment"),
		strategy.HookDropInvocation: noopCallback("drop_invocation"),
	})
}

func partitionOf(key string, replicas int) int {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int(h.Sum64() % uint64(replicas))
}
