package strategies

import (
	"encoding/json"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/storage"
	"github.com/skitter-project/skitter/pkg/strategy"
)

// Checkpointed wraps child's receive hook with a bbolt-backed save after
// every successful invocation and a lazy restore before the first one:
// Worker only ever gets a new state from a receive invocation's result
// (pkg/worker has no pre-seed hook), so unlike the teacher's eager
// restore-on-deploy, this restores the first time a worker actually
// receives a message, which is observably identical for any component that
// doesn't inspect its own state before its first message arrives.
//
// child must already be Complete; Checkpointed only overrides HookReceive
// and HookDropInvocation (clean_checkpoint, SPEC_FULL.md §9) and leaves
// every other hook as child's.
func Checkpointed(child *strategy.Strategy, store storage.Store) *strategy.Strategy {
	receiveHook := &component.Callback{
		Name:            "receive",
		StateCapability: true,
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			ctx := env.Extra.(*strategy.Context)
			key := checkpointKey(ctx)

			state := env.State
			if state == nil {
				if restored, ok := loadCheckpoint(store, key); ok {
					state = restored
				}
			}

			inner := &component.Env{Args: env.Args, State: state, Extra: env.Extra}
			res, err := strategy.Dispatch(child, strategy.HookReceive, ctx, inner.Args, inner.State)
			if err != nil {
				return component.CallbackResult{}, err
			}

			if res.State != nil {
				if err := saveCheckpoint(store, key, res.State); err != nil {
					return component.CallbackResult{}, err
				}
			}
			return res, nil
		},
	}

	dropInvocationHook := &component.Callback{
		Name: "drop_invocation",
		Fn: func(env *component.Env) (component.CallbackResult, error) {
			ctx := env.Extra.(*strategy.Context)
			if err := store.DeleteCheckpoint(checkpointKey(ctx)); err != nil {
				return component.CallbackResult{}, err
			}
			return strategy.Dispatch(child, strategy.HookDropInvocation, ctx, env.Args, env.State)
		},
	}

	override := strategy.New("checkpointed", map[strategy.HookName]*component.Callback{
		strategy.HookReceive:        receiveHook,
		strategy.HookDropInvocation: dropInvocationHook,
	})
	return strategy.Merge(override, child)
}

// checkpointKey matches the worker.Ref.LocalID format ("<component>#<tag>")
// deploy.go assigns, so a checkpoint written under one strategy composition
// is found by the same key on every later deploy of the same node/tag.
func checkpointKey(ctx *strategy.Context) string {
	tag, _ := ctx.InvocationData.(string)
	return ctx.ComponentRef + "#" + tag
}

func loadCheckpoint(store storage.Store, key string) (any, bool) {
	data, err := store.GetCheckpoint(key)
	if err != nil || data == nil {
		return nil, false
	}
	var state any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false
	}
	return state, true
}

func saveCheckpoint(store storage.Store, key string, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := store.SaveCheckpoint(key, data); err != nil {
		return err
	}
	return nil
}
