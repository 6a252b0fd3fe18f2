package strategy

import (
	"fmt"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/skerr"
)

// HookName enumerates the seven slots a strategy can fill. A strategy is
// complete when every one of these is non-nil.
type HookName string

const (
	HookDefine         HookName = "define"
	HookDeploy         HookName = "deploy"
	HookPrepare        HookName = "prepare"
	HookSend           HookName = "send"
	HookReceive        HookName = "receive"
	HookDropDeployment HookName = "drop_deployment"
	HookDropInvocation HookName = "drop_invocation"
)

// AllHooks lists every slot, in the order Complete checks them.
var AllHooks = []HookName{
	HookDefine, HookDeploy, HookPrepare, HookSend, HookReceive,
	HookDropDeployment, HookDropInvocation,
}

// Strategy is a tagged record of optional hooks. Hooks are component
// callbacks, carrying the same capability flags; a nil entry means the
// slot is unfilled.
type Strategy struct {
	Name  string
	Hooks map[HookName]*component.Callback
}

// EntityName satisfies pkg/registry.Entity, letting a Strategy be stored in
// the process-wide registry alongside components, per spec.md §3's
// "Strategies ... may be stored in the registry."
func (s *Strategy) EntityName() string { return s.Name }

// New builds a Strategy from a name and a hook map, copying the map so later
// mutation of the caller's map cannot change the strategy after the fact.
func New(name string, hooks map[HookName]*component.Callback) *Strategy {
	cp := make(map[HookName]*component.Callback, len(hooks))
	for k, v := range hooks {
		if v != nil {
			cp[k] = v
		}
	}
	return &Strategy{Name: name, Hooks: cp}
}

// Merge combines a child strategy over a parent: every hook the child fills
// wins, every hook the child leaves empty falls back to the parent's. Merge
// is associative and has New("", nil) as its identity, so repeated merging
// (Merge(c, Merge(b, a)) == Merge(Merge(c, b), a)) composes predictably
// regardless of how a caller groups a strategy chain.
func Merge(child, parent *Strategy) *Strategy {
	name := child.Name
	if name == "" {
		name = parent.Name
	}
	out := &Strategy{Name: name, Hooks: make(map[HookName]*component.Callback, len(AllHooks))}
	for k, v := range parent.Hooks {
		out.Hooks[k] = v
	}
	for k, v := range child.Hooks {
		out.Hooks[k] = v
	}
	return out
}

// MergeAll left-folds Merge over parents, in order, with child taking
// precedence over every parent regardless of position.
func MergeAll(child *Strategy, parents ...*Strategy) *Strategy {
	out := child
	for _, p := range parents {
		out = Merge(out, p)
	}
	return out
}

// Complete reports whether every hook slot is filled.
func Complete(s *Strategy) bool {
	for _, h := range AllHooks {
		if s.Hooks[h] == nil {
			return false
		}
	}
	return true
}

// Context is the dispatch context passed through component.Env.Extra when a
// hook runs: which component and strategy are involved, and the deployment-
// or invocation-scoped data relevant to this call (nil when not applicable
// to the hook being dispatched).
type Context struct {
	ComponentRef   string
	StrategyRef    string
	DeploymentData any
	InvocationData any
}

// Dispatch invokes the named hook, failing with skerr.ErrStrategyIncomplete
// if the slot is unfilled. args/state are passed straight through to the
// hook's Fn, ctx rides along in Env.Extra, and the result's State and
// Published are dropped when the hook lacks the matching capability.
func Dispatch(s *Strategy, hook HookName, ctx *Context, args []any, state any) (component.CallbackResult, error) {
	cb, ok := s.Hooks[hook]
	if !ok || cb == nil {
		return component.CallbackResult{}, fmt.Errorf("%s: hook %s: %w", s.Name, hook, skerr.ErrStrategyIncomplete)
	}
	env := &component.Env{Args: args, State: state, Extra: ctx}
	res, err := cb.Fn(env)
	if err != nil {
		return component.CallbackResult{}, err
	}
	if !cb.StateCapability {
		res.State = nil
	}
	if !cb.PublishCapability {
		res.Published = nil
	}
	return res, nil
}
