package component

import (
	"fmt"

	"github.com/skitter-project/skitter/pkg/skerr"
)

// Port is a named connection point on a component. Direction (in/out) is
// implied by which list it appears in on Component.
type Port struct {
	Name string
}

// CallbackResult is what a callback invocation produces. State is the new
// worker state, meaningful only when the callback declared StateCapability;
// Published holds, per out-port, the values emitted in the order they were
// produced, meaningful only when the callback declared PublishCapability;
// Value is a free-form return used by non-message callbacks (a strategy's
// deploy/prepare/define hooks, for instance).
type CallbackResult struct {
	State     any
	Published map[string][]any
	Value     any
}

// Env is the environment a callback runs in: the arguments it was invoked
// with, the state it is allowed to read, and an opaque Extra slot the
// strategy engine uses to pass a dispatch Context through without this
// package needing to import pkg/strategy.
type Env struct {
	Args  []any
	State any
	Extra any
}

// Callback is one named operation a component (or a strategy hook slot)
// exposes. The three capability sets (ReadFields, WriteFields, PublishPorts)
// are checked against the component's field/port declarations and the two
// bool flags below at NewComponent time; Invoke only applies the bool flags,
// dropping the returned state or published values a callback was not
// granted.
type Callback struct {
	Name              string
	ReadFields        map[string]bool
	WriteFields       map[string]bool
	PublishPorts      map[string]bool
	StateCapability   bool
	PublishCapability bool
	Fn                func(env *Env) (CallbackResult, error)
}

// Component is the immutable definition of a dataflow unit: its declared
// state fields, its in/out ports, and its named callbacks. Strategy
// assignment is not part of Component — it is attached per workflow node,
// since the same component definition can run under different strategies in
// different deployments.
type Component struct {
	Name     string
	Fields   []string
	InPorts  []Port
	OutPorts []Port
	Callbacks map[string]*Callback
}

// EntityName satisfies pkg/registry.Entity, letting a Component be stored
// in the process-wide registry alongside strategies.
func (c *Component) EntityName() string { return c.Name }

// NewComponent validates callback capability declarations against the
// component's own fields and out-ports and returns a definition_error
// (skerr.ErrDefinition) on the first mismatch found. This is the static
// check spec.md calls out as happening once, at definition time, not on
// every invocation.
func NewComponent(name string, fields []string, inPorts, outPorts []Port, callbacks []*Callback) (*Component, error) {
	fieldSet := make(map[string]bool, len(fields))
	for _, f := range fields {
		fieldSet[f] = true
	}
	portSet := make(map[string]bool, len(outPorts))
	for _, p := range outPorts {
		portSet[p.Name] = true
	}

	cbs := make(map[string]*Callback, len(callbacks))
	for _, cb := range callbacks {
		if _, dup := cbs[cb.Name]; dup {
			return nil, fmt.Errorf("component %s: callback %s redeclared: %w", name, cb.Name, skerr.ErrDefinition)
		}
		for f := range cb.ReadFields {
			if !fieldSet[f] {
				return nil, fmt.Errorf("component %s: callback %s reads undeclared field %s: %w", name, cb.Name, f, skerr.ErrDefinition)
			}
		}
		for f := range cb.WriteFields {
			if !fieldSet[f] {
				return nil, fmt.Errorf("component %s: callback %s writes undeclared field %s: %w", name, cb.Name, f, skerr.ErrDefinition)
			}
			if !cb.StateCapability {
				return nil, fmt.Errorf("component %s: callback %s writes field %s without state capability: %w", name, cb.Name, f, skerr.ErrDefinition)
			}
		}
		for p := range cb.PublishPorts {
			if !portSet[p] {
				return nil, fmt.Errorf("component %s: callback %s publishes on undeclared port %s: %w", name, cb.Name, p, skerr.ErrDefinition)
			}
			if !cb.PublishCapability {
				return nil, fmt.Errorf("component %s: callback %s publishes on %s without publish capability: %w", name, cb.Name, p, skerr.ErrDefinition)
			}
		}
		cbs[cb.Name] = cb
	}

	return &Component{
		Name:      name,
		Fields:    fields,
		InPorts:   inPorts,
		OutPorts:  outPorts,
		Callbacks: cbs,
	}, nil
}

// Callback looks up a named callback, returning skerr.ErrNoSuchCallback if
// absent.
func (c *Component) Callback(name string) (*Callback, error) {
	cb, ok := c.Callbacks[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, name, skerr.ErrNoSuchCallback)
	}
	return cb, nil
}

// Invoke runs a named callback against the given environment, enforcing that
// the result only carries a new state or published values when the callback
// declared the matching capability — a callback without PublishCapability
// that still sets Published is a programming error in the callback itself,
// so Invoke strips it rather than propagating inconsistent results silently.
func Invoke(c *Component, name string, env *Env) (CallbackResult, error) {
	cb, err := c.Callback(name)
	if err != nil {
		return CallbackResult{}, err
	}
	res, err := cb.Fn(env)
	if err != nil {
		return CallbackResult{}, err
	}
	if !cb.StateCapability {
		res.State = nil
	}
	if !cb.PublishCapability {
		res.Published = nil
	}
	return res, nil
}
