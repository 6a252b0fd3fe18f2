package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/strategy"
)

// Entity is anything the registry can store under a name: a component or a
// strategy, matching spec.md §4.1's "name -> entity (component or
// strategy)". *component.Component and *strategy.Strategy both implement it.
type Entity interface {
	EntityName() string
}

type snapshot map[string]Entity

// Registry is a process-wide, concurrency-safe map of name to entity.
type Registry struct {
	mu   sync.Mutex
	data atomic.Pointer[snapshot]
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	empty := snapshot{}
	r.data.Store(&empty)
	return r
}

// Register installs e under its own name, replacing any prior definition of
// the same name. A no-op if e's name is empty, matching spec.md §4.1's
// put_if_named ("no-op if entity has a null name"). Safe for concurrent use
// with Lookup and with other Register calls; writers serialize on an
// internal mutex, readers never do.
func (r *Registry) Register(e Entity) {
	name := e.EntityName()
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.data.Load()
	next := make(snapshot, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[name] = e
	r.data.Store(&next)
}

// Unregister removes an entity by name, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.data.Load()
	if _, ok := cur[name]; !ok {
		return
	}
	next := make(snapshot, len(cur)-1)
	for k, v := range cur {
		if k != name {
			next[k] = v
		}
	}
	r.data.Store(&next)
}

// Lookup resolves any registered entity by name without taking any lock.
func (r *Registry) Lookup(name string) (Entity, error) {
	cur := *r.data.Load()
	e, ok := cur[name]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", name, skerr.ErrUnknownName)
	}
	return e, nil
}

// LookupComponent resolves name to a component, or a definition_error if
// name is registered but names a strategy instead.
func (r *Registry) LookupComponent(name string) (*component.Component, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	c, ok := e.(*component.Component)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a component: %w", name, skerr.ErrDefinition)
	}
	return c, nil
}

// LookupStrategy resolves name to a strategy, or a definition_error if name
// is registered but names a component instead.
func (r *Registry) LookupStrategy(name string) (*strategy.Strategy, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	s, ok := e.(*strategy.Strategy)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a strategy: %w", name, skerr.ErrDefinition)
	}
	return s, nil
}

// Names returns a snapshot of every registered entity name.
func (r *Registry) Names() []string {
	cur := *r.data.Load()
	names := make([]string, 0, len(cur))
	for k := range cur {
		names = append(names, k)
	}
	return names
}
