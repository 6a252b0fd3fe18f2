package deploy

import "sync"

// Registry tracks the DeployedWorkflows currently running in this process,
// keyed by workflow name. A node's router.forward handler uses it to find
// the routing table that should receive a value forwarded from another
// cluster node, without pkg/deploy itself knowing anything about the wire
// protocol that carries that forward.
type Registry struct {
	mu         sync.RWMutex
	byWorkflow map[string]*DeployedWorkflow
}

// NewRegistry returns an empty deployment registry.
func NewRegistry() *Registry {
	return &Registry{byWorkflow: make(map[string]*DeployedWorkflow)}
}

// Store records dw as the running deployment of the named workflow,
// replacing whatever was previously deployed under that name.
func (r *Registry) Store(workflow string, dw *DeployedWorkflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byWorkflow[workflow] = dw
}

// Lookup returns the currently running deployment of the named workflow,
// if any.
func (r *Registry) Lookup(workflow string) (*DeployedWorkflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dw, ok := r.byWorkflow[workflow]
	return dw, ok
}

// Remove forgets the named workflow's deployment, called once Destroy has
// torn it down.
func (r *Registry) Remove(workflow string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byWorkflow, workflow)
}
