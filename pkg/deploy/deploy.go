package deploy

import (
	"fmt"
	"sync"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/router"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/worker"
	"github.com/skitter-project/skitter/pkg/workflow"
)

const defaultMailboxSize = 64

// Forwarder relays a published value to a component node placed on another
// physical cluster node. node is that node's name (workflow.ComponentNode's
// Node field); to is the destination's in-port endpoint within its own
// workflow graph. Deploy calls this instead of dispatching locally whenever
// a link's destination isn't owned by the node running this Deploy call.
type Forwarder func(node string, to workflow.Endpoint, value any) error

// WorkerSpec is one worker a component's deploy hook asks to be spawned,
// distinguished by tag (the strategy's own label, e.g. a replica index).
type WorkerSpec struct {
	Tag string
}

// DeployResult is the Value a deploy hook returns: the deployment data
// every later hook invocation for this node will see, and the workers to
// spawn for it.
type DeployResult struct {
	DeploymentData any
	Workers        []WorkerSpec
}

// Binding ties a node to the default strategy its component should run
// under and an optional per-node override.
type Binding struct {
	NodeID           string
	DefaultStrategy  *strategy.Strategy
	StrategyOverride *strategy.Strategy
}

// DeployedWorkflow is the handle Deploy returns: the flattened graph that
// was deployed, the routing table built for it, and everything Destroy
// needs to tear it back down.
type DeployedWorkflow struct {
	Flat  *workflow.Workflow
	Table *router.Table

	pool       *worker.Pool
	nodeID     string
	strategies map[string]*strategy.Strategy
	workerRefs map[string][]worker.Ref
	mu         sync.Mutex
}

// Deploy runs the flatten/resolve/deploy/route/prepare pipeline described
// in doc.go and returns a handle for Destroy, or a definition/strategy
// error if any step fails. nodeID identifies the local cluster node that
// will host the spawned workers; pool is where they are registered. Nodes
// in w whose ComponentNode.Node names a different physical node are not
// deployed or bound to a strategy here — they are assumed to be deployed by
// a separate Deploy call running on that node, and forward relays published
// values to them. forward may be nil if w places every node locally.
func Deploy(w *workflow.Workflow, bindings []Binding, pool *worker.Pool, nodeID string, forward Forwarder) (*DeployedWorkflow, error) {
	flat, err := workflow.Flatten(w)
	if err != nil {
		return nil, err
	}

	bound := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		bound[b.NodeID] = b
	}

	resolved := make(map[string]*strategy.Strategy, len(flat.Nodes))
	remote := make(map[string]string, len(flat.Nodes))
	for id, n := range flat.Nodes {
		cn, ok := n.(*workflow.ComponentNode)
		if !ok {
			continue
		}
		if cn.Node != "" && cn.Node != nodeID {
			remote[id] = cn.Node
			continue
		}
		b, ok := bound[id]
		if !ok {
			return nil, fmt.Errorf("deploy: no strategy binding for node %s: %w", id, skerr.ErrDefinition)
		}
		eff := b.DefaultStrategy
		if cn.StrategyOverride != nil {
			eff = strategy.Merge(cn.StrategyOverride, eff)
		}
		if b.StrategyOverride != nil {
			eff = strategy.Merge(b.StrategyOverride, eff)
		}
		if !strategy.Complete(eff) {
			return nil, fmt.Errorf("deploy: node %s: %w", id, skerr.ErrStrategyIncomplete)
		}
		resolved[id] = eff
	}

	dw := &DeployedWorkflow{
		Flat:       flat,
		Table:      router.NewTable(),
		pool:       pool,
		nodeID:     nodeID,
		strategies: resolved,
		workerRefs: make(map[string][]worker.Ref),
	}

	deploymentData := make(map[string]any, len(resolved))
	var deployed []string
	for id := range resolved {
		if err := dw.deployNode(id); err != nil {
			dw.rollback()
			return nil, fmt.Errorf("deploy %s: %w", w.Name, &skerr.PartialDeployment{
				Successes: deployed,
				Failures:  map[string]error{id: err},
			})
		}
		deployed = append(deployed, id)
		deploymentData[id] = dw.deploymentDataOf(id)
	}

	for _, l := range flat.Links {
		if l.To.IsBoundary() {
			continue
		}
		dest := l.To
		if strat, ok := resolved[dest.NodeID]; ok {
			dw.Table.AddRoute(l.From, router.Destination{
				ComponentRef:   dest.NodeID,
				InPort:         dest.Port,
				Strategy:       strat,
				Pool:           pool,
				DeploymentData: deploymentData[dest.NodeID],
			})
			continue
		}
		if physical, ok := remote[dest.NodeID]; ok {
			if forward == nil {
				return nil, fmt.Errorf("deploy %s: node %s is placed on remote node %s but no forwarder was given: %w", w.Name, dest.NodeID, physical, skerr.ErrNotDistributed)
			}
			target := dest
			dw.Table.AddRoute(l.From, router.Destination{
				ComponentRef: dest.NodeID,
				InPort:       dest.Port,
				Forward:      func(value any) error { return forward(physical, target, value) },
			})
		}
	}

	destinations := map[string][]workflow.Endpoint{}
	for _, l := range flat.Links {
		if l.To.IsBoundary() {
			continue
		}
		destinations[l.To.NodeID] = append(destinations[l.To.NodeID], l.From)
	}
	for nodeID, incoming := range destinations {
		strat, ok := resolved[nodeID]
		if !ok {
			// Placed on a remote node; its own Deploy call runs this hook.
			continue
		}
		ctx := &strategy.Context{ComponentRef: nodeID, StrategyRef: strat.Name, DeploymentData: deploymentData[nodeID]}
		if _, err := strategy.Dispatch(strat, strategy.HookPrepare, ctx, []any{incoming}, nil); err != nil {
			failed := nodeID
			succeeded := make([]string, 0, len(deployed)-1)
			for _, id := range deployed {
				if id != failed {
					succeeded = append(succeeded, id)
				}
			}
			dw.rollback()
			return nil, fmt.Errorf("deploy %s: %w", w.Name, &skerr.PartialDeployment{
				Successes: succeeded,
				Failures:  map[string]error{failed: err},
			})
		}
	}

	return dw, nil
}

func (dw *DeployedWorkflow) deployNode(id string) error {
	strat := dw.strategies[id]
	ctx := &strategy.Context{ComponentRef: id, StrategyRef: strat.Name}
	res, err := strategy.Dispatch(strat, strategy.HookDeploy, ctx, dw.argsOf(id), nil)
	if err != nil {
		return fmt.Errorf("deploy node %s: %w", id, err)
	}
	dr, ok := res.Value.(DeployResult)
	if !ok {
		return fmt.Errorf("deploy node %s: deploy hook returned %T, expected deploy.DeployResult: %w", id, res.Value, skerr.ErrDefinition)
	}

	comp := dw.componentOf(id)
	var refs []worker.Ref
	for _, spec := range dr.Workers {
		ref := worker.Ref{Node: dw.nodeID, LocalID: id + "#" + spec.Tag}
		nodeID := id
		dw.pool.Spawn(ref, comp, strat, dr.DeploymentData, spec.Tag, defaultMailboxSize, func(outPort string, value any) {
			if err := dw.Table.Dispatch(workflow.Internal(nodeID, outPort), value); err != nil {
				log.WithComponent("deploy").Error().Err(err).Str("node", nodeID).Str("port", outPort).Msg("routing failed")
			}
		})
		refs = append(refs, ref)
	}

	dw.mu.Lock()
	dw.workerRefs[id] = refs
	dw.mu.Unlock()
	return nil
}

func (dw *DeployedWorkflow) componentOf(id string) *component.Component {
	cn := dw.Flat.Nodes[id].(*workflow.ComponentNode)
	return cn.Component
}

// argsOf returns the deploy-time args a ComponentNode was built with,
// matching spec.md §4.8 step 3's "args = node.args" dispatch contract.
func (dw *DeployedWorkflow) argsOf(id string) []any {
	cn := dw.Flat.Nodes[id].(*workflow.ComponentNode)
	return cn.Args
}

func (dw *DeployedWorkflow) deploymentDataOf(id string) any {
	refs := dw.workerRefs[id]
	if len(refs) == 0 {
		return nil
	}
	w, ok := dw.pool.Lookup(refs[0])
	if !ok {
		return nil
	}
	return w.DeploymentData
}

func (dw *DeployedWorkflow) rollback() {
	for id := range dw.workerRefs {
		dw.destroyNode(id)
	}
}

func (dw *DeployedWorkflow) destroyNode(id string) {
	strat, ok := dw.strategies[id]
	if ok {
		ctx := &strategy.Context{ComponentRef: id, StrategyRef: strat.Name, DeploymentData: dw.deploymentDataOf(id)}
		if _, err := strategy.Dispatch(strat, strategy.HookDropDeployment, ctx, nil, nil); err != nil {
			log.WithComponent("deploy").Warn().Err(err).Str("node", id).Msg("drop_deployment hook failed")
		}
	}
	for _, ref := range dw.workerRefs[id] {
		dw.pool.Remove(ref)
	}
	delete(dw.workerRefs, id)
}

// WorkerCount returns how many workers this deployment currently has spawned
// across all of its nodes.
func (dw *DeployedWorkflow) WorkerCount() int {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	n := 0
	for _, refs := range dw.workerRefs {
		n += len(refs)
	}
	return n
}

// Destroy tears the deployment down: drop_deployment runs once per node,
// then every worker it spawned is stopped and unregistered, leaving no
// residual workers behind.
func Destroy(dw *DeployedWorkflow) error {
	dw.mu.Lock()
	ids := make([]string, 0, len(dw.workerRefs))
	for id := range dw.workerRefs {
		ids = append(ids, id)
	}
	dw.mu.Unlock()
	for _, id := range ids {
		dw.destroyNode(id)
	}
	return nil
}
