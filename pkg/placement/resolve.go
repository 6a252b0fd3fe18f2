// Package placement resolves a declarative deploy request — component
// names plus links — against a process-wide registry.Registry into the
// workflow.Workflow and per-node strategy.Strategy bindings pkg/deploy
// needs, so a Dispatch client doesn't have to construct pkg/workflow
// values over the wire. It fills the role the teacher's pkg/scheduler
// played (placement decisions), trimmed from container/volume/network
// scheduling down to "which built-in strategy does this node use."
package placement

import (
	"fmt"

	"github.com/skitter-project/skitter/pkg/deploy"
	"github.com/skitter-project/skitter/pkg/registry"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/strategies"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/skitter-project/skitter/pkg/workflow"
)

// NodeSpec places one registered component in the workflow being deployed.
// Strategy selects which built-in strategies constructor binds it:
// "immutable" (the default) or "keyed_replicated", in which case Replicas
// and KeyField choose the fan-out and partition key. Node names the
// physical cluster node this component should run on; empty defaults to
// Request.DefaultNode, letting a single Request describe components spread
// across several workers at once (spec.md §1's cross-node distribution).
type NodeSpec struct {
	ID        string `json:"id"`
	Component string `json:"component"`
	Args      []any  `json:"args,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Replicas  int    `json:"replicas,omitempty"`
	KeyField  string `json:"key_field,omitempty"`
	Node      string `json:"node,omitempty"`
}

// LinkSpec wires one node's out-port to another's in-port, or to/from the
// workflow's own boundary ports when FromNode/ToNode is empty.
type LinkSpec struct {
	FromNode string `json:"from_node,omitempty"`
	FromPort string `json:"from_port"`
	ToNode   string `json:"to_node,omitempty"`
	ToPort   string `json:"to_port"`
}

// Request is the declarative shape of a workflow built from
// already-registered components, matching spec.md §4.8's "deploy(workflow)"
// entrypoint without requiring a client to build pkg/workflow.Workflow
// values itself. DefaultNode is the physical cluster node a NodeSpec is
// placed on when it doesn't name one itself — ordinarily the node the
// Request is being resolved against, but a multi-node Request resolved by
// the master names other nodes explicitly per NodeSpec.
type Request struct {
	Workflow    string     `json:"workflow"`
	Nodes       []NodeSpec `json:"nodes"`
	Links       []LinkSpec `json:"links"`
	InPorts     []string   `json:"in_ports,omitempty"`
	OutPorts    []string   `json:"out_ports,omitempty"`
	DefaultNode string     `json:"default_node,omitempty"`
}

// Resolve builds a workflow.Workflow and its deploy.Binding list from req,
// looking up every named component in reg and binding it to the built-in
// strategy req.Nodes[i] selects. Every component named in req must already
// be registered — every node running the same binary registers the same
// set at startup, per spec.md's component model. Each node is placed on
// spec.Node, falling back to req.DefaultNode; pkg/deploy uses that
// placement to tell which nodes it should actually spawn workers for and
// which it must route to over the wire.
func Resolve(reg *registry.Registry, req Request) (*workflow.Workflow, []deploy.Binding, error) {
	nodes := make([]workflow.Node, 0, len(req.Nodes))
	bindings := make([]deploy.Binding, 0, len(req.Nodes))

	for _, spec := range req.Nodes {
		comp, err := reg.LookupComponent(spec.Component)
		if err != nil {
			return nil, nil, fmt.Errorf("deploy %s: node %s: %w", req.Workflow, spec.ID, err)
		}
		receive, err := comp.Callback("receive")
		if err != nil {
			return nil, nil, fmt.Errorf("deploy %s: node %s: %w", req.Workflow, spec.ID, err)
		}

		placedOn := spec.Node
		if placedOn == "" {
			placedOn = req.DefaultNode
		}

		var strat *strategy.Strategy
		switch spec.Strategy {
		case "", "immutable":
			strat = strategies.Immutable(placedOn, receive)
		case "keyed_replicated":
			if spec.Replicas < 1 {
				return nil, nil, fmt.Errorf("deploy %s: node %s: keyed_replicated needs replicas >= 1: %w", req.Workflow, spec.ID, skerr.ErrDefinition)
			}
			strat = strategies.KeyedReplicated(placedOn, spec.Replicas, keyFieldFunc(spec.KeyField), receive)
		default:
			return nil, nil, fmt.Errorf("deploy %s: node %s: unknown strategy %q: %w", req.Workflow, spec.ID, spec.Strategy, skerr.ErrDefinition)
		}

		nodes = append(nodes, &workflow.ComponentNode{NodeID: spec.ID, Component: comp, Args: spec.Args, Node: placedOn})
		bindings = append(bindings, deploy.Binding{NodeID: spec.ID, DefaultStrategy: strat})
	}

	links := make([]workflow.Link, 0, len(req.Links))
	for _, l := range req.Links {
		links = append(links, workflow.Link{
			From: endpointOf(l.FromNode, l.FromPort),
			To:   endpointOf(l.ToNode, l.ToPort),
		})
	}

	wf, err := workflow.Build(req.Workflow, nodes, links, req.InPorts, req.OutPorts)
	if err != nil {
		return nil, nil, err
	}
	return wf, bindings, nil
}

func endpointOf(node, port string) workflow.Endpoint {
	if node == "" {
		return workflow.Boundary(port)
	}
	return workflow.Internal(node, port)
}

// keyFieldFunc builds a strategies.KeyFunc that reads a named field out of
// a published map[string]any value, the shape spec.md's own examples (the
// Average component's state) use for structured messages.
func keyFieldFunc(field string) strategies.KeyFunc {
	return func(value any) string {
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		return fmt.Sprintf("%v", m[field])
	}
}
