package workflow

import (
	"fmt"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/strategy"
)

// Endpoint names one side of a Link: either an internal node's port
// (NodeID set) or one of this workflow's own boundary ports (NodeID empty).
type Endpoint struct {
	NodeID string
	Port   string
}

// Internal builds an endpoint referring to a named port on a node inside
// the workflow.
func Internal(nodeID, port string) Endpoint { return Endpoint{NodeID: nodeID, Port: port} }

// Boundary builds an endpoint referring to one of the workflow's own
// exposed in/out ports.
func Boundary(port string) Endpoint { return Endpoint{Port: port} }

// IsBoundary reports whether e names a boundary port rather than a node.
func (e Endpoint) IsBoundary() bool { return e.NodeID == "" }

func (e Endpoint) String() string {
	if e.IsBoundary() {
		return "boundary:" + e.Port
	}
	return e.NodeID + "." + e.Port
}

// Node is either a ComponentNode (a leaf) or a WorkflowNode (a nested
// sub-workflow).
type Node interface {
	ID() string
	inPorts() []string
	outPorts() []string
}

// ComponentNode places a component in a workflow, optionally overriding its
// strategy for this node only. A nil StrategyOverride means the node uses
// whatever strategy the deployment engine resolves from workflow-level
// defaults (see pkg/deploy). Args is passed verbatim to the component's
// deploy hook, letting two nodes sharing the same Component be
// deploy-time-parameterized differently (e.g. distinct replica counts).
// Node names the physical cluster node this component is placed on; empty
// means "whichever node runs the Deploy call this node's workflow belongs
// to." A flat graph may mix nodes placed on different physical nodes,
// which is what lets pkg/deploy wire cross-node routes instead of treating
// every node as local.
type ComponentNode struct {
	NodeID           string
	Component        *component.Component
	Args             []any
	Node             string
	StrategyOverride *strategy.Strategy
}

func (n *ComponentNode) ID() string { return n.NodeID }
func (n *ComponentNode) inPorts() []string {
	names := make([]string, len(n.Component.InPorts))
	for i, p := range n.Component.InPorts {
		names[i] = p.Name
	}
	return names
}
func (n *ComponentNode) outPorts() []string {
	names := make([]string, len(n.Component.OutPorts))
	for i, p := range n.Component.OutPorts {
		names[i] = p.Name
	}
	return names
}

// WorkflowNode embeds a nested workflow as a single node; its in/out ports
// are the nested workflow's declared boundary ports.
type WorkflowNode struct {
	NodeID   string
	Workflow *Workflow
}

func (n *WorkflowNode) ID() string         { return n.NodeID }
func (n *WorkflowNode) inPorts() []string  { return n.Workflow.InPorts }
func (n *WorkflowNode) outPorts() []string { return n.Workflow.OutPorts }

// Link connects one endpoint's output to another's input.
type Link struct {
	From Endpoint
	To   Endpoint
}

// Workflow is a named graph of nodes and links, with its own boundary ports
// exposed to whatever embeds it (a parent workflow, or the deployment
// engine at the root).
type Workflow struct {
	Name     string
	Nodes    map[string]Node
	Links    []Link
	InPorts  []string
	OutPorts []string
}

// Build assembles and validates a Workflow from its parts, returning a
// definition_error if node ids collide or a node list is malformed.
func Build(name string, nodes []Node, links []Link, inPorts, outPorts []string) (*Workflow, error) {
	nodeMap := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if _, dup := nodeMap[n.ID()]; dup {
			return nil, fmt.Errorf("workflow %s: duplicate node id %s: %w", name, n.ID(), skerr.ErrDefinition)
		}
		nodeMap[n.ID()] = n
	}
	w := &Workflow{Name: name, Nodes: nodeMap, Links: links, InPorts: inPorts, OutPorts: outPorts}
	if err := Validate(w); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate checks that every link endpoint resolves to a real port and that
// no in-port (node in-port or this workflow's own boundary out-port) has
// more than one writer. Fan-out — a single source feeding many
// destinations — is always allowed.
func Validate(w *Workflow) error {
	boundaryIn := set(w.InPorts)
	boundaryOut := set(w.OutPorts)

	writers := map[Endpoint]int{}

	for _, l := range w.Links {
		if err := resolveOut(w, l.From, boundaryIn); err != nil {
			return err
		}
		if err := resolveIn(w, l.To, boundaryOut); err != nil {
			return err
		}
		sink := l.To
		writers[sink]++
		if writers[sink] > 1 {
			return fmt.Errorf("workflow %s: %s has more than one writer: %w", w.Name, sink, skerr.ErrDefinition)
		}
	}
	return nil
}

func resolveOut(w *Workflow, e Endpoint, boundaryIn map[string]bool) error {
	if e.IsBoundary() {
		if !boundaryIn[e.Port] {
			return fmt.Errorf("workflow %s: unknown boundary in-port %s: %w", w.Name, e.Port, skerr.ErrUnknownName)
		}
		return nil
	}
	n, ok := w.Nodes[e.NodeID]
	if !ok {
		return fmt.Errorf("workflow %s: unknown node %s: %w", w.Name, e.NodeID, skerr.ErrUnknownName)
	}
	if !contains(n.outPorts(), e.Port) {
		return fmt.Errorf("workflow %s: node %s has no out-port %s: %w", w.Name, e.NodeID, e.Port, skerr.ErrUnknownName)
	}
	return nil
}

func resolveIn(w *Workflow, e Endpoint, boundaryOut map[string]bool) error {
	if e.IsBoundary() {
		if !boundaryOut[e.Port] {
			return fmt.Errorf("workflow %s: unknown boundary out-port %s: %w", w.Name, e.Port, skerr.ErrUnknownName)
		}
		return nil
	}
	n, ok := w.Nodes[e.NodeID]
	if !ok {
		return fmt.Errorf("workflow %s: unknown node %s: %w", w.Name, e.NodeID, skerr.ErrUnknownName)
	}
	if !contains(n.inPorts(), e.Port) {
		return fmt.Errorf("workflow %s: node %s has no in-port %s: %w", w.Name, e.NodeID, e.Port, skerr.ErrUnknownName)
	}
	return nil
}

func set(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Flatten expands every nested WorkflowNode into the flat set of
// ComponentNodes it contains, scoping their ids by the dotted path of
// enclosing node ids ("outer.inner.leaf"), and rewires links that crossed a
// nested workflow's boundary so they point directly at the resolved
// internal endpoint. The result carries only ComponentNodes and this
// workflow's own (unprefixed) boundary ports, which is what the deployment
// engine consumes.
func Flatten(w *Workflow) (*Workflow, error) {
	if err := Validate(w); err != nil {
		return nil, err
	}
	return flattenWithPrefix(w, "")
}

func flattenWithPrefix(w *Workflow, prefix string) (*Workflow, error) {
	flatNodes := map[string]Node{}
	childFlat := map[string]*Workflow{}

	for id, n := range w.Nodes {
		switch t := n.(type) {
		case *ComponentNode:
			pid := prefix + id
			flatNodes[pid] = &ComponentNode{NodeID: pid, Component: t.Component, Args: t.Args, Node: t.Node, StrategyOverride: t.StrategyOverride}
		case *WorkflowNode:
			sub, err := flattenWithPrefix(t.Workflow, prefix+id+".")
			if err != nil {
				return nil, err
			}
			childFlat[id] = sub
			for sid, sn := range sub.Nodes {
				flatNodes[sid] = sn
			}
		}
	}

	resolveSide := func(e Endpoint, isFrom bool) []Endpoint {
		if e.IsBoundary() {
			return []Endpoint{Boundary(e.Port)}
		}
		if sub, ok := childFlat[e.NodeID]; ok {
			var eps []Endpoint
			for _, sl := range sub.Links {
				if isFrom && sl.To.IsBoundary() && sl.To.Port == e.Port {
					eps = append(eps, sl.From)
				}
				if !isFrom && sl.From.IsBoundary() && sl.From.Port == e.Port {
					eps = append(eps, sl.To)
				}
			}
			return eps
		}
		return []Endpoint{Internal(prefix+e.NodeID, e.Port)}
	}

	var flatLinks []Link
	for _, l := range w.Links {
		for _, f := range resolveSide(l.From, true) {
			for _, t := range resolveSide(l.To, false) {
				flatLinks = append(flatLinks, Link{From: f, To: t})
			}
		}
	}
	for _, sub := range childFlat {
		for _, sl := range sub.Links {
			if !sl.From.IsBoundary() && !sl.To.IsBoundary() {
				flatLinks = append(flatLinks, sl)
			}
		}
	}

	return &Workflow{Name: w.Name, Nodes: flatNodes, Links: flatLinks, InPorts: w.InPorts, OutPorts: w.OutPorts}, nil
}
