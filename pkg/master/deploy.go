package master

import (
	"encoding/json"
	"fmt"

	"github.com/skitter-project/skitter/pkg/deploy"
	"github.com/skitter-project/skitter/pkg/placement"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/worker"
	"github.com/skitter-project/skitter/pkg/workflow"
)

// DispatchFunc sends a single Dispatch-RPC envelope to a cluster peer and
// returns its response payload. pkg/master takes this as a dependency
// instead of importing pkg/transport directly, since pkg/transport already
// imports pkg/master for the join beacon handshake; cmd/skitter wires the
// real implementation in with transport.Dial.
type DispatchFunc func(addr, tag string, payload []byte) ([]byte, error)

// DeployRequest/NodeSpec/LinkSpec alias pkg/placement's types so callers
// that only import pkg/master (e.g. the Dispatch handler in cmd/skitter)
// don't also need to import pkg/placement directly.
type (
	DeployRequest = placement.Request
	NodeSpec      = placement.NodeSpec
	LinkSpec      = placement.LinkSpec
)

// DeployResponse reports the outcome of a successful deploy.
type DeployResponse struct {
	Workflow    string   `json:"workflow"`
	NodeID      string   `json:"node_id"`
	WorkerCount int      `json:"worker_count"`
	Nodes       []string `json:"nodes,omitempty"`
}

// ForwardRequest is the payload of a "router.forward" Envelope: relay a
// value published by a component on one physical node to the node that
// owns the destination component, letting pkg/router's Destination.Forward
// hook reach across the cluster instead of only ever dispatching locally.
type ForwardRequest struct {
	Workflow   string `json:"workflow"`
	TargetNode string `json:"target_node"`
	Node       string `json:"node"`
	Port       string `json:"port"`
	Value      any    `json:"value"`
}

// Deploy resolves req against the registry and built-in strategies, runs
// the deployment pipeline locally, replicates a placement record through
// Raft so the rest of the cluster knows this node is running req.Workflow,
// and — when req places components on other connected nodes — submits the
// same request to each of them over Dispatch RPC, rolling every node back
// if any of them rejects it. This is the cross-node counterpart of
// spec.md §1's "distribute components across cluster workers": a single
// deploy call here can end up spawning workers on several physical nodes.
// Only the leader may deploy.
func (m *Master) Deploy(req DeployRequest, pool *worker.Pool) (*deploy.DeployedWorkflow, *DeployResponse, error) {
	if req.DefaultNode == "" {
		req.DefaultNode = m.nodeID
	}

	wf, bindings, err := placement.Resolve(m.Registry, req)
	if err != nil {
		return nil, nil, err
	}

	dw, err := deploy.Deploy(wf, bindings, pool, m.nodeID, m.forwarder(req.Workflow))
	if err != nil {
		return nil, nil, err
	}
	m.Deployments.Store(req.Workflow, dw)

	if err := m.RecordDeployment(DeploymentRecord{Workflow: req.Workflow, NodeID: m.nodeID}); err != nil {
		_ = deploy.Destroy(dw)
		m.Deployments.Remove(req.Workflow)
		return nil, nil, err
	}

	remotes := remoteNodesOf(req, m.nodeID)
	deployedRemotes, err := m.deployToRemotes(req, remotes)
	if err != nil {
		_ = deploy.Destroy(dw)
		m.Deployments.Remove(req.Workflow)
		return nil, nil, fmt.Errorf("deploy %s: %w", req.Workflow, err)
	}

	return dw, &DeployResponse{
		Workflow:    req.Workflow,
		NodeID:      m.nodeID,
		WorkerCount: dw.WorkerCount(),
		Nodes:       deployedRemotes,
	}, nil
}

// remoteNodesOf returns the distinct physical nodes req places components
// on other than self, in the order they're first referenced.
func remoteNodesOf(req DeployRequest, self string) []string {
	seen := map[string]bool{}
	var remotes []string
	for _, n := range req.Nodes {
		node := n.Node
		if node == "" {
			node = req.DefaultNode
		}
		if node == self || node == "" || seen[node] {
			continue
		}
		seen[node] = true
		remotes = append(remotes, node)
	}
	return remotes
}

// deployToRemotes submits req as a deploy.request to every node in remotes,
// resolving each one's Dispatch address from Table. If any submission
// fails, the nodes that had already accepted it are rolled back (see
// cmd/skitter's own CLI-side rollbackDeploy, which does the same
// best-effort redeploy since there is no separate undeploy RPC tag) and a
// skerr.PartialDeployment describing every failure is returned.
func (m *Master) deployToRemotes(req DeployRequest, remotes []string) ([]string, error) {
	if len(remotes) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	deployed := make([]string, 0, len(remotes))
	failures := make(map[string]error)
	for _, node := range remotes {
		host, ok := m.Table.HostOf(node)
		if !ok {
			failures[node] = fmt.Errorf("%s: %w", node, skerr.ErrNotConnected)
			continue
		}
		if _, err := m.dispatch(host, "deploy.request", payload); err != nil {
			failures[node] = err
			continue
		}
		deployed = append(deployed, node)
	}
	if len(failures) > 0 {
		m.rollbackRemotes(req.Workflow, deployed)
		return nil, &skerr.PartialDeployment{Successes: deployed, Failures: failures}
	}
	return deployed, nil
}

func (m *Master) rollbackRemotes(workflowName string, nodes []string) {
	empty, err := json.Marshal(DeployRequest{Workflow: workflowName})
	if err != nil {
		return
	}
	for _, node := range nodes {
		host, ok := m.Table.HostOf(node)
		if !ok {
			continue
		}
		_, _ = m.dispatch(host, "deploy.request", empty)
	}
}

// forwarder builds the deploy.Forwarder passed to deploy.Deploy: a value
// bound for a node other than this one is relayed to whichever node owns
// it, by physical node name, over Dispatch RPC.
func (m *Master) forwarder(workflowName string) deploy.Forwarder {
	return func(node string, to workflow.Endpoint, value any) error {
		return m.Forward(ForwardRequest{Workflow: workflowName, TargetNode: node, Node: to.NodeID, Port: to.Port, Value: value})
	}
}

// Forward delivers a value to the node that owns its destination: locally,
// if that is this node, or by relaying the request over Dispatch RPC to
// whichever node Table says owns it. It is both what Deploy's own
// forwarder calls and what the "router.forward" handler registered in
// cmd/skitter calls when another node relays a value through this one.
func (m *Master) Forward(req ForwardRequest) error {
	if req.TargetNode == m.nodeID {
		dw, ok := m.Deployments.Lookup(req.Workflow)
		if !ok {
			return fmt.Errorf("forward %s.%s: workflow %s not deployed on %s: %w", req.Node, req.Port, req.Workflow, m.nodeID, skerr.ErrNotDistributed)
		}
		return dw.Table.Dispatch(workflow.Internal(req.Node, req.Port), req.Value)
	}

	host, ok := m.Table.HostOf(req.TargetNode)
	if !ok {
		return fmt.Errorf("forward to %s: %w", req.TargetNode, skerr.ErrNotConnected)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = m.dispatch(host, "router.forward", payload)
	return err
}

// dispatch calls the DispatchFunc SetDispatcher installed, or fails with
// ErrNotDistributed if none was (e.g. in tests that never wire a
// transport): no cluster node can be reached without it.
func (m *Master) dispatch(addr, tag string, payload []byte) ([]byte, error) {
	if m.dispatchFunc == nil {
		return nil, fmt.Errorf("dispatch to %s: no transport configured: %w", addr, skerr.ErrNotDistributed)
	}
	return m.dispatchFunc(addr, tag, payload)
}
