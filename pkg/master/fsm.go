package master

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/skitter-project/skitter/pkg/membership"
	"github.com/skitter-project/skitter/pkg/storage"
)

// FSM is the Raft finite state machine replicating cluster-wide membership
// and deployment-placement metadata across every master. It does not
// replicate component definitions themselves (those are compiled Go code,
// identical on every node by construction, per spec.md's component model)
// or live *worker.Pool state (unserializable closures) — only the facts a
// newly elected leader needs to rebuild its view of the cluster: who is
// connected and which node is running which named workflow.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
	table *membership.Table
}

// NewFSM builds an FSM writing through to store and mirroring node
// connect/disconnect commands into table.
func NewFSM(store storage.Store, table *membership.Table) *FSM {
	return &FSM{store: store, table: table}
}

// Command is one replicated state change.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opConnectNode      = "connect_node"
	opDisconnectNode   = "disconnect_node"
	opRecordDeployment = "record_deployment"
	opRemoveDeployment = "remove_deployment"
)

// nodeRecord is the wire shape of a membership.NodeEntry minus its live
// LivenessMonitor, which each master reconstructs locally on Apply.
type nodeRecord struct {
	Name string            `json:"name"`
	Host string            `json:"host"`
	Tags map[string]string `json:"tags"`
}

// DeploymentRecord tracks which cluster node is running a named workflow,
// so a newly elected leader can tell which masters to ask for routing
// details without re-running the deployment pipeline.
type DeploymentRecord struct {
	Workflow string `json:"workflow"`
	NodeID   string `json:"node_id"`
}

// Apply applies one committed log entry.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opConnectNode:
		var rec nodeRecord
		if err := json.Unmarshal(cmd.Data, &rec); err != nil {
			return err
		}
		id := membership.NodeID{Name: rec.Name, Host: rec.Host}
		if _, ok := f.table.Lookup(id); !ok {
			if err := f.table.Connect(id, rec.Tags, func(membership.NodeID) error { return nil }); err != nil {
				return err
			}
		}
		return f.store.SaveNode(id.String(), cmd.Data)

	case opDisconnectNode:
		var rec nodeRecord
		if err := json.Unmarshal(cmd.Data, &rec); err != nil {
			return err
		}
		id := membership.NodeID{Name: rec.Name, Host: rec.Host}
		if _, ok := f.table.Lookup(id); ok {
			if err := f.table.Disconnect(id); err != nil {
				return err
			}
		}
		return f.store.DeleteNode(id.String())

	case opRecordDeployment:
		var rec DeploymentRecord
		if err := json.Unmarshal(cmd.Data, &rec); err != nil {
			return err
		}
		return f.store.SaveComponent(deploymentKey(rec.Workflow), cmd.Data)

	case opRemoveDeployment:
		var rec DeploymentRecord
		if err := json.Unmarshal(cmd.Data, &rec); err != nil {
			return err
		}
		return f.store.DeleteComponent(deploymentKey(rec.Workflow))

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

func deploymentKey(workflow string) string { return "deployment:" + workflow }

// Snapshot captures every node and deployment record currently known.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	nodes, err := f.store.ListNodes()
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	deployments, err := f.store.ListComponents()
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return &fsmSnapshot{Nodes: nodes, Deployments: deployments}, nil
}

// Restore replaces the FSM's tracked state with the contents of a snapshot,
// used when a node restarts or a follower falls too far behind the log.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for key, data := range snap.Nodes {
		var rec nodeRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		id := membership.NodeID{Name: rec.Name, Host: rec.Host}
		if _, ok := f.table.Lookup(id); !ok {
			if err := f.table.Connect(id, rec.Tags, func(membership.NodeID) error { return nil }); err != nil {
				return err
			}
		}
		if err := f.store.SaveNode(key, data); err != nil {
			return err
		}
	}
	for key, data := range snap.Deployments {
		if err := f.store.SaveComponent(key, data); err != nil {
			return err
		}
	}
	return nil
}

type fsmSnapshot struct {
	Nodes       map[string][]byte `json:"nodes"`
	Deployments map[string][]byte `json:"deployments"`
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}
