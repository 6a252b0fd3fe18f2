// Package master implements the cluster-control-plane node: Raft-backed
// replication of membership and deployment-placement metadata across a
// quorum of masters, with a periodic reconciliation loop that demotes nodes
// whose liveness monitor has gone quiet. It folds together the structural
// idiom of the teacher's pkg/manager (Raft bootstrap/join/AddVoter),
// pkg/scheduler (placement decisions — reduced here to "which node runs
// which workflow"), and pkg/reconciler (the periodic correction loop),
// retargeted from container/service/task orchestration onto skitter's
// component/workflow/worker model.
package master

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/skitter-project/skitter/pkg/deploy"
	"github.com/skitter-project/skitter/pkg/membership"
	"github.com/skitter-project/skitter/pkg/metrics"
	"github.com/skitter-project/skitter/pkg/registry"
	"github.com/skitter-project/skitter/pkg/storage"
)

// Config configures a master node.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Master is one cluster-control-plane node: a Raft participant whose FSM
// replicates membership.Table, plus a process-wide component Registry that
// every node running the same binary populates identically at startup.
type Master struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft        *raft.Raft
	fsm         *FSM
	store       storage.Store
	Table       *membership.Table
	Registry    *registry.Registry
	Tokens      *TokenManager
	Deployments *deploy.Registry
	dispatchFunc DispatchFunc
}

// SetDispatcher installs the transport this master uses to reach other
// cluster nodes for cross-node deploy fan-out and router forwarding.
// cmd/skitter calls this once at startup with a DispatchFunc backed by
// pkg/transport.Dial; a master with none set can only deploy workflows
// that place every node on itself.
func (m *Master) SetDispatcher(fn DispatchFunc) {
	m.dispatchFunc = fn
}

// NewMaster wires a store, membership table, and registry together but does
// not start Raft — call Bootstrap or Join for that.
func NewMaster(cfg *Config) (*Master, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	table := membership.NewTable()
	fsm := NewFSM(store, table)

	return &Master{
		nodeID:      cfg.NodeID,
		bindAddr:    cfg.BindAddr,
		dataDir:     cfg.DataDir,
		fsm:         fsm,
		store:       store,
		Table:       table,
		Registry:    registry.New(),
		Tokens:      NewTokenManager(),
		Deployments: deploy.NewRegistry(),
	}, nil
}

func (m *Master) raftConfig() *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(m.nodeID)
	// Tuned for LAN/edge failover well under 10s, matching the teacher's
	// reasoning for lowering hashicorp/raft's WAN-oriented defaults.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	return config
}

func (m *Master) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(m.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create stable store: %w", err)
	}
	r, err := raft.NewRaft(m.raftConfig(), m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap starts a brand-new single-node Raft cluster with this master as
// its only voter.
func (m *Master) Bootstrap() error {
	r, transport, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(m.nodeID), Address: transport.LocalAddr()}},
	}
	if err := m.raft.BootstrapCluster(configuration).Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	return nil
}

// JoinAsVoter starts Raft for this master without bootstrapping a new
// cluster; the current leader must already have run AddVoter for this
// master (cmd/skitter's master mode asks it to with a "master.add_voter"
// request).
func (m *Master) JoinAsVoter() error {
	r, _, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r
	return nil
}

// AddVoter adds another master to the Raft quorum. Must be called on the
// current leader.
func (m *Master) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}
	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes a master from the Raft quorum.
func (m *Master) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	return m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// IsLeader reports whether this master currently holds Raft leadership.
func (m *Master) IsLeader() bool {
	return m.raft != nil && m.raft.State() == raft.Leader
}

// NodeID returns this master's cluster identity, used as the nodeID
// argument to pkg/deploy.Deploy when workers are placed locally.
func (m *Master) NodeID() string { return m.nodeID }

// BindAddr returns the address this master's Raft transport is bound to.
func (m *Master) BindAddr() string { return m.bindAddr }

// LeaderAddr returns the current Raft leader's transport address.
func (m *Master) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// RaftStats reports state used by the metrics collector and diagnostics CLI.
func (m *Master) RaftStats() map[string]any {
	if m.raft == nil {
		return nil
	}
	stats := map[string]any{
		"state":          m.raft.State().String(),
		"last_log_index": m.raft.LastIndex(),
		"applied_index":  m.raft.AppliedIndex(),
		"leader":         string(m.raft.Leader()),
	}
	if cfgFuture := m.raft.GetConfiguration(); cfgFuture.Error() == nil {
		stats["peers"] = uint64(len(cfgFuture.Configuration().Servers))
	}
	return stats
}

// ConnectNode replicates a node join through Raft; only the leader may call
// this (hashicorp/raft.Apply itself rejects the call on a follower).
func (m *Master) ConnectNode(id membership.NodeID, tags map[string]string) error {
	if m.raft == nil || !m.IsLeader() {
		return fmt.Errorf("connect node: not the leader")
	}
	data, err := encodeNodeRecord(id, tags)
	if err != nil {
		return err
	}
	cmd, err := encodeCommand(opConnectNode, data)
	if err != nil {
		return err
	}
	if err := m.raft.Apply(cmd, 10*time.Second).Error(); err != nil {
		metrics.NodeHandshakeFailuresTotal.WithLabelValues("raft_apply").Inc()
		return err
	}
	metrics.NodeJoinsTotal.Inc()
	return nil
}

// DisconnectNode replicates a node leave through Raft.
func (m *Master) DisconnectNode(id membership.NodeID) error {
	if m.raft == nil || !m.IsLeader() {
		return fmt.Errorf("disconnect node: not the leader")
	}
	data, err := encodeNodeRecord(id, nil)
	if err != nil {
		return err
	}
	cmd, err := encodeCommand(opDisconnectNode, data)
	if err != nil {
		return err
	}
	return m.raft.Apply(cmd, 10*time.Second).Error()
}

// RecordDeployment replicates which node is running a named workflow.
func (m *Master) RecordDeployment(rec DeploymentRecord) error {
	if m.raft == nil || !m.IsLeader() {
		return fmt.Errorf("record deployment: not the leader")
	}
	data, err := encodeDeploymentRecord(rec)
	if err != nil {
		return err
	}
	cmd, err := encodeCommand(opRecordDeployment, data)
	if err != nil {
		return err
	}
	return m.raft.Apply(cmd, 10*time.Second).Error()
}

// RemoveDeployment replicates the teardown of a named workflow's placement
// record.
func (m *Master) RemoveDeployment(workflow string) error {
	if m.raft == nil || !m.IsLeader() {
		return fmt.Errorf("remove deployment: not the leader")
	}
	data, err := encodeDeploymentRecord(DeploymentRecord{Workflow: workflow})
	if err != nil {
		return err
	}
	cmd, err := encodeCommand(opRemoveDeployment, data)
	if err != nil {
		return err
	}
	return m.raft.Apply(cmd, 10*time.Second).Error()
}

// Shutdown stops Raft and closes the underlying store.
func (m *Master) Shutdown() error {
	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			return err
		}
	}
	m.Table.Close()
	return m.store.Close()
}

func encodeCommand(op string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(Command{Op: op, Data: data})
}

func encodeNodeRecord(id membership.NodeID, tags map[string]string) (json.RawMessage, error) {
	return json.Marshal(nodeRecord{Name: id.Name, Host: id.Host, Tags: tags})
}

func encodeDeploymentRecord(rec DeploymentRecord) (json.RawMessage, error) {
	return json.Marshal(rec)
}
