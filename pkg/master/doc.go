/*
Package master implements the cluster control-plane node: a Raft quorum
member replicating membership and deployment-placement metadata, plus a
periodic reconciliation loop that retires unresponsive nodes.

# Architecture

	┌─────────────────────── MASTER NODE ───────────────────────┐
	│                                                             │
	│  ┌─────────────────────────────────────────────┐          │
	│  │        pkg/transport gRPC server             │          │
	│  │  - beacon handshake, dispatch, deploy RPCs  │          │
	│  └──────────────────┬────────────────────────────┘          │
	│                     │                                        │
	│  ┌──────────────────▼────────────────────────────┐          │
	│  │                 Master                          │          │
	│  │  - ConnectNode/DisconnectNode (Raft Apply)      │          │
	│  │  - RecordDeployment/RemoveDeployment            │          │
	│  │  - process-wide component Registry              │          │
	│  │  - join-token issuance                           │          │
	│  └──────────────────┬────────────────────────────┘          │
	│                     │                                        │
	│  ┌──────────────────▼────────────────────────────┐          │
	│  │             Raft consensus layer                │          │
	│  │  - leader election, log replication             │          │
	│  │  - FSM applies committed commands                │          │
	│  └──────────────────┬────────────────────────────┘          │
	│                     │                                        │
	│  ┌──────────────────▼────────────────────────────┐          │
	│  │       pkg/membership.Table (in-memory)          │          │
	│  │       pkg/storage.BoltStore (durable)           │          │
	│  └──────────────────────────────────────────────────┘         │
	└───────────────────────────────────────────────────────────┘

# What is and isn't replicated

The FSM replicates facts every master needs to agree on: which nodes are
connected, and which node each named workflow is deployed to. It does not
replicate component definitions (compiled into every binary identically,
so there's nothing to agree on) or live worker state (unserializable
closures and channels). A newly elected leader inherits the replicated
placement record of which nodes host each workflow; it does not re-run
Deploy from it.

# Reconciliation

Reconciler ticks every 10 seconds, and for each connected node whose
LivenessMonitor has failed DefaultRetries consecutive heartbeats, replicates
a DisconnectNode through Raft. It is a no-op on followers: DisconnectNode
refuses to Apply unless the local master holds leadership, so only one
master in the quorum actually evicts a given node.

# See also

  - pkg/membership for the node roster and liveness monitor
  - pkg/storage for the durable bucket layout the FSM writes through
  - pkg/transport for the RPC surface a remote node calls into
*/
package master
