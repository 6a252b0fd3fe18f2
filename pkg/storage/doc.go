/*
Package storage provides BoltDB-backed persistence for the state a master
node needs to survive a restart: workflow deployment records, the
connected-node roster, and strategy checkpoints.

# Architecture

One bbolt file per master, three buckets, JSON-free — callers pass
pre-serialized bytes so the FSM (pkg/master) controls the wire format:

	components:  "deployment:<workflow>" -> serialized master.DeploymentRecord
	nodes:       node key                -> serialized node record
	checkpoints: "<component>#<tag>"     -> serialized strategy checkpoint

# Transaction model

Reads use db.View (concurrent, snapshot-isolated); writes use db.Update
(serialized, fsync on commit). Put is upsert; Delete is idempotent.

# Integration

pkg/master's Raft FSM is the only writer of the components and nodes
buckets: every SaveComponent/SaveNode call happens inside Apply or Restore.
strategies.Checkpointed reads and writes the
checkpoints bucket directly through the same Store handed to it at
deployment time.

# See also

  - pkg/master for the Raft FSM that drives this store
  - BoltDB docs: https://github.com/etcd-io/bbolt
*/
package storage
