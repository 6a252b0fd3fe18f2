// Package storage persists cluster-wide state a master needs to survive a
// restart or hand off to a newly elected leader: workflow deployment records,
// the membership table's node roster, and checkpoint blobs written by the
// Checkpointed built-in strategy. It is grounded on the teacher's BoltDB
// store (pkg/storage in cuemby-warren), trimmed from its service/container/
// secret/volume/ingress buckets down to the three buckets skitter's FSM
// actually needs.
package storage

// Store is the persistence interface the raft FSM (pkg/master) applies
// committed log entries against. A BoltStore is the only production
// implementation; tests may supply an in-memory fake.
type Store interface {
	// Components is the bucket the FSM keeps its replicated deployment
	// records in: one serialized master.DeploymentRecord per workflow, keyed
	// "deployment:<workflow>". Component definitions themselves are not
	// stored (their Callback.Fn fields are closures).
	SaveComponent(name string, data []byte) error
	GetComponent(name string) ([]byte, error)
	ListComponents() (map[string][]byte, error)
	DeleteComponent(name string) error

	// Nodes mirrors pkg/membership.Table's roster so a newly elected leader
	// can rebuild who is connected without re-running every handshake.
	SaveNode(key string, data []byte) error
	GetNode(key string) ([]byte, error)
	ListNodes() (map[string][]byte, error)
	DeleteNode(key string) error

	// Checkpoints holds strategies.Checkpointed snapshots, keyed by the
	// component/invocation tag the strategy chooses.
	SaveCheckpoint(key string, data []byte) error
	GetCheckpoint(key string) ([]byte, error)
	DeleteCheckpoint(key string) error

	Close() error
}
