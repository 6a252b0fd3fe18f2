package membership

import (
	"fmt"
	"sync"

	"github.com/skitter-project/skitter/pkg/skerr"
)

// NodeID names a cluster node by its logical name and network host.
type NodeID struct {
	Name string
	Host string
}

func (n NodeID) String() string { return n.Name + "@" + n.Host }

// NodeEntry is what the membership table keeps per connected node.
type NodeEntry struct {
	ID      NodeID
	Tags    map[string]string
	Monitor *LivenessMonitor
}

// VerifyFunc performs the beacon handshake against a node and returns an
// error (skerr.ErrNotConnected/ErrWrongCookie/ErrTimeout, node-wrapped) if
// it fails.
type VerifyFunc func(NodeID) error

// Table is the master-side membership table.
type Table struct {
	mu       sync.RWMutex
	nodes    map[NodeID]*NodeEntry
	nodeLock sync.Map // NodeID -> *sync.Mutex, serializes Connect/Disconnect per node
	broker   *Broker
}

// NewTable returns an empty, ready-to-use table.
func NewTable() *Table {
	return &Table{
		nodes:  make(map[NodeID]*NodeEntry),
		broker: NewBroker(),
	}
}

func (t *Table) lockFor(id NodeID) *sync.Mutex {
	m, _ := t.nodeLock.LoadOrStore(id, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Connect runs verify against id and, on success, records the node with
// its tags and starts a liveness monitor for it. Calls for distinct nodes
// run independently; two concurrent calls for the same node serialize, so
// the second sees ErrAlreadyConnected rather than racing the first.
func (t *Table) Connect(id NodeID, tags map[string]string, verify VerifyFunc) error {
	lock := t.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	_, exists := t.nodes[id]
	t.mu.RUnlock()
	if exists {
		return fmt.Errorf("%s: %w", id, skerr.ErrAlreadyConnected)
	}

	if err := verify(id); err != nil {
		return err
	}

	entry := &NodeEntry{ID: id, Tags: tags, Monitor: NewLivenessMonitor()}
	t.mu.Lock()
	t.nodes[id] = entry
	t.mu.Unlock()

	t.broker.publish(&Event{Type: EventJoin, Node: id})
	return nil
}

// ConnectMany runs Connect concurrently across distinct nodes, returning a
// per-node result map once every handshake has settled.
func (t *Table) ConnectMany(ids []NodeID, tagsFor func(NodeID) map[string]string, verify VerifyFunc) map[NodeID]error {
	results := make(map[NodeID]error, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id NodeID) {
			defer wg.Done()
			err := t.Connect(id, tagsFor(id), verify)
			mu.Lock()
			results[id] = err
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}

// Disconnect removes a node from the table, stops its liveness monitor,
// and publishes a leave event. Returns ErrNotConnected if the node was not
// present.
func (t *Table) Disconnect(id NodeID) error {
	lock := t.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	t.mu.Lock()
	entry, ok := t.nodes[id]
	if ok {
		delete(t.nodes, id)
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, skerr.ErrNotConnected)
	}

	entry.Monitor.Stop()
	t.broker.publish(&Event{Type: EventLeave, Node: id})
	return nil
}

// Lookup returns the entry for a connected node.
func (t *Table) Lookup(id NodeID) (*NodeEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.nodes[id]
	return e, ok
}

// HostOf resolves a connected node's name to the host it joined with,
// letting a caller that only knows a node's name (e.g. a placement
// decision made before the node was looked up) find where to dial it.
func (t *Table) HostOf(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id := range t.nodes {
		if id.Name == name {
			return id.Host, true
		}
	}
	return "", false
}

// Nodes returns a snapshot of every currently connected node.
func (t *Table) Nodes() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]NodeID, 0, len(t.nodes))
	for id := range t.nodes {
		out = append(out, id)
	}
	return out
}

// Subscribe returns a channel of join/leave events.
func (t *Table) Subscribe() Subscriber { return t.broker.Subscribe() }

// Unsubscribe stops delivery to a previously subscribed channel.
func (t *Table) Unsubscribe(s Subscriber) { t.broker.Unsubscribe(s) }

// Close stops the table's broker. Existing NodeEntry liveness monitors are
// left running; callers should Disconnect each node first if they want a
// clean shutdown.
func (t *Table) Close() { t.broker.Stop() }
