package transport

import (
	"hash/fnv"
	"sync/atomic"

	"github.com/skitter-project/skitter/pkg/membership"
)

// Balancer picks one worker node out of a candidate set for a request,
// per spec.md's glossary: SelectPermanent uses a stable mapping so a
// stateful component's requests keep landing on the same node;
// SelectTransient round-robins over whichever nodes are currently alive.
// No consistent-hashing library appears anywhere in the example pack, so
// SelectPermanent hashes with the standard library's hash/fnv — a plain
// deterministic digest, not a concern any example's third-party stack
// addresses (see DESIGN.md).
type Balancer struct {
	rr atomic.Uint64
}

// NewBalancer returns a ready-to-use balancer.
func NewBalancer() *Balancer {
	return &Balancer{}
}

// SelectPermanent maps key deterministically onto one of nodes. The same
// key against the same node set always yields the same node, so repeated
// requests for one piece of state keep reaching the node that holds it.
func (b *Balancer) SelectPermanent(key string, nodes []membership.NodeID) membership.NodeID {
	h := fnv.New64a()
	h.Write([]byte(key))
	idx := h.Sum64() % uint64(len(nodes))
	return nodes[idx]
}

// SelectTransient round-robins over nodes, ignoring key.
func (b *Balancer) SelectTransient(nodes []membership.NodeID) membership.NodeID {
	idx := b.rr.Add(1) % uint64(len(nodes))
	return nodes[idx]
}
