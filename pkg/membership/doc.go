// Package membership is the master-side cluster membership table: which
// worker nodes are connected, their tags, and a liveness monitor per node.
// Connect performs (or accepts the result of) a beacon handshake and
// records the node; Disconnect removes it. Join and leave are published to
// subscribers through a broker adapted directly from this codebase's
// cluster event broker (pkg/events in the original tree): a buffered
// channel per subscriber, publish is non-blocking and drops on a full
// buffer rather than stalling the whole cluster over one slow subscriber.
package membership
