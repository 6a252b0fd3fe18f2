// Package router implements the routing table: the map from a published
// (source node, out-port) pair to the destinations wired to it, and the
// dispatch loop that, for each published value, asks the destination's own
// strategy which worker(s) should receive it (the send hook) and then
// enqueues the value on that worker's mailbox (which runs the receive
// hook). Splitting selection (send) from execution (receive) is what lets a
// replicated strategy fan a single published value out to one specific
// replica without the router needing to know anything about replication.
package router
