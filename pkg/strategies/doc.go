// Package strategies supplies the built-in strategy.Strategy values the
// distilled spec describes the mechanism for but never names a concrete
// instance of (SPEC_FULL.md §3a). Each constructor wraps a component's own
// message-processing callback with deploy/send/receive behavior, composed
// via strategy.Merge the same way a workflow author would wire a custom
// one.
//
// Immutable is the single-worker case: spec.md's Average example, a
// component with read-only state and exactly one worker for its whole
// lifetime.
//
// KeyedReplicated fans a component out over a fixed number of workers and
// routes each published value to the replica its key hashes to, so
// partitioned aggregation keeps touching the same replica for the same
// key.
//
// Checkpointed wraps any other strategy's receive hook with a bbolt-backed
// save after every invocation and a lazy restore before the first one — the
// "hidden state" building block the spec's Open Questions leave to
// strategy implementors.
package strategies
