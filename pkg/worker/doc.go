// Package worker implements the per-component worker: a single goroutine
// draining a FIFO mailbox and invoking its strategy's receive hook for each
// message, and the Pool that supervises a node's workers and restarts any
// that panic — always with a fresh empty state, since a crashed worker
// never resumes with its last known state.
//
// # Architecture
//
// Each worker is spawned by the deployment engine (pkg/deploy) with a fixed
// (component, strategy, deployment data, tag) tuple and an empty mailbox.
// Messages pushed onto the mailbox are processed strictly in order by one
// goroutine, so a single worker never runs two callbacks concurrently — the
// per-worker FIFO property spec.md requires.
//
// A worker that panics mid-invocation is caught by its own recover and
// reported to the owning Pool, which respawns it with the same identity and
// tuple but a nil starting state. The Pool enforces a restart ceiling per
// interval so a worker stuck in a crash loop eventually surfaces as failed
// rather than spinning forever.
package worker
