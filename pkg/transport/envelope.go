package transport

import "context"

// Envelope is the one wire message every RPC in this package carries: a
// tag naming what's being asked for and an opaque JSON payload, a literal
// transcription of spec.md §6's "typed request tagged with (tag, payload)"
// wire protocol description.
type Envelope struct {
	Tag     string `json:"tag"`
	Payload []byte `json:"payload"`
	Error   string `json:"error,omitempty"`
}

// Handler processes one Envelope and returns the response to send back.
type Handler func(ctx context.Context, env *Envelope) (*Envelope, error)
