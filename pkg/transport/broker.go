package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/skitter-project/skitter/pkg/skerr"
)

// Broker multiplexes incoming Envelopes by tag to the handler registered
// for it, falling back to any catch-all handlers registered with OnAll.
// It is the dispatch-side counterpart to pkg/router.Table: router picks
// which worker on this node receives a value, Broker picks which local
// subsystem (deploy, beacon, router) an inbound RPC belongs to.
type Broker struct {
	mu      sync.RWMutex
	exact   map[string]Handler
	catchAll []Handler
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{exact: make(map[string]Handler)}
}

// On registers the handler for one exact tag, replacing any prior
// registration for that tag.
func (b *Broker) On(tag string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exact[tag] = h
}

// OnAll registers a handler tried, in registration order, for any tag with
// no exact match.
func (b *Broker) OnAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = append(b.catchAll, h)
}

// Handle looks up env's tag and runs the matching handler.
func (b *Broker) Handle(ctx context.Context, env *Envelope) (*Envelope, error) {
	b.mu.RLock()
	h, ok := b.exact[env.Tag]
	fallback := append([]Handler(nil), b.catchAll...)
	b.mu.RUnlock()

	if ok {
		return h(ctx, env)
	}
	for _, fn := range fallback {
		if resp, err := fn(ctx, env); err == nil {
			return resp, nil
		}
	}
	return nil, fmt.Errorf("tag %s: %w", env.Tag, skerr.ErrUnknownName)
}
