package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/lucemdev/fundtrace/internal/store"
)

// HandlerFunc reacts to one document change. Handlers are stateless; the
// store is the only shared resource, and a returned error means the event
// should be redelivered by the event layer.
type HandlerFunc func(ctx context.Context, change store.Change) error

type key struct {
	collection string
	kind       store.ChangeKind
}

// Registry maps (collection, change kind) to a handler. Registration is
// explicit; there is no global instance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[key]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[key]HandlerFunc)}
}

func (r *Registry) Register(collection string, kind store.ChangeKind, h HandlerFunc) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	if collection == "" {
		return fmt.Errorf("empty collection")
	}
	k := key{collection: collection, kind: kind}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("handler already registered for %s/%s", collection, kind)
	}
	r.handlers[k] = h
	return nil
}

func (r *Registry) Get(collection string, kind store.ChangeKind) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key{collection: collection, kind: kind}]
	return h, ok
}
