package events

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
)

// Dispatcher drains a change feed and invokes the registered handler for
// each event. Invocations for different events run concurrently up to a
// bound; one invocation either completes its mutation plan or fails
// outright, and failure is left to the event layer's at-least-once
// redelivery (all core mutations are idempotent).
type Dispatcher struct {
	log         *logger.Logger
	registry    *Registry
	concurrency int
}

func NewDispatcher(log *logger.Logger, registry *Registry, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		log:         log.With("component", "Dispatcher"),
		registry:    registry,
		concurrency: concurrency,
	}
}

// Run blocks until ctx is done or the feed closes, waiting for in-flight
// invocations before returning.
func (d *Dispatcher) Run(ctx context.Context, feed <-chan store.Change) {
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case change, ok := <-feed:
			if !ok {
				wg.Wait()
				return
			}
			handler, found := d.registry.Get(change.Collection, change.Kind)
			if !found {
				continue
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(change store.Change) {
				defer wg.Done()
				defer func() { <-sem }()
				d.invoke(ctx, handler, change)
			}(change)
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, handler HandlerFunc, change store.Change) {
	invocationID := uuid.NewString()
	if err := handler(ctx, change); err != nil {
		d.log.Error("handler failed",
			"invocation_id", invocationID,
			"collection", change.Collection,
			"kind", change.Kind,
			"doc_id", change.ID,
			"error", err,
		)
		return
	}
	d.log.Debug("handler done",
		"invocation_id", invocationID,
		"collection", change.Collection,
		"kind", change.Kind,
		"doc_id", change.ID,
	)
}
