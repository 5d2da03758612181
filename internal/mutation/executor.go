package mutation

import (
	"context"
	"fmt"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
)

// Executor drains an arbitrary-length mutation plan against the store in
// size-bounded atomic batches, strictly sequentially: each batch commits
// before the next is issued. Committed batches stay committed on failure;
// the remainder is simply never applied and the caller resubmits. Every
// mutation in a plan is idempotent, so replaying after a crash is safe.
type Executor struct {
	log       *logger.Logger
	client    store.Client
	batchSize int
}

func NewExecutor(client store.Client, log *logger.Logger, batchSize int) *Executor {
	if batchSize < 1 || batchSize > store.MaxBatchWrites {
		batchSize = store.MaxBatchWrites
	}
	return &Executor{
		log:       log.With("component", "MutationExecutor"),
		client:    client,
		batchSize: batchSize,
	}
}

// Apply commits the plan to completion. Mutations are drained from the end
// of the pending list; order across the plan is irrelevant because
// mutations target disjoint documents.
func (e *Executor) Apply(ctx context.Context, mutations []store.Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	pending := make([]store.Mutation, len(mutations))
	copy(pending, mutations)

	batches := 0
	for len(pending) > 0 {
		n := e.batchSize
		if n > len(pending) {
			n = len(pending)
		}
		batch := e.client.Batch()
		for i := 0; i < n; i++ {
			batch.Add(pending[len(pending)-1])
			pending = pending[:len(pending)-1]
		}
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit batch of %d (%d remaining): %w", n, len(pending), err)
		}
		batches++
	}
	e.log.Debug("mutation plan applied", "writes", len(mutations), "batches", batches)
	return nil
}
