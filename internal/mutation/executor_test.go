package mutation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
)

// countingStore records the size of every committed batch.
type countingStore struct {
	*store.Memory
	sizes []int
}

func (c *countingStore) Batch() store.WriteBatch {
	return &countingBatch{WriteBatch: c.Memory.Batch(), owner: c}
}

type countingBatch struct {
	store.WriteBatch
	owner *countingStore
}

func (b *countingBatch) Commit(ctx context.Context) error {
	if err := b.WriteBatch.Commit(ctx); err != nil {
		return err
	}
	b.owner.sizes = append(b.owner.sizes, b.Len())
	return nil
}

func seedTransactions(t *testing.T, client store.Client, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("t%04d", i)
		if err := client.Set(ctx, "transactions", id, store.Document{"id": id, "account": "a1"}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func TestApplyBatchesAtCeiling(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Memory: store.NewMemory()}
	seedTransactions(t, cs, 1200)

	mutations := make([]store.Mutation, 0, 1200)
	for i := 0; i < 1200; i++ {
		mutations = append(mutations, store.DeleteMutation("transactions", fmt.Sprintf("t%04d", i)))
	}

	exec := NewExecutor(cs, logger.NewNop(), 500)
	if err := exec.Apply(ctx, mutations); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(cs.sizes) != 3 || cs.sizes[0] != 500 || cs.sizes[1] != 500 || cs.sizes[2] != 200 {
		t.Fatalf("batch sizes = %v, want [500 500 200]", cs.sizes)
	}
	snaps, err := cs.QueryEq(ctx, "transactions", "account", "a1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("%d transactions survived", len(snaps))
	}
}

func TestApplyEmptyPlan(t *testing.T) {
	exec := NewExecutor(store.NewMemory(), logger.NewNop(), 500)
	if err := exec.Apply(context.Background(), nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestApplyStopsOnCommitFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedTransactions(t, mem, 10)

	mutations := make([]store.Mutation, 0, 10)
	for i := 0; i < 10; i++ {
		mutations = append(mutations, store.DeleteMutation("transactions", fmt.Sprintf("t%04d", i)))
	}

	boom := errors.New("commit rejected")
	mem.FailNextCommit(boom)

	exec := NewExecutor(mem, logger.NewNop(), 4)
	err := exec.Apply(ctx, mutations)
	if !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}

	// Nothing before the failed batch existed, and nothing after it ran.
	snaps, _ := mem.QueryEq(ctx, "transactions", "account", "a1")
	if len(snaps) != 10 {
		t.Fatalf("%d transactions left, want all 10", len(snaps))
	}

	// The plan is re-drivable once the store accepts commits again.
	if err := exec.Apply(ctx, mutations); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	snaps, _ = mem.QueryEq(ctx, "transactions", "account", "a1")
	if len(snaps) != 0 {
		t.Fatalf("%d transactions left after reapply", len(snaps))
	}
}

func TestExecutorClampsBatchSize(t *testing.T) {
	cs := &countingStore{Memory: store.NewMemory()}
	seedTransactions(t, cs, 3)
	exec := NewExecutor(cs, logger.NewNop(), 0)

	mutations := []store.Mutation{
		store.DeleteMutation("transactions", "t0000"),
		store.DeleteMutation("transactions", "t0001"),
		store.DeleteMutation("transactions", "t0002"),
	}
	if err := exec.Apply(context.Background(), mutations); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(cs.sizes) != 1 || cs.sizes[0] != 3 {
		t.Fatalf("batch sizes = %v, want [3]", cs.sizes)
	}
}
