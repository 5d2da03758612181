package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	h := func(context.Context, store.Change) error { return nil }
	if err := r.Register("accounts", store.ChangeUpdate, h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("accounts", store.ChangeUpdate, h); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
	if err := r.Register("accounts", store.ChangeDelete, h); err != nil {
		t.Fatalf("distinct kind rejected: %v", err)
	}
	if err := r.Register("", store.ChangeCreate, h); err == nil {
		t.Fatalf("empty collection accepted")
	}
	if err := r.Register("x", store.ChangeCreate, nil); err == nil {
		t.Fatalf("nil handler accepted")
	}
}

func TestDispatcherRoutesByCollectionAndKind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[string]int{}
	record := func(name string) HandlerFunc {
		return func(_ context.Context, change store.Change) error {
			mu.Lock()
			seen[name]++
			mu.Unlock()
			return nil
		}
	}

	r := NewRegistry()
	_ = r.Register("transactions", store.ChangeCreate, record("tx-create"))
	_ = r.Register("accounts", store.ChangeDelete, record("acc-delete"))

	mem := store.NewMemory()
	feed := mem.Watch(ctx)
	d := NewDispatcher(logger.NewNop(), r, 2)
	go d.Run(ctx, feed)

	_ = mem.Set(ctx, "transactions", "t1", store.Document{"amount": 1.0})
	_ = mem.Set(ctx, "accounts", "a1", store.Document{})
	_ = mem.Delete(ctx, "accounts", "a1")
	// The accounts create has no handler and is skipped.

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := seen["tx-create"] == 1 && seen["acc-delete"] == 1
		mu.Unlock()
		if done {
			return
		}
		select {
		case <-deadline:
			mu.Lock()
			got := map[string]int{}
			for k, v := range seen {
				got[k] = v
			}
			mu.Unlock()
			t.Fatalf("events not dispatched: %v", got)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDispatcherSurvivesHandlerFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var calls int
	r := NewRegistry()
	_ = r.Register("transactions", store.ChangeCreate, func(context.Context, store.Change) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})

	mem := store.NewMemory()
	feed := mem.Watch(ctx)
	d := NewDispatcher(logger.NewNop(), r, 1)
	go d.Run(ctx, feed)

	_ = mem.Set(ctx, "transactions", "t1", store.Document{})
	_ = mem.Set(ctx, "transactions", "t2", store.Document{})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
