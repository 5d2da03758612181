package delivery

import (
	"context"
	"sync"
	"testing"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

type recordingSender struct {
	mu     sync.Mutex
	pushes []string
	emails []string
}

func (r *recordingSender) SendPush(_ context.Context, token, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, token)
	return nil
}

func (r *recordingSender) SendEmail(_ context.Context, to, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, to)
	return nil
}

func TestDeliverPrefersToken(t *testing.T) {
	rec := &recordingSender{}
	gw := NewGateway(store.NewMemory(), rec, rec, logger.NewNop())

	err := gw.Deliver(context.Background(), "s", "m", Recipient{Token: "tok", Email: "x@y.z"})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(rec.pushes) != 1 || rec.pushes[0] != "tok" {
		t.Fatalf("pushes = %v", rec.pushes)
	}
	if len(rec.emails) != 0 {
		t.Fatalf("emails = %v", rec.emails)
	}
}

func TestDeliverResolvesIDToProfile(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Set(ctx, types.ColUsers, "u1", store.Document{
		"id": "u1", "email": "alice@example.com", "token": "tok-1",
	})
	rec := &recordingSender{}
	gw := NewGateway(mem, rec, rec, logger.NewNop())

	if err := gw.Deliver(ctx, "s", "m", Recipient{ID: "u1"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(rec.pushes) != 1 || rec.pushes[0] != "tok-1" {
		t.Fatalf("pushes = %v", rec.pushes)
	}
}

func TestDeliverFallsBackToEmail(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Set(ctx, types.ColUsers, "u1", store.Document{
		"id": "u1", "email": "alice@example.com",
	})
	rec := &recordingSender{}
	gw := NewGateway(mem, rec, rec, logger.NewNop())

	if err := gw.Deliver(ctx, "s", "m", Recipient{ID: "u1"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(rec.emails) != 1 || rec.emails[0] != "alice@example.com" {
		t.Fatalf("emails = %v", rec.emails)
	}
}

func TestDeliverMissingProfileIsSwallowed(t *testing.T) {
	rec := &recordingSender{}
	gw := NewGateway(store.NewMemory(), rec, rec, logger.NewNop())
	if err := gw.Deliver(context.Background(), "s", "m", Recipient{ID: "ghost"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(rec.pushes)+len(rec.emails) != 0 {
		t.Fatalf("unexpected deliveries")
	}
}

func TestDeliverEmptyRecipientIsNoop(t *testing.T) {
	rec := &recordingSender{}
	gw := NewGateway(store.NewMemory(), rec, rec, logger.NewNop())
	if err := gw.Deliver(context.Background(), "s", "m", Recipient{}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}
