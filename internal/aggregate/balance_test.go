package aggregate

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

func txChange(kind store.ChangeKind, id string, doc store.Document) store.Change {
	change := store.Change{Kind: kind, Collection: types.ColTransactions, ID: id}
	if kind == store.ChangeDelete {
		change.Before = doc
	} else {
		change.After = doc
	}
	return change
}

func balanceOf(t *testing.T, client store.Client, account, currency string) float64 {
	t.Helper()
	doc, err := client.Get(context.Background(), types.ColAccounts, account)
	if err != nil {
		t.Fatalf("get %s: %v", account, err)
	}
	balance, ok := doc["balance"].(map[string]any)
	if !ok {
		t.Fatalf("no balance on %s", account)
	}
	v, _ := balance[currency].(float64)
	return v
}

func TestCreateThenDeleteNetsToZero(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Set(ctx, types.ColAccounts, "a1", store.Document{"users": []string{"u1"}})
	agg := NewAggregator(mem, logger.NewNop())

	tx := store.Document{"account": "a1", "amount": 100.0, "fee": 2.0, "currency": "USD"}
	if err := agg.HandleTransactionCreated(ctx, txChange(store.ChangeCreate, "t1", tx)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := balanceOf(t, mem, "a1", "USD"); got != 98 {
		t.Fatalf("balance.USD = %v, want 98", got)
	}

	if err := agg.HandleTransactionDeleted(ctx, txChange(store.ChangeDelete, "t1", tx)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := balanceOf(t, mem, "a1", "USD"); got != 0 {
		t.Fatalf("balance.USD = %v, want 0", got)
	}
}

func TestFeeDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Set(ctx, types.ColAccounts, "a1", store.Document{})
	agg := NewAggregator(mem, logger.NewNop())

	tx := store.Document{"account": "a1", "amount": 25.0, "currency": "EUR"}
	if err := agg.HandleTransactionCreated(ctx, txChange(store.ChangeCreate, "t1", tx)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := balanceOf(t, mem, "a1", "EUR"); got != 25 {
		t.Fatalf("balance.EUR = %v, want 25", got)
	}
}

func TestTagsUnionOnCreateOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Set(ctx, types.ColAccounts, "a1", store.Document{"tags": []string{"rent"}})
	agg := NewAggregator(mem, logger.NewNop())

	tx := store.Document{
		"account": "a1", "amount": 10.0, "currency": "USD",
		"tags": []string{"food", "rent"},
	}
	if err := agg.HandleTransactionCreated(ctx, txChange(store.ChangeCreate, "t1", tx)); err != nil {
		t.Fatalf("create: %v", err)
	}
	doc, _ := mem.Get(ctx, types.ColAccounts, "a1")
	tags := doc["tags"].([]any)
	if len(tags) != 2 {
		t.Fatalf("tags = %v, want [rent food]", tags)
	}

	// Deleting the transaction leaves the tag set alone: tags record every
	// category ever seen.
	if err := agg.HandleTransactionDeleted(ctx, txChange(store.ChangeDelete, "t1", tx)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	doc, _ = mem.Get(ctx, types.ColAccounts, "a1")
	if got := doc["tags"].([]any); len(got) != 2 {
		t.Fatalf("tags after delete = %v, want unchanged", got)
	}
}

func TestOrphanTransactionIsNoop(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	agg := NewAggregator(mem, logger.NewNop())

	tx := store.Document{"amount": 10.0, "currency": "USD"}
	if err := agg.HandleTransactionCreated(ctx, txChange(store.ChangeCreate, "t1", tx)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := agg.HandleTransactionDeleted(ctx, txChange(store.ChangeDelete, "t1", tx)); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestDeleteAfterAccountGoneIsNoop(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	agg := NewAggregator(mem, logger.NewNop())

	tx := store.Document{"account": "gone", "amount": 10.0, "currency": "USD"}
	if err := agg.HandleTransactionDeleted(ctx, txChange(store.ChangeDelete, "t1", tx)); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestMalformedAmountFailsFast(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Set(ctx, types.ColAccounts, "a1", store.Document{})
	agg := NewAggregator(mem, logger.NewNop())

	cases := []store.Document{
		{"account": "a1", "amount": "one hundred", "currency": "USD"},
		{"account": "a1", "currency": "USD"},
		{"account": "a1", "amount": 10.0, "fee": "some", "currency": "USD"},
	}
	for i, doc := range cases {
		err := agg.HandleTransactionCreated(ctx, txChange(store.ChangeCreate, "t1", doc))
		if !errors.Is(err, pkgerrors.ErrMalformedAmount) {
			t.Fatalf("case %d: expected ErrMalformedAmount, got %v", i, err)
		}
	}

	// No partial write happened.
	doc, _ := mem.Get(ctx, types.ColAccounts, "a1")
	if _, ok := doc["balance"]; ok {
		t.Fatalf("balance written despite malformed input: %v", doc["balance"])
	}
}

func TestMissingCurrencyFailsFast(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Set(ctx, types.ColAccounts, "a1", store.Document{})
	agg := NewAggregator(mem, logger.NewNop())

	tx := store.Document{"account": "a1", "amount": 10.0}
	err := agg.HandleTransactionCreated(ctx, txChange(store.ChangeCreate, "t1", tx))
	if !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
