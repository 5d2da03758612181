package aggregate

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

// Aggregator keeps account rollup fields in step with transaction life
// events using single-document atomic increments, never re-reading history.
// Correctness under concurrent creates/deletes comes entirely from the
// store's increment operator.
type Aggregator struct {
	log    *logger.Logger
	client store.Client
}

func NewAggregator(client store.Client, log *logger.Logger) *Aggregator {
	return &Aggregator{
		log:    log.With("component", "BalanceAggregator"),
		client: client,
	}
}

// HandleTransactionCreated adds amount-fee to the owning account balance
// and unions the transaction's tags into the account tag set. A
// transaction without an account is a benign no-op. Malformed numeric
// fields fail fast rather than corrupting the balance.
func (a *Aggregator) HandleTransactionCreated(ctx context.Context, change store.Change) error {
	if accountOf(change.After) == "" {
		return nil
	}
	tx, err := types.TransactionFromDoc(change.ID, change.After)
	if err != nil {
		return err
	}
	if tx.Currency == "" {
		return fmt.Errorf("transaction %s: currency: %w", tx.ID, pkgerrors.ErrInvalidArgument)
	}

	update := store.Update{
		"balance." + tx.Currency: store.Increment(tx.Net()),
	}
	if len(tx.Tags) > 0 {
		tags := make([]any, 0, len(tx.Tags))
		for _, t := range tx.Tags {
			tags = append(tags, t)
		}
		update["tags"] = store.ArrayUnion(tags...)
	}
	if err := a.client.Update(ctx, types.ColAccounts, tx.Account, update); err != nil {
		return fmt.Errorf("credit account %s: %w", tx.Account, err)
	}
	a.log.Debug("balance credited", "account_id", tx.Account, "currency", tx.Currency, "net", tx.Net())
	return nil
}

// HandleTransactionDeleted reverses the balance contribution of a removed
// transaction. Tags are deliberately not reversed: the account tag set
// records every category ever seen, not a reference count. An account
// already deleted is a benign no-op.
func (a *Aggregator) HandleTransactionDeleted(ctx context.Context, change store.Change) error {
	if accountOf(change.Before) == "" {
		return nil
	}
	tx, err := types.TransactionFromDoc(change.ID, change.Before)
	if err != nil {
		return err
	}
	if tx.Currency == "" {
		return fmt.Errorf("transaction %s: currency: %w", tx.ID, pkgerrors.ErrInvalidArgument)
	}

	if _, err := a.client.Get(ctx, types.ColAccounts, tx.Account); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load account %s: %w", tx.Account, err)
	}

	update := store.Update{
		"balance." + tx.Currency: store.Increment(-tx.Net()),
	}
	if err := a.client.Update(ctx, types.ColAccounts, tx.Account, update); err != nil {
		return fmt.Errorf("debit account %s: %w", tx.Account, err)
	}
	a.log.Debug("balance debited", "account_id", tx.Account, "currency", tx.Currency, "net", tx.Net())
	return nil
}

func accountOf(doc store.Document) string {
	if s, ok := doc["account"].(string); ok {
		return s
	}
	return ""
}
