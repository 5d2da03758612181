package cascade

import (
	"context"
	"fmt"

	"github.com/lucemdev/fundtrace/internal/mutation"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

// Planner propagates account edits into the transactions that denormalize
// account data, and cleans transactions up when their account is deleted.
// It only computes mutation plans; the executor owns batching and commit.
type Planner struct {
	log    *logger.Logger
	client store.Client
	exec   *mutation.Executor
}

func NewPlanner(client store.Client, exec *mutation.Executor, log *logger.Logger) *Planner {
	return &Planner{
		log:    log.With("component", "CascadePlanner"),
		client: client,
		exec:   exec,
	}
}

// HandleAccountUpdated reacts to an account update: removed members are
// scrubbed from every owned transaction, and a color change is rewritten
// onto transactions still carrying the old account color. Transactions
// whose color was overridden by hand diverge from the old color and are
// left untouched.
func (p *Planner) HandleAccountUpdated(ctx context.Context, change store.Change) error {
	before := types.AccountFromDoc(change.ID, change.Before)
	after := types.AccountFromDoc(change.ID, change.After)

	removed := missingFrom(before.Users, after.Users)
	colorChanged := before.Color != after.Color
	if len(removed) == 0 && !colorChanged {
		return nil
	}

	snaps, err := p.client.QueryEq(ctx, types.ColTransactions, "account", change.ID)
	if err != nil {
		return fmt.Errorf("query transactions for account %s: %w", change.ID, err)
	}

	removedVals := make([]any, 0, len(removed))
	for _, uid := range removed {
		removedVals = append(removedVals, uid)
	}

	mutations := make([]store.Mutation, 0, len(snaps))
	for _, snap := range snaps {
		update := store.Update{}
		if colorChanged && colorOf(snap.Data) == before.Color {
			update["color"] = after.Color
		}
		if len(removed) > 0 {
			update["users"] = store.ArrayRemove(removedVals...)
			for _, uid := range removed {
				update["access."+uid] = store.DeleteField()
			}
		}
		if len(update) == 0 {
			continue
		}
		mutations = append(mutations, store.UpdateMutation(types.ColTransactions, snap.ID, update))
	}

	p.log.Info("account cascade",
		"account_id", change.ID,
		"removed_users", len(removed),
		"color_changed", colorChanged,
		"transactions", len(mutations),
	)
	return p.exec.Apply(ctx, mutations)
}

// HandleAccountDeleted removes every transaction referencing the deleted
// account.
func (p *Planner) HandleAccountDeleted(ctx context.Context, change store.Change) error {
	snaps, err := p.client.QueryEq(ctx, types.ColTransactions, "account", change.ID)
	if err != nil {
		return fmt.Errorf("query transactions for account %s: %w", change.ID, err)
	}
	mutations := make([]store.Mutation, 0, len(snaps))
	for _, snap := range snaps {
		mutations = append(mutations, store.DeleteMutation(types.ColTransactions, snap.ID))
	}
	p.log.Info("account delete cascade", "account_id", change.ID, "transactions", len(mutations))
	return p.exec.Apply(ctx, mutations)
}

// missingFrom returns the members of was that are absent from now.
func missingFrom(was, now []string) []string {
	keep := make(map[string]struct{}, len(now))
	for _, uid := range now {
		keep[uid] = struct{}{}
	}
	var removed []string
	for _, uid := range was {
		if _, ok := keep[uid]; !ok {
			removed = append(removed, uid)
		}
	}
	return removed
}

// colorOf reads the color field without full transaction decoding; cascade
// correctness must not depend on the validity of unrelated fields.
func colorOf(doc store.Document) string {
	if s, ok := doc["color"].(string); ok {
		return s
	}
	return ""
}
