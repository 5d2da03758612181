package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lucemdev/fundtrace/internal/delivery"
	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

// Machine owns the notification lifecycle: matching a fresh invite to a
// known user, deduplicating repeat invites, and turning an acceptance into
// a circle exactly once. Concurrency safety rests on the deterministic
// circle id, not on locking: racing accepts for the same pair collapse
// onto one document id and the existence check before create wins.
type Machine struct {
	log     *logger.Logger
	client  store.Client
	gateway delivery.Gateway
	now     func() time.Time
}

func NewMachine(client store.Client, gateway delivery.Gateway, log *logger.Logger) *Machine {
	return &Machine{
		log:     log.With("component", "InviteMachine"),
		client:  client,
		gateway: gateway,
		now:     time.Now,
	}
}

// HandleNotificationCreated matches a new invite against known users and
// existing circles, grants access to a matched user, stamps the advisory
// expiry, and delivers the invite unless it deduplicates.
func (m *Machine) HandleNotificationCreated(ctx context.Context, change store.Change) error {
	n := types.NotificationFromDoc(change.ID, change.After)

	// Auto-match path: a target user is already known (synthesized from a
	// signup event); deliver directly, no matching or circle logic.
	if n.User != "" {
		m.deliver(ctx, n.Title, n.Message, delivery.Recipient{Email: n.Contact})
		return nil
	}

	contact := types.NormalizeEmail(n.Contact)

	var userSnaps, circleSnaps []store.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userSnaps, err = m.client.QueryEq(gctx, types.ColUsers, "email", contact)
		return err
	})
	g.Go(func() error {
		var err error
		circleSnaps, err = m.client.QueryEq(gctx, types.ColCircles, n.From.ID+".email", contact)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("invite lookups for %s: %w", n.ID, err)
	}

	var matched *types.User
	if len(userSnaps) > 0 {
		u := types.UserFromDoc(userSnaps[0].ID, userSnaps[0].Data)
		matched = &u
	}

	update := store.Update{"delete": m.now().Add(types.InviteTTL)}
	notify := true
	alreadyLinked := len(circleSnaps) > 0 && types.IsCirclePath(n.Target)
	selfInvite := matched != nil && types.NormalizeEmail(n.From.Email) == matched.Email
	if alreadyLinked || selfInvite {
		update["result"] = types.ResultAlreadyInvited
		notify = false
	}
	if matched != nil {
		update["users"] = store.ArrayUnion(matched.ID)
		update["access."+matched.ID] = types.AccessFull
		update["to"] = types.UserDescriptor{
			ID:          matched.ID,
			DisplayName: matched.DisplayName,
			PhotoURL:    matched.PhotoURL,
			Email:       matched.Email,
		}.Doc()
	}

	if err := m.client.Update(ctx, types.ColNotifications, n.ID, update); err != nil {
		return fmt.Errorf("update notification %s: %w", n.ID, err)
	}

	if notify {
		to := delivery.Recipient{Email: n.Contact}
		if matched != nil && matched.Token != "" {
			to = delivery.Recipient{Token: matched.Token}
		}
		m.deliver(ctx, n.Title, n.Message, to)
	}
	return nil
}

// HandleNotificationUpdated reacts to the human decision arriving as a
// result update. Acceptance creates the circle idempotently and grants the
// invited user membership on a non-circle target, all in one batch.
func (m *Machine) HandleNotificationUpdated(ctx context.Context, change store.Change) error {
	n := types.NotificationFromDoc(change.ID, change.After)

	switch n.Result {
	case types.ResultAccepted:
		return m.accept(ctx, n)
	case types.ResultRejected:
		m.log.Info("invite rejected", "notification_id", n.ID, "target", n.Target)
		m.deliver(ctx, "Rejected", "Your request has been rejected", delivery.Recipient{ID: n.From.ID})
		return nil
	default:
		return nil
	}
}

func (m *Machine) accept(ctx context.Context, n types.Notification) error {
	m.log.Info("invite accepted", "notification_id", n.ID, "target", n.Target)

	circleID := types.CircleID(n.Users)
	_, err := m.client.Get(ctx, types.ColCircles, circleID)
	exists := err == nil
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return fmt.Errorf("load circle %s: %w", circleID, err)
	}

	batch := m.client.Batch()
	if !exists {
		circle := types.Circle{
			ID:    circleID,
			Users: n.Users,
			Members: map[string]types.UserDescriptor{
				n.From.ID: n.To,
				n.To.ID:   n.From,
			},
		}
		doc := circle.Doc()
		doc["created"] = store.ServerTimestamp()
		batch.Set(types.ColCircles, circleID, doc)
	}
	if !types.IsCirclePath(n.Target) {
		collection, id, ok := splitTarget(n.Target)
		if !ok {
			return fmt.Errorf("notification %s: target %q: %w", n.ID, n.Target, pkgerrors.ErrInvalidArgument)
		}
		batch.Update(collection, id, store.Update{"users": store.ArrayUnion(n.To.ID)})
	}
	if batch.Len() > 0 {
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit acceptance of %s: %w", n.ID, err)
		}
	}

	m.deliver(ctx, "Accepted", "Your request has been accepted", delivery.Recipient{ID: n.From.ID})
	return nil
}

// deliver logs and swallows transport failures; delivery is best-effort
// and never unwinds the store mutation that triggered it.
func (m *Machine) deliver(ctx context.Context, subject, message string, to delivery.Recipient) {
	if err := m.gateway.Deliver(ctx, subject, message, to); err != nil {
		m.log.Warn("delivery failed", "subject", subject, "recipient_id", to.ID, "error", err)
	}
}

func splitTarget(target string) (collection, id string, ok bool) {
	parts := strings.SplitN(target, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
