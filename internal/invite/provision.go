package invite

import (
	"context"
	"fmt"

	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

// Signup carries the identity fields the auth provider reports when an
// account is created.
type Signup struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Provisioner turns a signup event into a stored user profile and grants
// that user access on every invite already waiting for their email, in one
// atomic batch.
type Provisioner struct {
	log    *logger.Logger
	client store.Client
}

func NewProvisioner(client store.Client, log *logger.Logger) *Provisioner {
	return &Provisioner{
		log:    log.With("component", "Provisioner"),
		client: client,
	}
}

func (p *Provisioner) UserCreated(ctx context.Context, signup Signup) error {
	if signup.UserID == "" || signup.Email == "" {
		return fmt.Errorf("signup requires user id and email: %w", pkgerrors.ErrInvalidArgument)
	}
	email := types.NormalizeEmail(signup.Email)

	snaps, err := p.client.QueryEq(ctx, types.ColNotifications, "contact", email)
	if err != nil {
		return fmt.Errorf("query pending invites for signup: %w", err)
	}

	descriptor := types.UserDescriptor{
		ID:          signup.UserID,
		DisplayName: signup.DisplayName,
		PhotoURL:    signup.PhotoURL,
		Email:       email,
	}

	batch := p.client.Batch()
	for _, snap := range snaps {
		batch.Update(types.ColNotifications, snap.ID, store.Update{
			"users":                  store.ArrayUnion(signup.UserID),
			"access." + signup.UserID: types.AccessFull,
			"to":                     descriptor.Doc(),
		})
	}

	userDoc := types.User{
		ID:          signup.UserID,
		Email:       email,
		DisplayName: signup.DisplayName,
		PhotoURL:    signup.PhotoURL,
	}.Doc()
	userDoc["created"] = store.ServerTimestamp()
	batch.Set(types.ColUsers, signup.UserID, userDoc)

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("provision user %s: %w", signup.UserID, err)
	}
	p.log.Info("user provisioned", "user_id", signup.UserID, "granted_invites", len(snaps))
	return nil
}
