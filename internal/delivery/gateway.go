package delivery

import (
	"context"
	"errors"

	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

// Recipient describes where a notice goes. Resolution precedence: a push
// token wins over an email; when only an id is given the stored profile is
// loaded first and its token/email used.
type Recipient struct {
	ID    string
	Token string
	Email string
}

// Gateway performs best-effort push/email delivery. Callers never let a
// delivery error reach the store mutation that triggered it; they log and
// move on.
type Gateway interface {
	Deliver(ctx context.Context, subject, message string, to Recipient) error
}

// EmailSender is the outbound email transport.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, message string) error
}

// PushSender is the outbound push transport.
type PushSender interface {
	SendPush(ctx context.Context, token, subject, message string) error
}

type gateway struct {
	log    *logger.Logger
	client store.Client
	email  EmailSender
	push   PushSender
}

func NewGateway(client store.Client, email EmailSender, push PushSender, log *logger.Logger) Gateway {
	return &gateway{
		log:    log.With("component", "DeliveryGateway"),
		client: client,
		email:  email,
		push:   push,
	}
}

func (g *gateway) Deliver(ctx context.Context, subject, message string, to Recipient) error {
	if to.Token == "" && to.Email == "" && to.ID != "" {
		doc, err := g.client.Get(ctx, types.ColUsers, to.ID)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrNotFound) {
				g.log.Warn("recipient profile missing", "recipient_id", to.ID)
				return nil
			}
			return err
		}
		user := types.UserFromDoc(to.ID, doc)
		return g.Deliver(ctx, subject, message, Recipient{Token: user.Token, Email: user.Email})
	}

	if to.Token != "" && g.push != nil {
		return g.push.SendPush(ctx, to.Token, subject, message)
	}
	if to.Email != "" && g.email != nil {
		return g.email.SendEmail(ctx, to.Email, subject, message)
	}
	return nil
}
