package delivery

import (
	"context"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
)

// NotificationLink is the in-app destination attached to push payloads.
const NotificationLink = "https://fundtrace.web.app/notification"

// logPush shapes the webpush payload and logs it instead of sending; the
// real push transport lives outside this service.
type logPush struct {
	log *logger.Logger
}

func NewLogPushSender(log *logger.Logger) PushSender {
	return &logPush{log: log.With("component", "PushSender")}
}

func (p *logPush) SendPush(_ context.Context, token, subject, message string) error {
	p.log.Info("push notice",
		"token", token,
		"title", subject,
		"body", message,
		"link", NotificationLink,
		"tag", "notification",
	)
	return nil
}
