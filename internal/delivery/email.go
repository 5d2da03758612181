package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucemdev/fundtrace/internal/platform/envutil"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
)

// EmailConfig configures the SendGrid-backed email sender.
type EmailConfig struct {
	APIKey     string
	BaseURL    string
	FromEmail  string
	FromName   string
	Timeout    time.Duration
	MaxRetries int
}

func EmailConfigFromEnv() EmailConfig {
	return EmailConfig{
		APIKey:     envutil.String("SENDGRID_API_KEY", ""),
		BaseURL:    envutil.String("SENDGRID_BASE_URL", ""),
		FromEmail:  envutil.String("SENDGRID_FROM_EMAIL", "noreply@fundtrace.web.app"),
		FromName:   envutil.String("SENDGRID_FROM_NAME", "FundTrace"),
		Timeout:    time.Duration(envutil.Int("SENDGRID_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries: envutil.Int("SENDGRID_MAX_RETRIES", 4),
	}
}

// NewEmailSender builds the SendGrid sender, or a logging no-op sender when
// no API key is configured so local runs still observe delivery calls.
func NewEmailSender(log *logger.Logger, cfg EmailConfig) EmailSender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("no SENDGRID_API_KEY, email delivery will only be logged")
		return &logEmail{log: log.With("component", "EmailSender")}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	return &sendgridEmail{
		log:        log.With("component", "EmailSender"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type logEmail struct {
	log *logger.Logger
}

func (s *logEmail) SendEmail(_ context.Context, to, subject, message string) error {
	s.log.Info("email notice", "to", to, "subject", subject, "body", message)
	return nil
}

type sendgridEmail struct {
	log        *logger.Logger
	cfg        EmailConfig
	httpClient *http.Client
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

func (s *sendgridEmail) SendEmail(ctx context.Context, to, subject, message string) error {
	to = strings.TrimSpace(to)
	subject = strings.TrimSpace(subject)
	if to == "" {
		return fmt.Errorf("sendgrid: To required")
	}
	if subject == "" {
		return fmt.Errorf("sendgrid: Subject required")
	}

	wire := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: s.cfg.FromEmail, Name: s.cfg.FromName},
		Subject:          subject,
		Content: []mailContent{
			{Type: "text/plain", Value: message},
			{Type: "text/html", Value: message},
		},
	}
	return s.do(ctx, "/v3/mail/send", wire)
}

func (s *sendgridEmail) do(ctx context.Context, path string, body any) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		status, err := s.doOnce(ctx, path, body)
		if err == nil {
			return nil
		}
		if !retryable(status) || attempt == s.cfg.MaxRetries {
			return err
		}
		s.log.Warn("sendgrid request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", s.cfg.MaxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		time.Sleep(backoff)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func (s *sendgridEmail) doOnce(ctx context.Context, path string, body any) (int, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp.StatusCode, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 4000 {
			msg = msg[:4000] + "..."
		}
		return resp.StatusCode, fmt.Errorf("sendgrid http %d: %s", resp.StatusCode, msg)
	}
	return resp.StatusCode, nil
}

// retryable: transport errors (status 0), throttling and server errors.
func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}
