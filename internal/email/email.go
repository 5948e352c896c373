// Package email delivers out-of-band messages: verification links and
// password-reset links. Delivery fails closed — a sender with incomplete
// transport configuration cannot be constructed.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/aybekd/meetgrid/internal/domain"
	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs emails instead of sending them — used in ENV=local.
// The body carries a raw token secret, so only the recipient and subject
// are logged at info level; the body goes to debug.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "email (local dev, not sent)", "to", to, "subject", subject)
	s.logger.DebugContext(ctx, "email body (local dev)", "body", body)
	return nil
}

// SMTPSender sends via a plain SMTP relay with PLAIN auth.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPSender validates the transport configuration up front: a missing
// host, port, username, password, or from-address is a domain.ErrConfig.
func NewSMTPSender(host string, port int, username, password, from string) (*SMTPSender, error) {
	var missing []string
	if host == "" {
		missing = append(missing, "host")
	}
	if port == 0 {
		missing = append(missing, "port")
	}
	if username == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if from == "" {
		missing = append(missing, "from")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: smtp %s", domain.ErrConfig, strings.Join(missing, ", "))
	}

	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: smtp.PlainAuth("", username, password, host),
		from: from,
	}, nil
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("%w: resend api key and from address", domain.ErrConfig)
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}, nil
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
