package email

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/isharee/backend/internal/config"
)

// Sender delivers transactional email: verification links, password resets,
// and support-form messages.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// SMTPSender implements Sender over a plain SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender constructs a sender using the configured relay.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers a single message. The html body is preferred when present;
// otherwise the plain-text body is sent.
func (s *SMTPSender) Send(ctx context.Context, to, subject, text, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	contentType := "text/plain; charset=UTF-8"
	body := text
	if html != "" {
		contentType = "text/html; charset=UTF-8"
		body = html
	}

	var message bytes.Buffer
	fmt.Fprintf(&message, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&message, "To: %s\r\n", to)
	fmt.Fprintf(&message, "Subject: %s\r\n", subject)
	fmt.Fprintf(&message, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&message, "Content-Type: %s\r\n", contentType)
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, message.Bytes()); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	return nil
}

var _ Sender = (*SMTPSender)(nil)
