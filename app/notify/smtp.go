package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPDeliverer sends notifications as plain-text e-mail.
type SMTPDeliverer struct {
	addr string
	from string
	auth smtp.Auth
}

var _ Deliverer = (*SMTPDeliverer)(nil)

func NewSMTPDeliverer(host, port, from, username, password string) *SMTPDeliverer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPDeliverer{
		addr: host + ":" + port,
		from: from,
		auth: auth,
	}
}

func (d *SMTPDeliverer) Deliver(ctx context.Context, recipient, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", d.from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(d.addr, d.auth, d.from, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", recipient, err)
	}

	return nil
}

// LogDeliverer writes notifications to the log. Used when SMTP is not
// configured, so stored notification records remain the system of record.
type LogDeliverer struct{}

var _ Deliverer = LogDeliverer{}

func (LogDeliverer) Deliver(ctx context.Context, recipient, subject, body string) error {
	slog.Info("Notification delivered to log", "recipient", recipient, "subject", subject, "bytes", len(body))
	return nil
}
