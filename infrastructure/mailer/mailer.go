package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// Message is a plain-text notification.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers notifications. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipients = errors.New("mailer: no recipients")

// SMTPMailer sends through a relay with net/smtp. Auth is optional.
type SMTPMailer struct {
	Addr string
	From string
	Auth smtp.Auth

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

func NewSMTPMailer(addr, from string, auth smtp.Auth) *SMTPMailer {
	return &SMTPMailer{Addr: addr, From: from, Auth: auth, sendMail: smtp.SendMail, now: time.Now}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.sendMail(m.Addr, m.Auth, m.From, msg.To, m.render(msg)); err != nil {
		return fmt.Errorf("smtp send %q: %w", msg.Subject, err)
	}
	return nil
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer writes notifications to the log. Used when no relay is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	slog.Warn("notification (no smtp relay configured)",
		slog.String("subject", msg.Subject),
		slog.Any("to", msg.To),
		slog.String("body", msg.Body),
	)
	return nil
}

// New returns an SMTP mailer for addr, or a LogMailer when addr is empty.
func New(addr, from string) Mailer {
	if strings.TrimSpace(addr) == "" {
		return LogMailer{}
	}
	return NewSMTPMailer(addr, from, nil)
}
