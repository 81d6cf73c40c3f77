// Package mailer delivers rendered invitation documents.
package mailer

import (
	"context"
	"fmt"

	"invites.fest2.fun/configs/configslog"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Mailer sends one HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPOptions configures the SMTP transport.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through an SMTP relay using go-mail.
type SMTPMailer struct {
	opts SMTPOptions
}

// NewSMTPMailer validates options and returns an SMTP mailer.
func NewSMTPMailer(opts SMTPOptions) (*SMTPMailer, error) {
	if opts.Host == "" || opts.From == "" {
		return nil, fmt.Errorf("smtp mailer: host and from are required")
	}
	return &SMTPMailer{opts: opts}, nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	clientOpts := []mail.Option{
		mail.WithPort(m.opts.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.opts.Username),
			mail.WithPassword(m.opts.Password),
		)
	}
	return mail.NewClient(m.opts.Host, clientOpts...)
}

// Send dials the relay and delivers a single message. Delivery is not retried here.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.opts.From); err != nil {
		return fmt.Errorf("smtp mailer: from %q: %w", m.opts.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("smtp mailer: to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	c, err := m.client()
	if err != nil {
		return fmt.Errorf("smtp mailer: client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp mailer: send to %s: %w", to, err)
	}
	return nil
}

// LogMailer only logs messages. Used in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	configslog.Log.Info("Mail not sent (log mailer)",
		zap.String("to", to), zap.String("subject", subject), zap.Int("bytes", len(htmlBody)))
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = LogMailer{}
)
