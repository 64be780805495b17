// Package mailer sends plain-text notification email over SMTP.
package mailer

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/wneessen/go-mail"
)

// Sender delivers one notification. Call sites treat delivery as
// fire-and-forget: errors are logged, never retried or escalated.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// Config holds SMTP transport settings and the fixed envelope.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SMTPSender implements Sender against an SMTP relay.
type SMTPSender struct {
	cfg Config
}

// NewSMTP creates an SMTPSender.
func NewSMTP(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one message to every configured recipient.
func (s *SMTPSender) Send(ctx context.Context, subject, body string) error {
	if len(s.cfg.To) == 0 {
		return eris.New("mailer: no recipients configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return eris.Wrapf(err, "mailer: from address %q", s.cfg.From)
	}
	if err := msg.To(s.cfg.To...); err != nil {
		return eris.Wrap(err, "mailer: to addresses")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(s.cfg.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "mailer: create client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrap(err, "mailer: send")
	}
	return nil
}
