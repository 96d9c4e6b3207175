package notify

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// SMTPConfig carries the credentials and bounds for the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// mailDialer is satisfied by *gomail.Dialer; tests inject a fake.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers messages over SMTP as multipart text+HTML mail.
type EmailSender struct {
	cfg    SMTPConfig
	dialer mailDialer
}

// NewEmailSender builds an EmailSender from SMTP config.
func NewEmailSender(cfg SMTPConfig) (*EmailSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp.host is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EmailSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Channel reports the email channel.
func (s *EmailSender) Channel() seminar.Channel { return seminar.ChannelEmail }

// Send delivers one message. gomail has no context support, so the dial
// runs in a goroutine bounded by the configured timeout; a timeout is
// reported like any other send failure.
func (s *EmailSender) Send(ctx context.Context, address string, msg seminar.Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", address)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-sendCtx.Done():
		return fmt.Errorf("smtp send to %s: %w", address, sendCtx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", address, err)
		}
		return nil
	}
}
