package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"

	"github.com/ignite/member-mailer/internal/config"
	"github.com/ignite/member-mailer/internal/pkg/logger"
)

// SMTP sends through a relay. Each message opens its own connection; dial
// failures are retried with exponential backoff.
type SMTP struct {
	dialer     *gomail.Dialer
	fromName   string
	fromAddr   string
	maxRetries int
}

// NewSMTP builds an SMTP sender from the relay settings.
func NewSMTP(cfg config.ProviderConfig) (*SMTP, error) {
	if cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("smtp provider needs a host")
	}
	return &SMTP{
		dialer:     gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password),
		fromName:   cfg.FromName,
		fromAddr:   cfg.FromAddress,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (s *SMTP) Name() string { return "smtp" }

func (s *SMTP) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromAddr, s.fromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}

func (s *SMTP) Send(ctx context.Context, msg Message) (bool, error) {
	m := s.buildMessage(msg)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx)

	err := backoff.Retry(func() error {
		sc, err := s.dialer.Dial()
		if err != nil {
			return err
		}
		defer sc.Close()
		// A rejected message is final; only the dial is retried.
		if err := gomail.Send(sc, m); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if err != nil {
		logger.Warn("smtp send failed", "to", msg.To, "error", err)
		return false, fmt.Errorf("smtp send: %w", err)
	}
	return true, nil
}
