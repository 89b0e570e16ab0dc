package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	mg "github.com/mailgun/mailgun-go/v4"

	"github.com/ignite/member-mailer/internal/config"
	"github.com/ignite/member-mailer/internal/pkg/httpretry"
	"github.com/ignite/member-mailer/internal/pkg/logger"
)

// Mailgun sends through the Mailgun messages API. Transient HTTP failures
// are retried by the httpretry transport.
type Mailgun struct {
	client *mg.MailgunImpl
	from   string
}

// NewMailgun builds a Mailgun sender for the configured domain.
func NewMailgun(cfg config.ProviderConfig) (*Mailgun, error) {
	if cfg.Mailgun.Domain == "" || cfg.Mailgun.APIKey == "" {
		return nil, fmt.Errorf("mailgun provider needs domain and api key")
	}
	client := mg.NewMailgun(cfg.Mailgun.Domain, cfg.Mailgun.APIKey)
	client.SetClient(httpretry.NewClient(cfg.Timeout(), cfg.MaxRetries))
	client.SetAPIBase(mailgunAPIBase(cfg.Mailgun.BaseURL))
	return &Mailgun{client: client, from: fromHeader(cfg)}, nil
}

var apiVersionSuffix = regexp.MustCompile(`/v[1-5]$`)

// mailgunAPIBase returns base with the API version the client requires.
// "https://api.eu.mailgun.net" becomes "https://api.eu.mailgun.net/v3".
func mailgunAPIBase(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return mg.APIBase
	}
	if apiVersionSuffix.MatchString(base) {
		return base
	}
	return base + "/v3"
}

func (m *Mailgun) Name() string { return "mailgun" }

func (m *Mailgun) Send(ctx context.Context, msg Message) (bool, error) {
	message := m.client.NewMessage(m.from, msg.Subject, msg.Text, toHeader(msg))
	message.SetHtml(msg.HTML)

	_, id, err := m.client.Send(ctx, message)
	if err != nil {
		return false, fmt.Errorf("mailgun send: %w", err)
	}
	logger.Debug("mailgun accepted message", "to", msg.To, "message_id", id)
	return true, nil
}
