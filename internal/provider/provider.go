// Package provider sends single email messages through an external
// delivery service.
//
// Every implementation satisfies Sender: Send returns (true, nil) when the
// provider accepted the message, (false, nil) when it answered but refused
// delivery, and a non-nil error when the call itself failed. Callers treat
// both failure shapes the same way.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/member-mailer/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) (bool, error)
	Name() string
}

// New builds the sender selected by cfg.Type.
func New(ctx context.Context, cfg config.ProviderConfig) (Sender, error) {
	switch strings.ToLower(cfg.Type) {
	case "ses":
		return NewSES(ctx, cfg)
	case "mailgun":
		return NewMailgun(cfg)
	case "smtp":
		return NewSMTP(cfg)
	case "", "log":
		return NewLog(), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Type)
	}
}

func fromHeader(cfg config.ProviderConfig) string {
	if cfg.FromName == "" {
		return cfg.FromAddress
	}
	return fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
}

func toHeader(msg Message) string {
	if msg.ToName == "" {
		return msg.To
	}
	return fmt.Sprintf("%s <%s>", msg.ToName, msg.To)
}
