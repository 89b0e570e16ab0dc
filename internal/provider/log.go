package provider

import (
	"context"
	"sync/atomic"

	"github.com/ignite/member-mailer/internal/pkg/logger"
)

// Log accepts every message and only logs it. Used for local runs.
type Log struct {
	sent atomic.Int64
}

// NewLog returns a logging sender.
func NewLog() *Log { return &Log{} }

func (l *Log) Name() string { return "log" }

func (l *Log) Send(_ context.Context, msg Message) (bool, error) {
	l.sent.Add(1)
	logger.Info("email (log provider)", "to", msg.To, "subject", msg.Subject, "text_bytes", len(msg.Text))
	return true, nil
}

// Sent returns how many messages were accepted.
func (l *Log) Sent() int64 { return l.sent.Load() }
