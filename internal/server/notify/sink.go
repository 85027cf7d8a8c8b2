// Package notify delivers best-effort messages to clients. Callers treat
// every error as non-fatal: a failed notification never undoes the state
// change that triggered it.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/logging"
)

// Sink sends one message to one address.
type Sink interface {
	Send(ctx context.Context, address, subject, body string) error
}

// Notification is the event published for the mailer.
type Notification struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogSink writes notifications to the log instead of delivering them. It is
// the fallback when no broker is configured.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	return &LogSink{log: log.With("module", "log_sink")}
}

func (s *LogSink) Send(ctx context.Context, address, subject, body string) error {
	s.log.Info(ctx, "notification", "to", address, "subject", subject, "body", body)
	return nil
}
