package notify

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("no recipient")

// Notifier delivers one message. Transports without an addressee
// (Slack, the log) ignore recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Multi fans out to every notifier and returns all failures combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, recipient, subject, body string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, recipient, subject, body))
	}
	return err
}

// Log writes messages to the application log. Used when no mail transport
// is configured so alerts are still visible.
type Log struct {
	L *zap.Logger
}

func (l Log) Send(ctx context.Context, recipient, subject, body string) error {
	l.L.Info("notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
