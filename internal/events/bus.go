// Package events carries registry changes to interested parties: the
// notifier (added/removed mail) and, when configured, a Kafka topic.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/healthwatch/internal/domain"
)

type Kind string

const (
	TargetAdded   Kind = "target_added"
	TargetRemoved Kind = "target_removed"
)

type Event struct {
	Kind      Kind             `json:"kind"`
	Target    domain.TargetRef `json:"target"`
	WebsiteID domain.TargetID  `json:"website_id"`
	Name      string           `json:"name"`
	URL       string           `json:"url"`
	// Recipient is the owning website's alert address.
	Recipient     string    `json:"recipient,omitempty"`
	CheckInterval int       `json:"check_interval_seconds,omitempty"`
	At            time.Time `json:"at"`
}

type Handler interface {
	Handle(ctx context.Context, e Event) error
}

type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Bus delivers synchronously, in subscription order. Every handler runs even
// if an earlier one fails.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	var err error
	for _, h := range hs {
		err = multierr.Append(err, h.Handle(ctx, e))
	}
	return err
}

// WebsiteEvent builds the event for a website change.
func WebsiteEvent(k Kind, w *domain.Website) Event {
	return Event{
		Kind:          k,
		Target:        w.Ref(),
		WebsiteID:     w.ID,
		Name:          w.Name,
		URL:           w.URL,
		Recipient:     w.AlertEmail,
		CheckInterval: w.CheckIntervalSeconds,
	}
}

// AppEvent builds the event for an internal app change.
func AppEvent(k Kind, a *domain.InternalApp) Event {
	e := Event{
		Kind:      k,
		Target:    a.Ref(),
		WebsiteID: a.WebsiteID,
		Name:      a.Name,
		URL:       a.URL,
	}
	if a.Parent != nil {
		e.Recipient = a.Parent.AlertEmail
	}
	return e
}
