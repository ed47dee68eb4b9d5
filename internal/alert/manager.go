// Package alert decides whether a down alert may go out and keeps the
// alert log that cooldown is computed from.
package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/metrics"
	"github.com/hamed0406/healthwatch/internal/notify"
	"github.com/hamed0406/healthwatch/internal/repo"
)

// Alert is an outgoing message before it is logged.
type Alert struct {
	WebsiteID domain.TargetID
	Type      domain.AlertType
	Recipient string
	Subject   string
	Body      string
}

type Manager struct {
	Store    repo.AlertStore
	Notifier notify.Notifier
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time

	mu    sync.Mutex
	locks map[bucket]*sync.Mutex
}

// bucket is the cooldown key. Internal apps use their website's ID.
type bucket struct {
	website domain.TargetID
	typ     domain.AlertType
}

func NewManager(store repo.AlertStore, n notify.Notifier, log *zap.Logger) *Manager {
	return &Manager{Store: store, Notifier: n, Log: log, Now: time.Now}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Manager) lock(b bucket) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[bucket]*sync.Mutex)
	}
	l, ok := m.locks[b]
	if !ok {
		l = &sync.Mutex{}
		m.locks[b] = l
	}
	return l
}

// ShouldAlert is true iff no alert of this type for the website was logged
// within the cooldown window. Cleared alerts still count.
func (m *Manager) ShouldAlert(ctx context.Context, websiteID domain.TargetID, t domain.AlertType, cooldown time.Duration) (bool, error) {
	last, err := m.Store.LatestAlert(ctx, websiteID, t)
	if err != nil {
		return false, fmt.Errorf("latest alert for %s: %w", websiteID, err)
	}
	if last == nil {
		return true, nil
	}
	return last.SentAt.Before(m.now().Add(-cooldown)), nil
}

// SendAlert delivers a and logs it, unless the cooldown says otherwise.
// The check and the log write happen under one lock per (website, type), so
// concurrent callers for the same bucket produce at most one record.
// Delivery failures are recorded with Sent=false and are not returned.
func (m *Manager) SendAlert(ctx context.Context, cooldown time.Duration, a Alert) (bool, error) {
	l := m.lock(bucket{a.WebsiteID, a.Type})
	l.Lock()
	defer l.Unlock()

	ok, err := m.ShouldAlert(ctx, a.WebsiteID, a.Type, cooldown)
	if err != nil || !ok {
		return false, err
	}

	sendErr := m.Notifier.Send(ctx, a.Recipient, a.Subject, a.Body)
	rec := &domain.AlertRecord{
		WebsiteID: a.WebsiteID,
		Type:      a.Type,
		SentAt:    m.now(),
		Recipient: a.Recipient,
		Subject:   a.Subject,
		Body:      a.Body,
		Sent:      sendErr == nil,
	}
	if err := m.Store.InsertAlert(ctx, rec); err != nil {
		return false, fmt.Errorf("log alert for %s: %w", a.WebsiteID, err)
	}
	m.Metrics.ObserveAlert(a.Type, rec.Sent)

	if sendErr != nil {
		m.Log.Warn("alert_send_failed",
			zap.String("website_id", string(a.WebsiteID)),
			zap.String("alert_type", string(a.Type)),
			zap.String("recipient", a.Recipient),
			zap.Error(sendErr),
		)
	} else {
		m.Log.Info("alert_sent",
			zap.String("website_id", string(a.WebsiteID)),
			zap.String("alert_type", string(a.Type)),
			zap.String("recipient", a.Recipient),
		)
	}
	return true, nil
}

// EvaluateDown sends a down alert for an offline result on an eligible
// target. Online results are ignored: recovery mail is not sent.
func (m *Manager) EvaluateDown(ctx context.Context, s domain.Settings, t domain.Target, r domain.CheckResult) (bool, error) {
	if r.Online || !t.Eligible() {
		return false, nil
	}
	owner := t.OwnerWebsite()
	subject, body := downMessage(t, r)
	return m.SendAlert(ctx, s.AlertCooldown, Alert{
		WebsiteID: owner.ID,
		Type:      domain.AlertDown,
		Recipient: owner.AlertEmail,
		Subject:   subject,
		Body:      body,
	})
}

func downMessage(t domain.Target, r domain.CheckResult) (subject, body string) {
	detected := r.CheckedAt.UTC().Format("2006-01-02 15:04:05 UTC")
	var b strings.Builder
	b.WriteString("Dear Administrator,\n\n")

	switch v := t.(type) {
	case *domain.InternalApp:
		subject = fmt.Sprintf("🚨 URGENT: Internal App %s is DOWN", v.Name)
		fmt.Fprintf(&b, "Monitoring Alert: The internal app '%s' on %s is currently DOWN.\n\n", v.Name, v.Parent.Name)
		b.WriteString("Our monitoring system has detected that this component is unreachable.\n\n")
		b.WriteString("Component Details:\n")
		fmt.Fprintf(&b, "- Internal App: %s (%s)\n", v.Name, v.AppType)
		fmt.Fprintf(&b, "- Website: %s\n", v.Parent.Name)
		fmt.Fprintf(&b, "- URL: %s\n", v.URL)
	default:
		subject = fmt.Sprintf("🚨 URGENT: %s is DOWN", t.DisplayName())
		fmt.Fprintf(&b, "Monitoring Alert: %s is currently DOWN.\n\n", t.DisplayName())
		b.WriteString("Our monitoring system has detected that your website is unreachable.\n\n")
		b.WriteString("Website Details:\n")
		fmt.Fprintf(&b, "- Name: %s\n", t.DisplayName())
		fmt.Fprintf(&b, "- URL: %s\n", t.TargetURL())
	}
	fmt.Fprintf(&b, "- Detected at: %s\n", detected)
	fmt.Fprintf(&b, "- Error Details: %s\n\n", r.ErrorMessage)
	b.WriteString("Please investigate this issue immediately.\n\n")
	b.WriteString("Best regards,\nhealthwatch")
	return subject, b.String()
}

// Recent lists logged alerts, newest first.
func (m *Manager) Recent(ctx context.Context, q repo.AlertQuery) ([]domain.AlertRecord, error) {
	return m.Store.Alerts(ctx, q)
}

// Clear hides one alert from listings. It does not reset the cooldown.
func (m *Manager) Clear(ctx context.Context, id string) error {
	if err := m.Store.ClearAlert(ctx, id); err != nil {
		return fmt.Errorf("clear alert %s: %w", id, err)
	}
	m.Log.Info("alert_cleared", zap.String("alert_id", id))
	return nil
}

// ClearAll clears every alert, or every alert of one website when websiteID is set.
func (m *Manager) ClearAll(ctx context.Context, websiteID domain.TargetID) (int, error) {
	n, err := m.Store.ClearAlerts(ctx, websiteID)
	if err != nil {
		return 0, fmt.Errorf("clear alerts: %w", err)
	}
	m.Log.Info("alerts_cleared", zap.String("website_id", string(websiteID)), zap.Int("count", n))
	return n, nil
}
