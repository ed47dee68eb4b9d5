package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
	"github.com/hamed0406/healthwatch/internal/repo/memory"
)

type memNotifier struct {
	n    atomic.Int32
	err  error
	last struct{ recipient, subject string }
	mu   sync.Mutex
}

func (m *memNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	m.n.Add(1)
	m.mu.Lock()
	m.last.recipient, m.last.subject = recipient, subject
	m.mu.Unlock()
	return m.err
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newManager(n *memNotifier) (*Manager, *memory.Store, *clock) {
	store := memory.New()
	c := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(store, n, zap.NewNop())
	m.Now = c.Now
	return m, store, c
}

func site(status domain.WebsiteStatus) *domain.Website {
	w := &domain.Website{ID: "w1", Name: "Shop", URL: "https://shop.example.com", Status: status, AlertEmail: "ops@example.com"}
	w.ApplyDefaults()
	return w
}

func down(t domain.Target, at time.Time) domain.CheckResult {
	return domain.CheckResult{Target: t.Ref(), CheckedAt: at, ErrorMessage: "connection error"}
}

func TestEvaluateDown_Cooldown(t *testing.T) {
	n := &memNotifier{}
	m, store, c := newManager(n)
	ctx := context.Background()
	s := domain.DefaultSettings() // 5m cooldown
	w := site(domain.StatusActive)

	steps := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{time.Minute, false},
		{6 * time.Minute, true},
	}
	base := c.t
	for _, st := range steps {
		c.t = base.Add(st.offset)
		got, err := m.EvaluateDown(ctx, s, w, down(w, c.t))
		if err != nil {
			t.Fatalf("+%v: %v", st.offset, err)
		}
		if got != st.want {
			t.Fatalf("+%v: want %v got %v", st.offset, st.want, got)
		}
	}
	if n.n.Load() != 2 {
		t.Fatalf("want 2 deliveries, got %d", n.n.Load())
	}
	recs, _ := store.Alerts(ctx, repo.AlertQuery{IncludeCleared: true})
	if len(recs) != 2 {
		t.Fatalf("want 2 records, got %d", len(recs))
	}
}

func TestEvaluateDown_MaintenanceNeverAlerts(t *testing.T) {
	n := &memNotifier{}
	m, store, c := newManager(n)
	ctx := context.Background()
	w := site(domain.StatusMaintenance)

	for i := 0; i < 10; i++ {
		c.t = c.t.Add(10 * time.Minute)
		sent, err := m.EvaluateDown(ctx, domain.DefaultSettings(), w, down(w, c.t))
		if err != nil || sent {
			t.Fatalf("iteration %d: sent=%v err=%v", i, sent, err)
		}
	}
	if n.n.Load() != 0 {
		t.Fatalf("notifier called %d times", n.n.Load())
	}
	if recs, _ := store.Alerts(ctx, repo.AlertQuery{IncludeCleared: true}); len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

func TestEvaluateDown_OnlineIsSilent(t *testing.T) {
	n := &memNotifier{}
	m, _, c := newManager(n)
	w := site(domain.StatusActive)
	r := domain.CheckResult{Target: w.Ref(), CheckedAt: c.t, Online: true}
	if sent, _ := m.EvaluateDown(context.Background(), domain.DefaultSettings(), w, r); sent {
		t.Fatalf("online result must not alert")
	}
}

func TestEvaluateDown_AppSharesWebsiteBucket(t *testing.T) {
	n := &memNotifier{}
	m, _, c := newManager(n)
	ctx := context.Background()
	w := site(domain.StatusActive)
	app := &domain.InternalApp{ID: "a1", WebsiteID: w.ID, Name: "api", AppType: domain.AppBackend, URL: "https://api.example.com", IsActive: true, Parent: w}

	sent, err := m.EvaluateDown(ctx, domain.DefaultSettings(), app, down(app, c.t))
	if err != nil || !sent {
		t.Fatalf("app alert: sent=%v err=%v", sent, err)
	}
	if n.last.recipient != "ops@example.com" {
		t.Fatalf("app alert must go to the website's address, got %q", n.last.recipient)
	}
	if n.last.subject != "🚨 URGENT: Internal App api is DOWN" {
		t.Fatalf("unexpected subject %q", n.last.subject)
	}

	c.t = c.t.Add(time.Minute)
	sent, _ = m.EvaluateDown(ctx, domain.DefaultSettings(), w, down(w, c.t))
	if sent {
		t.Fatalf("website alert inside the app's cooldown must be suppressed")
	}
}

func TestSendAlert_NotifierFailureIsRecorded(t *testing.T) {
	n := &memNotifier{err: errors.New("smtp down")}
	m, store, _ := newManager(n)
	ctx := context.Background()

	sent, err := m.SendAlert(ctx, 5*time.Minute, Alert{WebsiteID: "w1", Type: domain.AlertDown, Recipient: "ops@example.com", Subject: "s"})
	if err != nil || !sent {
		t.Fatalf("sent=%v err=%v", sent, err)
	}
	rec, _ := store.LatestAlert(ctx, "w1", domain.AlertDown)
	if rec == nil || rec.Sent {
		t.Fatalf("expected record with Sent=false, got %+v", rec)
	}
	// the failed attempt still starts the cooldown
	if ok, _ := m.ShouldAlert(ctx, "w1", domain.AlertDown, 5*time.Minute); ok {
		t.Fatalf("failed delivery must still count toward cooldown")
	}
}

func TestSendAlert_ConcurrentSameBucketOnce(t *testing.T) {
	n := &memNotifier{}
	m, store, _ := newManager(n)
	ctx := context.Background()

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.SendAlert(ctx, time.Hour, Alert{WebsiteID: "w1", Type: domain.AlertDown})
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 || n.n.Load() != 1 {
		t.Fatalf("want exactly one alert, got wins=%d sends=%d", wins.Load(), n.n.Load())
	}
	if recs, _ := store.Alerts(ctx, repo.AlertQuery{}); len(recs) != 1 {
		t.Fatalf("want one record, got %d", len(recs))
	}
}

func TestClear_DoesNotResetCooldown(t *testing.T) {
	n := &memNotifier{}
	m, _, c := newManager(n)
	ctx := context.Background()
	w := site(domain.StatusActive)

	if sent, _ := m.EvaluateDown(ctx, domain.DefaultSettings(), w, down(w, c.t)); !sent {
		t.Fatal("expected first alert")
	}
	recs, _ := m.Recent(ctx, repo.AlertQuery{WebsiteID: w.ID})
	if len(recs) != 1 {
		t.Fatalf("expected 1 recent, got %d", len(recs))
	}
	if !strings.Contains(recs[0].Body, "https://shop.example.com") {
		t.Fatalf("body should name the URL: %q", recs[0].Body)
	}
	if err := m.Clear(ctx, recs[0].ID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := m.ClearAll(ctx, ""); n != 0 {
		t.Fatalf("nothing left to clear, got %d", n)
	}

	c.t = c.t.Add(time.Minute)
	if sent, _ := m.EvaluateDown(ctx, domain.DefaultSettings(), w, down(w, c.t)); sent {
		t.Fatalf("clearing must not reset cooldown")
	}
}
