package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
)

func TestMemoryStore_SaveAndListTargets(t *testing.T) {
	ctx := context.Background()
	s := New()

	w := &domain.Website{Name: "Shop", URL: "https://example.com", Status: domain.StatusActive}
	if err := s.SaveWebsite(ctx, w); err != nil {
		t.Fatalf("SaveWebsite: %v", err)
	}
	if w.ID == "" {
		t.Fatalf("expected website ID to be set")
	}

	a := &domain.InternalApp{WebsiteID: w.ID, Name: "api", URL: "https://api.example.com", IsActive: true}
	if err := s.SaveApp(ctx, a); err != nil {
		t.Fatalf("SaveApp: %v", err)
	}

	apps, err := s.Apps(ctx)
	if err != nil {
		t.Fatalf("Apps: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 app, got %d", len(apps))
	}
	if apps[0].Parent == nil || apps[0].Parent.ID != w.ID {
		t.Fatalf("expected parent to be populated, got %+v", apps[0].Parent)
	}
}

func TestMemoryStore_SaveAppUnknownWebsite(t *testing.T) {
	s := New()
	err := s.SaveApp(context.Background(), &domain.InternalApp{WebsiteID: "nope", Name: "x"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_HistoryBounded(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := &domain.Website{ID: "w1", Name: "Shop", URL: "https://example.com", Status: domain.StatusActive}
	if err := s.SaveWebsite(ctx, w); err != nil {
		t.Fatalf("SaveWebsite: %v", err)
	}
	ref := w.Ref()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		r := &domain.CheckResult{Target: ref, CheckedAt: base.Add(time.Duration(i) * time.Minute), Online: true}
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, ref, 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != repo.HistoryCapacity {
		t.Fatalf("expected %d entries, got %d", repo.HistoryCapacity, len(got))
	}
	if !got[0].CheckedAt.Equal(base.Add(24 * time.Minute)) {
		t.Fatalf("newest entry wrong: %v", got[0].CheckedAt)
	}
	if !got[19].CheckedAt.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("oldest retained entry wrong: %v", got[19].CheckedAt)
	}
}

func TestMemoryStore_DeleteWebsiteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := &domain.Website{Name: "Shop", URL: "https://example.com", Status: domain.StatusActive}
	_ = s.SaveWebsite(ctx, w)
	a := &domain.InternalApp{WebsiteID: w.ID, Name: "api", URL: "https://api.example.com", IsActive: true}
	_ = s.SaveApp(ctx, a)

	_ = s.Record(ctx, &domain.CheckResult{Target: a.Ref(), WebsiteID: w.ID, CheckedAt: time.Now()})
	_ = s.Record(ctx, &domain.CheckResult{Target: w.Ref(), WebsiteID: w.ID, CheckedAt: time.Now()})
	_ = s.InsertAlert(ctx, &domain.AlertRecord{WebsiteID: w.ID, Type: domain.AlertDown, SentAt: time.Now()})

	if err := s.DeleteWebsite(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWebsite: %v", err)
	}
	if _, err := s.App(ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected app gone, got %v", err)
	}
	if rs, _ := s.Recent(ctx, a.Ref(), 20); len(rs) != 0 {
		t.Fatalf("expected app history gone, got %d", len(rs))
	}
	if rs, _ := s.Recent(ctx, w.Ref(), 20); len(rs) != 0 {
		t.Fatalf("expected website history gone, got %d", len(rs))
	}
	if al, _ := s.LatestAlert(ctx, w.ID, domain.AlertDown); al != nil {
		t.Fatalf("expected alerts gone, got %+v", al)
	}
}

func TestMemoryStore_AlertsQueryAndClear(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	_ = s.InsertAlert(ctx, &domain.AlertRecord{WebsiteID: "w1", Type: domain.AlertDown, SentAt: now.Add(-2 * time.Hour)})
	_ = s.InsertAlert(ctx, &domain.AlertRecord{WebsiteID: "w1", Type: domain.AlertDown, SentAt: now})
	_ = s.InsertAlert(ctx, &domain.AlertRecord{WebsiteID: "w2", Type: domain.AlertDown, SentAt: now})

	latest, err := s.LatestAlert(ctx, "w1", domain.AlertDown)
	if err != nil || latest == nil || !latest.SentAt.Equal(now) {
		t.Fatalf("unexpected latest: %+v err=%v", latest, err)
	}

	recent, _ := s.Alerts(ctx, repo.AlertQuery{Since: now.Add(-time.Hour)})
	if len(recent) != 2 {
		t.Fatalf("expected 2 alerts in the last hour, got %d", len(recent))
	}

	n, err := s.ClearAlerts(ctx, "w1")
	if err != nil || n != 2 {
		t.Fatalf("ClearAlerts: n=%d err=%v", n, err)
	}
	left, _ := s.Alerts(ctx, repo.AlertQuery{})
	if len(left) != 1 || left[0].WebsiteID != "w2" {
		t.Fatalf("expected only w2 uncleared, got %+v", left)
	}
	all, _ := s.Alerts(ctx, repo.AlertQuery{IncludeCleared: true})
	if len(all) != 3 {
		t.Fatalf("expected 3 with cleared, got %d", len(all))
	}

	if err := s.ClearAlert(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_SettingsGetOrCreate(t *testing.T) {
	ctx := context.Background()
	s := New()
	got, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if got != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", got)
	}
	got.MonitoringActive = false
	if err := s.SaveSettings(ctx, got); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	again, _ := s.Settings(ctx)
	if again.MonitoringActive {
		t.Fatalf("expected monitoring inactive after save")
	}
}

func TestMemoryStore_RecordAfterDeleteIsRefused(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := &domain.Website{Name: "Shop", URL: "https://example.com", Status: domain.StatusActive}
	_ = s.SaveWebsite(ctx, w)
	a := &domain.InternalApp{WebsiteID: w.ID, Name: "api", URL: "https://api.example.com", IsActive: true}
	_ = s.SaveApp(ctx, a)

	if err := s.DeleteWebsite(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWebsite: %v", err)
	}
	for _, ref := range []domain.TargetRef{w.Ref(), a.Ref()} {
		err := s.Record(ctx, &domain.CheckResult{Target: ref, WebsiteID: w.ID, CheckedAt: time.Now()})
		if !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", ref, err)
		}
		if rs, _ := s.Recent(ctx, ref, 20); len(rs) != 0 {
			t.Fatalf("%s: late write left %d entries", ref, len(rs))
		}
	}
}
