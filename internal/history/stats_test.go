package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/history"
	"github.com/hamed0406/healthwatch/internal/repo/memory"
)

// External package: repo/memory imports history.

var ref = domain.TargetRef{Kind: domain.KindWebsite, ID: "w1"}

func lat(v float64) *float64 { return &v }

func TestUptimePercentage(t *testing.T) {
	cases := []struct {
		name   string
		online []bool
		want   float64
	}{
		{"empty", nil, 0},
		{"all up", []bool{true, true}, 100},
		{"all down", []bool{false, false, false}, 0},
		{"two thirds", []bool{true, true, false}, 66.67},
		{"one third", []bool{true, false, false}, 33.33},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rs []domain.CheckResult
			for _, o := range tc.online {
				rs = append(rs, domain.CheckResult{Online: o})
			}
			got := history.UptimePercentage(rs)
			if got != tc.want {
				t.Fatalf("want %v got %v", tc.want, got)
			}
			if got < 0 || got > 100 {
				t.Fatalf("out of range: %v", got)
			}
		})
	}
}

func TestAverageLatency_IgnoresOfflineAndMissing(t *testing.T) {
	rs := []domain.CheckResult{
		{Online: true, Latency: lat(0.1)},
		{Online: true, Latency: lat(0.3)},
		{Online: false, Latency: lat(9)},
		{Online: true},
	}
	if got := history.AverageLatency(rs); history.Round(got, 3) != 0.2 {
		t.Fatalf("want 0.2 got %v", got)
	}
	if got := history.AverageLatency([]domain.CheckResult{{Online: false}}); got != 0 {
		t.Fatalf("want 0 got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	if s := history.Summarize(nil); s.Status != history.StatusUnknown || s.LastCheckTime != nil {
		t.Fatalf("unexpected empty summary: %+v", s)
	}
	newest := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rs := []domain.CheckResult{
		{Online: false, CheckedAt: newest},
		{Online: true, CheckedAt: newest.Add(-time.Minute), Latency: lat(0.12345)},
	}
	s := history.Summarize(rs)
	if s.Status != history.StatusOffline || s.TotalChecks != 2 || s.OnlineChecks != 1 || s.OfflineChecks != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.UptimePercentage != 50 || s.AvgResponseTime != 0.123 {
		t.Fatalf("unexpected figures: %+v", s)
	}
	if !s.LastCheckTime.Equal(newest) {
		t.Fatalf("unexpected last check: %v", s.LastCheckTime)
	}
}

func TestService_OverMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.SaveWebsite(ctx, &domain.Website{ID: ref.ID, Name: "Shop", URL: "https://example.com"}); err != nil {
		t.Fatalf("SaveWebsite: %v", err)
	}
	svc := history.NewService(store)

	online, err := svc.IsOnline(ctx, ref)
	if err != nil || online {
		t.Fatalf("never-checked target must not be online: %v %v", online, err)
	}
	if r, _ := svc.Latest(ctx, ref); r != nil {
		t.Fatalf("expected nil latest, got %+v", r)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		r := &domain.CheckResult{Target: ref, CheckedAt: base.Add(time.Duration(i) * time.Minute), Online: i >= 15}
		if err := svc.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	// window holds minutes 10..29: five down, fifteen up
	up, _ := svc.UptimePercentage(ctx, ref)
	if up != 75 {
		t.Fatalf("want 75 got %v", up)
	}
	rs, _ := svc.Recent(ctx, ref, 50)
	if len(rs) != 20 {
		t.Fatalf("Recent must cap at 20, got %d", len(rs))
	}
	online, _ = svc.IsOnline(ctx, ref)
	if !online {
		t.Fatalf("expected online")
	}
	st, _ := svc.Stats(ctx, ref)
	if st.Status != history.StatusOnline || st.TotalChecks != 20 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
