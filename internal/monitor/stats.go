package monitor

import (
	"context"
	"fmt"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/history"
)

type GlobalStats struct {
	TotalWebsites       int     `json:"total_websites"`
	OnlineWebsites      int     `json:"online_websites"`
	OfflineWebsites     int     `json:"offline_websites"`
	TotalInternalApps   int     `json:"total_internal_apps"`
	OnlineInternalApps  int     `json:"online_internal_apps"`
	OfflineInternalApps int     `json:"offline_internal_apps"`
	TotalTargets        int     `json:"total_targets"`
	OnlineTargets       int     `json:"online_targets"`
	OfflineTargets      int     `json:"offline_targets"`
	OverallUptime       float64 `json:"overall_uptime"`
}

// WebsiteSummary is one row of the status overview.
type WebsiteSummary struct {
	Website *domain.Website     `json:"website"`
	Stats   history.TargetStats `json:"stats"`
	Apps    []AppSummary        `json:"apps"`
}

type AppSummary struct {
	App   *domain.InternalApp `json:"app"`
	Stats history.TargetStats `json:"stats"`
}

// GlobalStats counts eligible targets. A target without history counts as
// offline. OverallUptime is the mean uptime of the eligible websites.
func (s *Service) GlobalStats(ctx context.Context) (GlobalStats, error) {
	snap, err := s.Registry.Snapshot(ctx)
	if err != nil {
		return GlobalStats{}, fmt.Errorf("snapshot: %w", err)
	}
	var g GlobalStats
	var uptimeSum float64
	for _, w := range snap.Websites {
		st, err := s.History.Stats(ctx, w.Ref())
		if err != nil {
			return GlobalStats{}, err
		}
		g.TotalWebsites++
		if st.Status == history.StatusOnline {
			g.OnlineWebsites++
		}
		uptimeSum += st.UptimePercentage
	}
	for _, a := range snap.Apps {
		online, err := s.History.IsOnline(ctx, a.Ref())
		if err != nil {
			return GlobalStats{}, err
		}
		g.TotalInternalApps++
		if online {
			g.OnlineInternalApps++
		}
	}
	g.OfflineWebsites = g.TotalWebsites - g.OnlineWebsites
	g.OfflineInternalApps = g.TotalInternalApps - g.OnlineInternalApps
	g.TotalTargets = g.TotalWebsites + g.TotalInternalApps
	g.OnlineTargets = g.OnlineWebsites + g.OnlineInternalApps
	g.OfflineTargets = g.TotalTargets - g.OnlineTargets
	if g.TotalWebsites > 0 {
		g.OverallUptime = history.Round(uptimeSum/float64(g.TotalWebsites), 2)
	}
	return g, nil
}

// TargetStats summarizes one target's history. The target must exist.
func (s *Service) TargetStats(ctx context.Context, ref domain.TargetRef) (history.TargetStats, error) {
	if _, err := s.Registry.Resolve(ctx, ref); err != nil {
		return history.TargetStats{}, err
	}
	return s.History.Stats(ctx, ref)
}

// Recent returns up to n results for an existing target, newest first.
func (s *Service) Recent(ctx context.Context, ref domain.TargetRef, n int) ([]domain.CheckResult, error) {
	if _, err := s.Registry.Resolve(ctx, ref); err != nil {
		return nil, err
	}
	return s.History.Recent(ctx, ref, n)
}

// Overview lists every website (eligible or not) with its apps and stats.
func (s *Service) Overview(ctx context.Context) ([]WebsiteSummary, error) {
	ws, err := s.Registry.Websites(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WebsiteSummary, 0, len(ws))
	for _, w := range ws {
		st, err := s.History.Stats(ctx, w.Ref())
		if err != nil {
			return nil, err
		}
		apps, err := s.Registry.AppsOf(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		sum := WebsiteSummary{Website: w, Stats: st, Apps: make([]AppSummary, 0, len(apps))}
		for _, a := range apps {
			ast, err := s.History.Stats(ctx, a.Ref())
			if err != nil {
				return nil, err
			}
			sum.Apps = append(sum.Apps, AppSummary{App: a, Stats: ast})
		}
		out = append(out, sum)
	}
	return out, nil
}
