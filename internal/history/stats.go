package history

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)

type TargetStats struct {
	TotalChecks      int        `json:"total_checks"`
	OnlineChecks     int        `json:"online_checks"`
	OfflineChecks    int        `json:"offline_checks"`
	UptimePercentage float64    `json:"uptime_percentage"`
	AvgResponseTime  float64    `json:"avg_response_time"`
	LastCheckTime    *time.Time `json:"last_check_time"`
	Status           string     `json:"status"`
}

// Service answers history questions on top of a HistoryStore.
type Service struct {
	Store repo.HistoryStore
}

func NewService(s repo.HistoryStore) *Service { return &Service{Store: s} }

func (s *Service) Record(ctx context.Context, r *domain.CheckResult) error {
	if err := s.Store.Record(ctx, r); err != nil {
		return fmt.Errorf("record %s: %w", r.Target, err)
	}
	return nil
}

func (s *Service) Recent(ctx context.Context, ref domain.TargetRef, n int) ([]domain.CheckResult, error) {
	if n <= 0 || n > repo.HistoryCapacity {
		n = repo.HistoryCapacity
	}
	return s.Store.Recent(ctx, ref, n)
}

// Latest returns nil, nil for a target that was never checked.
func (s *Service) Latest(ctx context.Context, ref domain.TargetRef) (*domain.CheckResult, error) {
	rs, err := s.Store.Recent(ctx, ref, 1)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

// IsOnline is false for a target without history; callers that need
// "unknown" must check Latest for nil themselves.
func (s *Service) IsOnline(ctx context.Context, ref domain.TargetRef) (bool, error) {
	r, err := s.Latest(ctx, ref)
	if err != nil || r == nil {
		return false, err
	}
	return r.Online, nil
}

func (s *Service) UptimePercentage(ctx context.Context, ref domain.TargetRef) (float64, error) {
	rs, err := s.Recent(ctx, ref, repo.HistoryCapacity)
	if err != nil {
		return 0, err
	}
	return UptimePercentage(rs), nil
}

func (s *Service) AverageLatency(ctx context.Context, ref domain.TargetRef) (float64, error) {
	rs, err := s.Recent(ctx, ref, repo.HistoryCapacity)
	if err != nil {
		return 0, err
	}
	return AverageLatency(rs), nil
}

func (s *Service) Stats(ctx context.Context, ref domain.TargetRef) (TargetStats, error) {
	rs, err := s.Recent(ctx, ref, repo.HistoryCapacity)
	if err != nil {
		return TargetStats{}, err
	}
	return Summarize(rs), nil
}

// UptimePercentage is 100*online/total rounded to 2 decimals, 0 when empty.
func UptimePercentage(rs []domain.CheckResult) float64 {
	if len(rs) == 0 {
		return 0
	}
	online := 0
	for _, r := range rs {
		if r.Online {
			online++
		}
	}
	return Round(100*float64(online)/float64(len(rs)), 2)
}

// AverageLatency averages online entries that carry a latency; 0 if none.
func AverageLatency(rs []domain.CheckResult) float64 {
	var sum float64
	n := 0
	for _, r := range rs {
		if r.Online && r.Latency != nil {
			sum += *r.Latency
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Summarize expects rs newest first.
func Summarize(rs []domain.CheckResult) TargetStats {
	if len(rs) == 0 {
		return TargetStats{Status: StatusUnknown}
	}
	online := 0
	for _, r := range rs {
		if r.Online {
			online++
		}
	}
	last := rs[0].CheckedAt
	status := StatusOffline
	if rs[0].Online {
		status = StatusOnline
	}
	return TargetStats{
		TotalChecks:      len(rs),
		OnlineChecks:     online,
		OfflineChecks:    len(rs) - online,
		UptimePercentage: UptimePercentage(rs),
		AvgResponseTime:  Round(AverageLatency(rs), 3),
		LastCheckTime:    &last,
		Status:           status,
	}
}

func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
