// Package monitor runs check cycles: snapshot the registry, probe every
// eligible target on a bounded pool, record the result, evaluate alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/history"
	"github.com/hamed0406/healthwatch/internal/metrics"
	"github.com/hamed0406/healthwatch/internal/probe"
	"github.com/hamed0406/healthwatch/internal/registry"
	"github.com/hamed0406/healthwatch/internal/repo"
	"github.com/hamed0406/healthwatch/internal/tracing"
)

var ErrCycleInProgress = errors.New("check cycle already in progress")

type Service struct {
	Registry *registry.Registry
	Settings repo.SettingsStore
	History  *history.Service
	Alerts   *alert.Manager
	Prober   probe.Prober
	DNS      probe.DNSDiagnoser // optional
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Tracer   trace.Tracer // defaults to the global provider

	running atomic.Bool
}

func (s *Service) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return tracing.Tracer("healthwatch/monitor")
}

type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	// Skipped is set when monitoring is switched off.
	Skipped  bool `json:"skipped"`
	Targets  int  `json:"targets"`
	Online   int  `json:"online"`
	Offline  int  `json:"offline"`
	Alerts   int  `json:"alerts"`
	Failures int  `json:"failures"`
}

type tally struct {
	online, offline, alerts, failures atomic.Int32
}

// LoadSettings returns the stored settings, or defaults when they cannot be read.
func (s *Service) LoadSettings(ctx context.Context) domain.Settings {
	st, err := s.Settings.Settings(ctx)
	if err != nil {
		s.Log.Warn("settings_load_failed", zap.Error(err))
		return domain.DefaultSettings()
	}
	return st.Normalize()
}

// RunCycle performs one pass over all eligible targets. It is a no-op
// while monitoring is switched off.
func (s *Service) RunCycle(ctx context.Context) (CycleReport, error) {
	return s.run(ctx, false)
}

// RunCycleForced is RunCycle ignoring the monitoring switch.
func (s *Service) RunCycleForced(ctx context.Context) (CycleReport, error) {
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, force bool) (CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	ctx, span := s.tracer().Start(ctx, "monitor.cycle", trace.WithAttributes(attribute.Bool("forced", force)))
	defer span.End()

	rep := CycleReport{StartedAt: time.Now().UTC()}
	st := s.LoadSettings(ctx)
	if !st.MonitoringActive && !force {
		s.Log.Info("monitoring_disabled")
		rep.Skipped = true
		return rep, nil
	}

	snap, err := s.Registry.Snapshot(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return rep, fmt.Errorf("snapshot: %w", err)
	}
	targets := snap.Targets()
	s.Log.Info("cycle_started",
		zap.Int("websites", len(snap.Websites)),
		zap.Int("apps", len(snap.Apps)),
		zap.Int("concurrency", st.MaxConcurrentChecks),
	)

	// Started probes finish even if ctx is cancelled mid-cycle; only
	// dispatch stops.
	taskCtx := context.WithoutCancel(ctx)
	var t tally
	var g errgroup.Group
	g.SetLimit(st.MaxConcurrentChecks)
	for _, tgt := range targets {
		if ctx.Err() != nil {
			s.Log.Info("cycle_interrupted", zap.Int("dispatched", rep.Targets))
			break
		}
		tgt := tgt
		rep.Targets++
		g.Go(func() error {
			s.task(taskCtx, st, tgt, &t)
			return nil
		})
	}
	_ = g.Wait()

	rep.Duration = time.Since(rep.StartedAt)
	rep.Online = int(t.online.Load())
	rep.Offline = int(t.offline.Load())
	rep.Alerts = int(t.alerts.Load())
	rep.Failures = int(t.failures.Load())
	s.Metrics.ObserveCycle(rep.Duration, rep.Targets)
	span.SetAttributes(
		attribute.Int("targets", rep.Targets),
		attribute.Int("offline", rep.Offline),
		attribute.Int("failures", rep.Failures),
	)
	s.Log.Info("cycle_completed",
		zap.Int("targets", rep.Targets),
		zap.Int("online", rep.Online),
		zap.Int("offline", rep.Offline),
		zap.Int("alerts", rep.Alerts),
		zap.Int("failures", rep.Failures),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// task is the pool boundary: nothing a single target does may escape it.
func (s *Service) task(ctx context.Context, st domain.Settings, t domain.Target, tl *tally) {
	defer func() {
		if p := recover(); p != nil {
			tl.failures.Add(1)
			s.Log.Error("pipeline_panic",
				zap.String("target", t.Ref().String()),
				zap.String("name", t.DisplayName()),
				zap.Any("panic", p),
			)
		}
	}()

	res, alerted, err := s.pipeline(ctx, st, t)
	if res.Online {
		tl.online.Add(1)
	} else {
		tl.offline.Add(1)
	}
	if alerted {
		tl.alerts.Add(1)
	}
	if err != nil {
		tl.failures.Add(1)
		s.Log.Error("pipeline_failed",
			zap.String("target", t.Ref().String()),
			zap.String("name", t.DisplayName()),
			zap.Error(err),
		)
	}
}

// pipeline: probe, record, diagnose, alert.
func (s *Service) pipeline(ctx context.Context, st domain.Settings, t domain.Target) (res domain.CheckResult, alerted bool, err error) {
	ctx, span := s.tracer().Start(ctx, "monitor.check", trace.WithAttributes(
		attribute.String("target", t.Ref().String()),
		attribute.String("url", t.TargetURL()),
	))
	defer func() {
		span.SetAttributes(attribute.Bool("online", res.Online), attribute.Bool("alerted", alerted))
		tracing.RecordError(span, err)
		span.End()
	}()

	res = s.Prober.Probe(ctx, t)
	res.Target = t.Ref()
	if w := t.OwnerWebsite(); w != nil {
		res.WebsiteID = w.ID
	}
	s.Metrics.ObserveProbe(res)

	if err := s.History.Record(ctx, &res); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Removed while the cycle was in flight; nothing left to alert on.
			s.Log.Info("target_removed_mid_check", zap.String("target", res.Target.String()))
			return res, false, nil
		}
		return res, false, err
	}
	s.Log.Debug("check_recorded",
		zap.String("target", res.Target.String()),
		zap.String("url", t.TargetURL()),
		zap.Bool("online", res.Online),
		zap.String("error", res.ErrorMessage),
	)

	if res.ErrorMessage == probe.ConnectionErrorMessage && s.DNS != nil {
		d := s.DNS.Diagnose(ctx, t.TargetURL())
		s.Log.Info("dns_diagnosis",
			zap.String("target", res.Target.String()),
			zap.String("domain", d.Domain),
			zap.String("class", string(d.Class)),
			zap.String("resolver_error", d.ResolverError),
		)
		span.AddEvent("dns_diagnosis", trace.WithAttributes(
			attribute.String("domain", d.Domain),
			attribute.String("class", string(d.Class)),
		))
	}

	alerted, err = s.Alerts.EvaluateDown(ctx, st, t, res)
	if err != nil {
		return res, false, fmt.Errorf("evaluate alert: %w", err)
	}
	return res, alerted, nil
}

// CheckTarget probes one target right away, outside any cycle. It ignores
// the monitoring switch but alert suppression and cooldown still apply.
func (s *Service) CheckTarget(ctx context.Context, ref domain.TargetRef) (domain.CheckResult, error) {
	t, err := s.Registry.Resolve(ctx, ref)
	if err != nil {
		return domain.CheckResult{}, err
	}
	st := s.LoadSettings(ctx)
	res, alerted, err := s.pipeline(context.WithoutCancel(ctx), st, t)
	s.Log.Info("manual_check",
		zap.String("target", ref.String()),
		zap.Bool("online", res.Online),
		zap.Bool("alerted", alerted),
	)
	return res, err
}

// CheckWebsite checks a website and then each of its active internal apps.
func (s *Service) CheckWebsite(ctx context.Context, id domain.TargetID) ([]domain.CheckResult, error) {
	ref := domain.TargetRef{Kind: domain.KindWebsite, ID: id}
	first, err := s.CheckTarget(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := []domain.CheckResult{first}
	apps, err := s.Registry.AppsOf(ctx, id)
	if err != nil {
		return out, fmt.Errorf("apps of %s: %w", id, err)
	}
	for _, a := range apps {
		if !a.IsActive {
			continue
		}
		r, err := s.CheckTarget(ctx, a.Ref())
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}
