// Package scheduler triggers monitor cycles: Loop for the always-on
// process, Cron for calendar-style schedules.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/monitor"
)

// Cycler runs one check cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (monitor.CycleReport, error)
}

// Loop runs cycles back to back on a fixed period. Cycles run on the
// caller's goroutine, so a tick that fires during a long cycle is dropped.
type Loop struct {
	Logger   *zap.Logger
	Cycles   Cycler
	Interval time.Duration
}

func NewLoop(logger *zap.Logger, c Cycler, interval time.Duration) *Loop {
	if interval < 0 {
		interval = 0
	}
	return &Loop{Logger: logger, Cycles: c, Interval: interval}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	if l.Interval == 0 {
		l.Logger.Info("loop_disabled")
		return
	}
	t := time.NewTicker(l.Interval)
	defer t.Stop()

	l.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.Logger.Info("loop_stopped")
			return
		case <-t.C:
			l.runOnce(ctx)
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	if _, err := l.Cycles.RunCycle(ctx); err != nil {
		if errors.Is(err, monitor.ErrCycleInProgress) {
			l.Logger.Info("loop_cycle_skipped")
			return
		}
		l.Logger.Warn("loop_cycle_error", zap.Error(err))
	}
}
