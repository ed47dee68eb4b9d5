package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/logging"
	"github.com/hamed0406/healthwatch/internal/monitor"
)

// ParseSchedule accepts five-field cron expressions and descriptors such as
// "@every 5m" or "@hourly".
func ParseSchedule(spec string) (cron.Schedule, error) {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s, err := p.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return s, nil
}

// Cron fires a cycle on every schedule activation. A firing that arrives
// while the previous cycle is still running is skipped.
type Cron struct {
	Logger   *zap.Logger
	Cycles   Cycler
	Schedule cron.Schedule
	spec     string
}

func NewCron(logger *zap.Logger, c Cycler, spec string) (*Cron, error) {
	s, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &Cron{Logger: logger, Cycles: c, Schedule: s, spec: spec}, nil
}

// Run blocks until ctx is cancelled, then waits for a running cycle to finish.
func (c *Cron) Run(ctx context.Context) {
	cl := logging.NewCronLogger(c.Logger)
	cr := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id := cr.Schedule(c.Schedule, cron.FuncJob(func() { c.fire(ctx) }))

	cr.Start()
	c.Logger.Info("cron_scheduler_started",
		zap.String("schedule", c.spec),
		zap.Time("next", cr.Entry(id).Next),
	)

	<-ctx.Done()
	<-cr.Stop().Done()
	c.Logger.Info("cron_scheduler_stopped")
}

func (c *Cron) fire(ctx context.Context) {
	rep, err := c.Cycles.RunCycle(ctx)
	switch {
	case errors.Is(err, monitor.ErrCycleInProgress):
		c.Logger.Info("cron_cycle_skipped")
	case err != nil:
		c.Logger.Warn("cron_cycle_error", zap.Error(err))
	default:
		c.Logger.Info("cron_cycle_done", zap.Int("targets", rep.Targets), zap.Bool("skipped", rep.Skipped))
	}
}
