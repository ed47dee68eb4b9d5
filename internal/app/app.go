// Package app assembles the services from configuration. Every binary
// builds on it so the API, the CLI and the scheduler share one wiring.
package app

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/config"
	"github.com/hamed0406/healthwatch/internal/events"
	"github.com/hamed0406/healthwatch/internal/history"
	"github.com/hamed0406/healthwatch/internal/httpapi"
	"github.com/hamed0406/healthwatch/internal/metrics"
	"github.com/hamed0406/healthwatch/internal/monitor"
	"github.com/hamed0406/healthwatch/internal/notify"
	"github.com/hamed0406/healthwatch/internal/probe"
	"github.com/hamed0406/healthwatch/internal/registry"
	"github.com/hamed0406/healthwatch/internal/repo"
	"github.com/hamed0406/healthwatch/internal/repo/memory"
	"github.com/hamed0406/healthwatch/internal/repo/postgres"
	"github.com/hamed0406/healthwatch/internal/repo/sqlite"
	"github.com/hamed0406/healthwatch/internal/tracing"
)

type App struct {
	Config   config.Config
	Log      *zap.Logger
	Store    repo.Store
	Bus      *events.Bus
	Registry *registry.Registry
	History  *history.Service
	Alerts   *alert.Manager
	Monitor  *monitor.Service
	Metrics  *metrics.Metrics
	Prom     *prometheus.Registry

	kafka         *events.KafkaSink
	traceShutdown func(context.Context) error
}

// OpenStore picks the persistence backend named by cfg.DatabaseDriver.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	switch cfg.DatabaseDriver {
	case "", "memory":
		return memory.New(), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres driver needs DATABASE_URL")
		}
		return postgres.New(ctx, cfg.DatabaseURL, log)
	case "sqlite":
		return sqlite.New(ctx, cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
}

// Notifier chains the configured transports. Without SMTP, alerts go to the log.
func Notifier(cfg config.Config, log *zap.Logger) notify.Notifier {
	var out notify.Multi
	if s := notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom); s != nil {
		out = append(out, s)
	} else {
		out = append(out, notify.Log{L: log})
	}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		out = append(out, s)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	traceShutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		traceShutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	prom := prometheus.NewRegistry()
	err = multierr.Combine(
		m.Register(prom),
		prom.Register(collectors.NewGoCollector()),
		prom.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	)
	if err != nil {
		store.Close()
		traceShutdown(ctx)
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	n := Notifier(cfg, log)
	bus := events.NewBus()
	bus.Subscribe(events.NotifyHandler{Notifier: n, Log: log})
	ks := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if ks != nil {
		bus.Subscribe(ks)
	}

	reg := registry.New(store, bus, log)
	hist := history.NewService(store)
	alerts := alert.NewManager(store, n, log)
	alerts.Metrics = m

	a := &App{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Bus:      bus,
		Registry: reg,
		History:  hist,
		Alerts:   alerts,
		Monitor: &monitor.Service{
			Registry: reg,
			Settings: store,
			History:  hist,
			Alerts:   alerts,
			Prober:   probe.NewHTTPChecker(),
			DNS:      probe.Resolver{R: net.DefaultResolver},
			Metrics:  m,
			Log:      log,
		},
		Metrics: m,
		Prom:    prom,
		kafka:   ks,

		traceShutdown: traceShutdown,
	}

	if cfg.TargetsFile != "" {
		if _, err := reg.LoadFile(ctx, cfg.TargetsFile); err != nil {
			a.Close()
			return nil, fmt.Errorf("load targets: %w", err)
		}
	}
	return a, nil
}

// Server returns the HTTP API over the app's services.
func (a *App) Server() *httpapi.Server {
	srv := httpapi.NewServer(a.Log, a.Monitor, a.Registry, a.Alerts, a.Store)
	srv.Metrics = a.Metrics
	srv.Gatherer = a.Prom
	return srv
}

func (a *App) RouterOptions() httpapi.Options {
	return httpapi.Options{
		AllowedOrigins: a.Config.AllowedOrigins,
		ManualRPM:      a.Config.ManualRPM,
		ManualBurst:    a.Config.ManualBurst,
	}
}

// Close flushes pending spans and events, then closes the store.
func (a *App) Close() error {
	var err error
	if a.kafka != nil {
		err = multierr.Append(err, a.kafka.Close())
	}
	err = multierr.Append(err, a.traceShutdown(context.Background()))
	return multierr.Append(err, a.Store.Close())
}
