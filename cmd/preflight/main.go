// cmd/preflight/main.go
package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hamed0406/healthwatch/internal/config"
	"github.com/hamed0406/healthwatch/internal/registry"
	"github.com/hamed0406/healthwatch/internal/scheduler"
	"go.uber.org/zap/zapcore"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.Load()
	ok("API_ADDR=" + cfg.Addr)

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		fail("LOG_LEVEL " + err.Error())
	}

	switch cfg.DatabaseDriver {
	case "memory":
		warn("DATABASE_DRIVER=memory; history and alerts are lost on restart.")
	case "postgres":
		if u, err := url.Parse(cfg.DatabaseURL); err != nil || u.Host == "" {
			fail("DATABASE_URL is not a usable postgres URL.")
		} else {
			ok("DATABASE_URL points at " + u.Host)
		}
	case "sqlite":
		ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		fail(fmt.Sprintf("DATABASE_DRIVER %q is not one of memory, postgres, sqlite.", cfg.DatabaseDriver))
	}

	if cfg.SMTPHost == "" {
		warn("SMTP_HOST empty; alerts are written to the log only.")
	} else {
		ok(fmt.Sprintf("SMTP %s:%d from %s", cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom))
		if cfg.SMTPUsername != "" && cfg.SMTPPassword == "" {
			warn("SMTP_USERNAME set without SMTP_PASSWORD.")
		}
	}
	if cfg.SlackWebhook != "" {
		ok("Slack webhook configured")
	}
	if len(cfg.KafkaBrokers) > 0 {
		ok("Kafka brokers " + strings.Join(cfg.KafkaBrokers, ",") + " topic " + cfg.KafkaTopic)
	}

	if _, err := scheduler.ParseSchedule(cfg.CronSchedule); err != nil {
		fail(err.Error())
	} else {
		ok("CRON_SCHEDULE=" + cfg.CronSchedule)
	}

	if cfg.TargetsFile != "" {
		data, err := os.ReadFile(cfg.TargetsFile)
		if err != nil {
			fail("TARGETS_FILE unreadable: " + err.Error())
		} else if f, err := registry.ParseFile(data); err != nil {
			fail(err.Error())
		} else {
			ok(fmt.Sprintf("TARGETS_FILE lists %d websites", len(f.Websites)))
		}
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
