package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/healthwatch/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Ports (interfaces). memory, postgres and sqlite adapters implement all of them.

// TargetStore returns internal apps with Parent populated.
type TargetStore interface {
	SaveWebsite(ctx context.Context, w *domain.Website) error
	SaveApp(ctx context.Context, a *domain.InternalApp) error
	Website(ctx context.Context, id domain.TargetID) (*domain.Website, error)
	App(ctx context.Context, id domain.TargetID) (*domain.InternalApp, error)
	Websites(ctx context.Context) ([]*domain.Website, error)
	Apps(ctx context.Context) ([]*domain.InternalApp, error)
	// DeleteWebsite cascades to its apps, their history, and its alert log.
	DeleteWebsite(ctx context.Context, id domain.TargetID) error
	DeleteApp(ctx context.Context, id domain.TargetID) error
}

// HistoryStore keeps at most HistoryCapacity results per target.
type HistoryStore interface {
	Record(ctx context.Context, r *domain.CheckResult) error
	// Recent returns up to n results, newest first.
	Recent(ctx context.Context, ref domain.TargetRef, n int) ([]domain.CheckResult, error)
}

const HistoryCapacity = 20

type AlertQuery struct {
	WebsiteID      domain.TargetID // empty means all websites
	Type           domain.AlertType
	Since          time.Time // zero means no lower bound
	IncludeCleared bool
	Limit          int
}

type AlertStore interface {
	// LatestAlert returns nil, nil if there's no record yet.
	LatestAlert(ctx context.Context, websiteID domain.TargetID, t domain.AlertType) (*domain.AlertRecord, error)
	InsertAlert(ctx context.Context, a *domain.AlertRecord) error
	// Alerts returns matching records, newest first.
	Alerts(ctx context.Context, q AlertQuery) ([]domain.AlertRecord, error)
	ClearAlert(ctx context.Context, id string) error
	// ClearAlerts marks every uncleared alert (of one website, if given) cleared.
	ClearAlerts(ctx context.Context, websiteID domain.TargetID) (int, error)
}

type SettingsStore interface {
	// Settings returns the singleton, creating it with defaults on first access.
	Settings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) error
}

type Store interface {
	TargetStore
	HistoryStore
	AlertStore
	SettingsStore
	Close() error
}
