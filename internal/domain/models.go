package domain

import (
	"fmt"
	"time"
)

type TargetID string

type TargetKind string

const (
	KindWebsite TargetKind = "website"
	KindApp     TargetKind = "app"
)

// TargetRef is the stable identity of anything we probe. Websites and
// internal apps live in separate ID spaces, so the kind is part of the key.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   TargetID   `json:"id"`
}

func (r TargetRef) String() string { return fmt.Sprintf("%s:%s", r.Kind, r.ID) }

func ParseKind(s string) (TargetKind, error) {
	switch TargetKind(s) {
	case KindWebsite, KindApp:
		return TargetKind(s), nil
	}
	return "", fmt.Errorf("unknown target kind %q", s)
}

type WebsiteStatus string

const (
	StatusActive      WebsiteStatus = "active"
	StatusInactive    WebsiteStatus = "inactive"
	StatusMaintenance WebsiteStatus = "maintenance"
)

func (s WebsiteStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance:
		return true
	}
	return false
}

type AppType string

const (
	AppBackend  AppType = "backend"
	AppLanding  AppType = "landing"
	AppAdmin    AppType = "admin"
	AppDatabase AppType = "database"
	AppOther    AppType = "other"
)

const (
	DefaultTimeoutSeconds     = 30
	DefaultExpectedStatusCode = 200
	DefaultCheckInterval      = 300
)

type Website struct {
	ID                   TargetID      `json:"id" yaml:"id"`
	Name                 string        `json:"name" yaml:"name"`
	URL                  string        `json:"url" yaml:"url"`
	Description          string        `json:"description,omitempty" yaml:"description"`
	Status               WebsiteStatus `json:"status" yaml:"status"`
	TimeoutSeconds       int           `json:"timeout_seconds" yaml:"timeout_seconds"`
	ExpectedStatusCode   int           `json:"expected_status_code" yaml:"expected_status_code"`
	CheckIntervalSeconds int           `json:"check_interval_seconds" yaml:"check_interval_seconds"`
	AlertEmail           string        `json:"alert_email" yaml:"alert_email"`
	RecoveryEmail        string        `json:"recovery_email,omitempty" yaml:"recovery_email"`
	SendRecoveryEmail    bool          `json:"send_recovery_email" yaml:"send_recovery_email"`
	CreatedAt            time.Time     `json:"created_at" yaml:"-"`
	UpdatedAt            time.Time     `json:"updated_at" yaml:"-"`
}

type InternalApp struct {
	ID                 TargetID  `json:"id" yaml:"id"`
	WebsiteID          TargetID  `json:"website_id" yaml:"-"`
	Name               string    `json:"name" yaml:"name"`
	AppType            AppType   `json:"app_type" yaml:"app_type"`
	URL                string    `json:"url" yaml:"url"`
	Description        string    `json:"description,omitempty" yaml:"description"`
	IsActive           bool      `json:"is_active" yaml:"is_active"`
	TimeoutSeconds     int       `json:"timeout_seconds" yaml:"timeout_seconds"`
	ExpectedStatusCode int       `json:"expected_status_code" yaml:"expected_status_code"`
	CreatedAt          time.Time `json:"created_at" yaml:"-"`
	UpdatedAt          time.Time `json:"updated_at" yaml:"-"`

	// Parent is a non-owning back-reference filled in by the store.
	Parent *Website `json:"-" yaml:"-"`
}

// ApplyDefaults fills zero-valued fields the way a freshly created row would.
func (w *Website) ApplyDefaults() {
	if w.Status == "" {
		w.Status = StatusActive
	}
	if w.TimeoutSeconds <= 0 {
		w.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if w.ExpectedStatusCode == 0 {
		w.ExpectedStatusCode = DefaultExpectedStatusCode
	}
	if w.CheckIntervalSeconds <= 0 {
		w.CheckIntervalSeconds = DefaultCheckInterval
	}
}

func (a *InternalApp) ApplyDefaults() {
	if a.AppType == "" {
		a.AppType = AppOther
	}
	if a.TimeoutSeconds <= 0 {
		a.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if a.ExpectedStatusCode == 0 {
		a.ExpectedStatusCode = DefaultExpectedStatusCode
	}
}

// RecoveryRecipient is where recovery mail would go.
func (w *Website) RecoveryRecipient() string {
	if w.RecoveryEmail != "" {
		return w.RecoveryEmail
	}
	return w.AlertEmail
}

type CheckResult struct {
	ID           int64     `json:"id,omitempty"`
	Target       TargetRef `json:"target"`
	WebsiteID    TargetID  `json:"website_id"`
	CheckedAt    time.Time `json:"checked_at"`
	Online       bool      `json:"online"`
	Latency      *float64  `json:"latency,omitempty"`     // seconds; nil unless the exchange completed
	StatusCode   *int      `json:"status_code,omitempty"` // nil on transport failure
	ErrorMessage string    `json:"error_message"`
	ResponseBody string    `json:"response_body,omitempty"`
}

type AlertType string

const (
	AlertDown     AlertType = "down"
	AlertRecovery AlertType = "recovery"
	AlertError    AlertType = "error"
)

type AlertRecord struct {
	ID        string    `json:"id"`
	WebsiteID TargetID  `json:"website_id"`
	Type      AlertType `json:"alert_type"`
	SentAt    time.Time `json:"sent_at"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Sent      bool      `json:"sent"`
	Cleared   bool      `json:"cleared"`
}

type Settings struct {
	MonitoringActive    bool          `json:"monitoring_active"`
	GlobalCheckInterval time.Duration `json:"global_check_interval"`
	MaxConcurrentChecks int           `json:"max_concurrent_checks"`
	AlertCooldown       time.Duration `json:"alert_cooldown"`
}

func DefaultSettings() Settings {
	return Settings{
		MonitoringActive:    true,
		GlobalCheckInterval: DefaultCheckInterval * time.Second,
		MaxConcurrentChecks: 10,
		AlertCooldown:       5 * time.Minute,
	}
}

// Normalize replaces out-of-range values with defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.GlobalCheckInterval <= 0 {
		s.GlobalCheckInterval = d.GlobalCheckInterval
	}
	if s.MaxConcurrentChecks < 1 {
		s.MaxConcurrentChecks = d.MaxConcurrentChecks
	}
	if s.AlertCooldown < 0 {
		s.AlertCooldown = d.AlertCooldown
	}
	return s
}
