package domain

import "time"

// Target is the capability shared by websites and internal apps.
type Target interface {
	Ref() TargetRef
	DisplayName() string
	TargetURL() string
	Timeout() time.Duration
	TimeoutSecs() int
	ExpectedStatus() int
	// Eligible reports whether the target may be probed and alerted on.
	Eligible() bool
	// OwnerWebsite is the website whose alert settings and cooldown apply.
	OwnerWebsite() *Website
}

var (
	_ Target = (*Website)(nil)
	_ Target = (*InternalApp)(nil)
)

func (w *Website) Ref() TargetRef         { return TargetRef{Kind: KindWebsite, ID: w.ID} }
func (w *Website) DisplayName() string    { return w.Name }
func (w *Website) TargetURL() string      { return w.URL }
func (w *Website) Timeout() time.Duration { return seconds(w.TimeoutSeconds) }
func (w *Website) TimeoutSecs() int       { return orDefault(w.TimeoutSeconds, DefaultTimeoutSeconds) }
func (w *Website) ExpectedStatus() int    { return orDefault(w.ExpectedStatusCode, DefaultExpectedStatusCode) }
func (w *Website) Eligible() bool         { return w.Status == StatusActive }
func (w *Website) OwnerWebsite() *Website { return w }

func (a *InternalApp) Ref() TargetRef      { return TargetRef{Kind: KindApp, ID: a.ID} }
func (a *InternalApp) DisplayName() string { return a.Name }
func (a *InternalApp) TargetURL() string   { return a.URL }
func (a *InternalApp) Timeout() time.Duration {
	return seconds(a.TimeoutSeconds)
}
func (a *InternalApp) TimeoutSecs() int {
	return orDefault(a.TimeoutSeconds, DefaultTimeoutSeconds)
}
func (a *InternalApp) ExpectedStatus() int {
	return orDefault(a.ExpectedStatusCode, DefaultExpectedStatusCode)
}

// Eligible requires both the app's own flag and an active parent website.
func (a *InternalApp) Eligible() bool {
	return a.IsActive && a.Parent != nil && a.Parent.Status == StatusActive
}

func (a *InternalApp) OwnerWebsite() *Website { return a.Parent }

func seconds(n int) time.Duration {
	return time.Duration(orDefault(n, DefaultTimeoutSeconds)) * time.Second
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
