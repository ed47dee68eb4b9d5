package domain

import (
	"testing"
	"time"
)

func TestInternalApp_EligibleRequiresActiveParent(t *testing.T) {
	cases := []struct {
		name   string
		active bool
		parent *Website
		want   bool
	}{
		{"active app, active parent", true, &Website{Status: StatusActive}, true},
		{"active app, inactive parent", true, &Website{Status: StatusInactive}, false},
		{"active app, maintenance parent", true, &Website{Status: StatusMaintenance}, false},
		{"inactive app, active parent", false, &Website{Status: StatusActive}, false},
		{"no parent loaded", true, nil, false},
	}
	for _, c := range cases {
		app := &InternalApp{IsActive: c.active, Parent: c.parent}
		if got := app.Eligible(); got != c.want {
			t.Fatalf("%s: Eligible()=%v want %v", c.name, got, c.want)
		}
	}
}

func TestWebsite_EligibleOnlyWhenActive(t *testing.T) {
	for _, s := range []WebsiteStatus{StatusActive, StatusInactive, StatusMaintenance} {
		w := &Website{Status: s}
		if got := w.Eligible(); got != (s == StatusActive) {
			t.Fatalf("status %s: Eligible()=%v", s, got)
		}
	}
}

func TestTarget_DefaultsWhenUnset(t *testing.T) {
	w := &Website{}
	if w.Timeout() != 30*time.Second || w.ExpectedStatus() != 200 {
		t.Fatalf("unexpected defaults: timeout=%v status=%d", w.Timeout(), w.ExpectedStatus())
	}
	app := &InternalApp{TimeoutSeconds: 3, ExpectedStatusCode: 204}
	if app.Timeout() != 3*time.Second || app.TimeoutSecs() != 3 || app.ExpectedStatus() != 204 {
		t.Fatalf("unexpected app values: %v %d", app.Timeout(), app.ExpectedStatus())
	}
}

func TestSettings_NormalizeKeepsValidValues(t *testing.T) {
	s := Settings{MonitoringActive: false, MaxConcurrentChecks: 0, AlertCooldown: -1}.Normalize()
	if s.MonitoringActive {
		t.Fatalf("MonitoringActive must be preserved")
	}
	if s.MaxConcurrentChecks != 10 || s.AlertCooldown != 5*time.Minute || s.GlobalCheckInterval != 300*time.Second {
		t.Fatalf("defaults not applied: %+v", s)
	}
}

func TestRef_String(t *testing.T) {
	r := TargetRef{Kind: KindApp, ID: "abc"}
	if r.String() != "app:abc" {
		t.Fatalf("got %q", r.String())
	}
	if _, err := ParseKind("server"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
