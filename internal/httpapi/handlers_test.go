package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/history"
	"github.com/hamed0406/healthwatch/internal/metrics"
	"github.com/hamed0406/healthwatch/internal/monitor"
	"github.com/hamed0406/healthwatch/internal/registry"
	"github.com/hamed0406/healthwatch/internal/repo/memory"
)

// ---- test helpers ----

// fakeProber reports any URL containing "down" as unreachable.
type fakeProber struct{}

func (fakeProber) Probe(_ context.Context, t domain.Target) domain.CheckResult {
	r := domain.CheckResult{Target: t.Ref(), CheckedAt: time.Now().UTC(), Online: true}
	if strings.Contains(t.TargetURL(), "down") {
		r.Online = false
		r.ErrorMessage = "connection error"
		return r
	}
	code, lat := 200, 0.05
	r.StatusCode, r.Latency = &code, &lat
	return r
}

type countNotifier struct{ n atomic.Int32 }

func (c *countNotifier) Send(context.Context, string, string, string) error {
	c.n.Add(1)
	return nil
}

type fixture struct {
	ts       *httptest.Server
	store    *memory.Store
	notifier *countNotifier
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	n := &countNotifier{}
	m := metrics.New()
	gatherer := prometheus.NewRegistry()
	if err := m.Register(gatherer); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	reg := registry.New(store, nil, log)
	alerts := alert.NewManager(store, n, log)
	mon := &monitor.Service{
		Registry: reg,
		Settings: store,
		History:  history.NewService(store),
		Alerts:   alerts,
		Prober:   fakeProber{},
		Metrics:  m,
		Log:      log,
	}
	srv := NewServer(log, mon, reg, alerts, store)
	srv.Metrics = m
	srv.Gatherer = gatherer

	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(Options{ManualRPM: 10_000, ManualBurst: 10_000}))
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: store, notifier: n}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req, _ := http.NewRequest(method, f.ts.URL+path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func (f *fixture) addWebsite(t *testing.T, name, url string) domain.Website {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/websites",
		`{"name":"`+name+`","url":"`+url+`","alert_email":"ops@example.com"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add website: want 201, got %d", resp.StatusCode)
	}
	var w domain.Website
	decodeBody(t, resp, &w)
	return w
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/healthz", "")
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(b) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, b)
	}
}

func TestAddWebsite_DefaultsAndValidation(t *testing.T) {
	f := setup(t)
	w := f.addWebsite(t, "shop", "https://shop.example.com")
	if w.ID == "" || w.Status != domain.StatusActive || w.TimeoutSeconds != 30 || w.ExpectedStatusCode != 200 {
		t.Fatalf("defaults not applied: %+v", w)
	}

	resp := f.do(t, http.MethodPost, "/api/websites", `{"name":"bad","url":"ftp://nope"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid url: want 400, got %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodPost, "/api/websites", `{"name":"x","url":"https://x.example.com","bogus":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: want 400, got %d", resp.StatusCode)
	}
}

func TestAddApp_UnknownWebsite(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodPost, "/api/websites/missing/apps", `{"name":"api","url":"https://api.example.com"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func TestManualCheck_StatsAndChecks(t *testing.T) {
	f := setup(t)
	w := f.addWebsite(t, "shop", "https://shop.example.com")

	resp := f.do(t, http.MethodPost, "/api/websites/"+string(w.ID)+"/apps",
		`{"name":"api","app_type":"backend","url":"https://down.example.com","is_active":true}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add app: want 201, got %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/websites/"+string(w.ID)+"/check", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check website: want 200, got %d", resp.StatusCode)
	}
	var out struct {
		Results []domain.CheckResult `json:"results"`
	}
	decodeBody(t, resp, &out)
	if len(out.Results) != 2 || !out.Results[0].Online || out.Results[1].Online {
		t.Fatalf("unexpected results: %+v", out.Results)
	}
	if f.notifier.n.Load() != 1 {
		t.Fatalf("want one down alert for the app, got %d", f.notifier.n.Load())
	}

	resp = f.do(t, http.MethodPost, "/api/targets/website/"+string(w.ID)+"/check", "")
	var cr checkResponse
	decodeBody(t, resp, &cr)
	if cr.Status != history.StatusOnline {
		t.Fatalf("want online, got %q", cr.Status)
	}

	resp = f.do(t, http.MethodGet, "/api/targets/website/"+string(w.ID)+"/stats", "")
	var st history.TargetStats
	decodeBody(t, resp, &st)
	if st.TotalChecks != 2 || st.UptimePercentage != 100 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	resp = f.do(t, http.MethodGet, "/api/targets/website/"+string(w.ID)+"/checks?limit=1", "")
	var rs []domain.CheckResult
	decodeBody(t, resp, &rs)
	if len(rs) != 1 {
		t.Fatalf("want 1 check, got %d", len(rs))
	}
}

func TestTargetRoutes_Errors(t *testing.T) {
	f := setup(t)
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/targets/server/x/stats", http.StatusBadRequest},
		{http.MethodGet, "/api/targets/website/nope/stats", http.StatusNotFound},
		{http.MethodPost, "/api/targets/app/nope/check", http.StatusNotFound},
		{http.MethodGet, "/api/targets/website/nope/checks?limit=0", http.StatusBadRequest},
		{http.MethodDelete, "/api/websites/nope", http.StatusNotFound},
		{http.MethodDelete, "/api/apps/nope", http.StatusNotFound},
		{http.MethodPost, "/api/alerts/nope/clear", http.StatusNotFound},
		{http.MethodGet, "/api/alerts?since=yesterday", http.StatusBadRequest},
	}
	for _, c := range cases {
		resp := f.do(t, c.method, c.path, "")
		if resp.StatusCode != c.want {
			t.Errorf("%s %s: want %d, got %d", c.method, c.path, c.want, resp.StatusCode)
		}
	}
}

func TestAlerts_ListAndClear(t *testing.T) {
	f := setup(t)
	w := f.addWebsite(t, "broken", "https://down.example.com")
	f.do(t, http.MethodPost, "/api/targets/website/"+string(w.ID)+"/check", "")

	resp := f.do(t, http.MethodGet, "/api/alerts?website_id="+string(w.ID), "")
	var as []domain.AlertRecord
	decodeBody(t, resp, &as)
	if len(as) != 1 || as[0].Type != domain.AlertDown || !as[0].Sent {
		t.Fatalf("unexpected alerts: %+v", as)
	}

	resp = f.do(t, http.MethodPost, "/api/alerts/"+as[0].ID+"/clear", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear: want 204, got %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodGet, "/api/alerts", "")
	decodeBody(t, resp, &as)
	if len(as) != 0 {
		t.Fatalf("cleared alert still listed: %+v", as)
	}
	resp = f.do(t, http.MethodGet, "/api/alerts?include_cleared=true", "")
	decodeBody(t, resp, &as)
	if len(as) != 1 {
		t.Fatalf("include_cleared: want 1, got %d", len(as))
	}

	// cooldown still holds after clearing
	f.do(t, http.MethodPost, "/api/targets/website/"+string(w.ID)+"/check", "")
	if f.notifier.n.Load() != 1 {
		t.Fatalf("clearing must not reset cooldown, sent %d", f.notifier.n.Load())
	}

	resp = f.do(t, http.MethodPost, "/api/alerts/clear", "")
	var cleared map[string]int
	decodeBody(t, resp, &cleared)
	if cleared["cleared"] != 0 {
		t.Fatalf("nothing left to clear, got %d", cleared["cleared"])
	}
}

func TestSettings_GetPut(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodGet, "/api/settings", "")
	var p settingsPayload
	decodeBody(t, resp, &p)
	if !*p.MonitoringActive || *p.CheckIntervalSeconds != 300 || *p.MaxConcurrentChecks != 10 || *p.AlertCooldownSeconds != 300 {
		t.Fatalf("unexpected defaults: %+v", p)
	}

	resp = f.do(t, http.MethodPut, "/api/settings", `{"monitoring_active":false,"alert_cooldown_seconds":60}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put: want 200, got %d", resp.StatusCode)
	}
	st, err := f.store.Settings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.MonitoringActive || st.AlertCooldown != time.Minute || st.MaxConcurrentChecks != 10 {
		t.Fatalf("settings not merged: %+v", st)
	}

	resp = f.do(t, http.MethodPut, "/api/settings", `{"max_concurrent_checks":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero workers: want 400, got %d", resp.StatusCode)
	}
}

func TestCycleAndStatus(t *testing.T) {
	f := setup(t)
	f.addWebsite(t, "up", "https://up.example.com")
	f.addWebsite(t, "broken", "https://down.example.com")

	resp := f.do(t, http.MethodPost, "/api/cycles", "")
	var rep monitor.CycleReport
	decodeBody(t, resp, &rep)
	if rep.Targets != 2 || rep.Online != 1 || rep.Offline != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	resp = f.do(t, http.MethodGet, "/api/status", "")
	var sr statusResponse
	decodeBody(t, resp, &sr)
	if sr.Stats.TotalWebsites != 2 || sr.Stats.OnlineWebsites != 1 || len(sr.Websites) != 2 {
		t.Fatalf("unexpected status: %+v", sr)
	}

	resp = f.do(t, http.MethodGet, "/metrics", "")
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "healthwatch_http_requests_total") {
		t.Fatalf("request metrics missing from /metrics")
	}
}

func TestRemoveWebsite(t *testing.T) {
	f := setup(t)
	w := f.addWebsite(t, "gone", "https://gone.example.com")
	resp := f.do(t, http.MethodDelete, "/api/websites/"+string(w.ID), "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodGet, "/api/targets/website/"+string(w.ID)+"/stats", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 after removal, got %d", resp.StatusCode)
	}
}
