package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/history"
	"github.com/hamed0406/healthwatch/internal/monitor"
	"github.com/hamed0406/healthwatch/internal/repo"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errBadRequest)...)
}

func targetRef(r *http.Request) (domain.TargetRef, error) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return domain.TargetRef{}, badRequest("%v", err)
	}
	return domain.TargetRef{Kind: kind, ID: domain.TargetID(chi.URLParam(r, "id"))}, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("payload: %v", err)
	}
	return nil
}

type statusResponse struct {
	Stats    monitor.GlobalStats      `json:"stats"`
	Websites []monitor.WebsiteSummary `json:"websites"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	gs, err := s.Monitor.GlobalStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.Monitor.Overview(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Stats: gs, Websites: ws})
}

func (s *Server) handleTargetStats(w http.ResponseWriter, r *http.Request) {
	ref, err := targetRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.Monitor.TargetStats(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTargetChecks(w http.ResponseWriter, r *http.Request) {
	ref, err := targetRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n := repo.HistoryCapacity
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err = strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, badRequest("limit %q", v))
			return
		}
	}
	rs, err := s.Monitor.Recent(r.Context(), ref, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rs == nil {
		rs = []domain.CheckResult{}
	}
	writeJSON(w, http.StatusOK, rs)
}

type checkResponse struct {
	Result domain.CheckResult `json:"result"`
	Status string             `json:"status"`
}

func (s *Server) handleCheckTarget(w http.ResponseWriter, r *http.Request) {
	ref, err := targetRef(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Monitor.CheckTarget(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := history.StatusOffline
	if res.Online {
		status = history.StatusOnline
	}
	writeJSON(w, http.StatusOK, checkResponse{Result: res, Status: status})
}

func (s *Server) handleCheckWebsite(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	rs, err := s.Monitor.CheckWebsite(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": rs})
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	run := s.Monitor.RunCycle
	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
		run = s.Monitor.RunCycleForced
	}
	rep, err := run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAddWebsite(w http.ResponseWriter, r *http.Request) {
	var ws domain.Website
	if err := decode(r, &ws); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Registry.AddWebsite(r.Context(), &ws); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleAddApp(w http.ResponseWriter, r *http.Request) {
	websiteID := domain.TargetID(chi.URLParam(r, "id"))
	if _, err := s.Registry.Resolve(r.Context(), domain.TargetRef{Kind: domain.KindWebsite, ID: websiteID}); err != nil {
		s.writeError(w, r, err)
		return
	}
	var a domain.InternalApp
	if err := decode(r, &a); err != nil {
		s.writeError(w, r, err)
		return
	}
	a.WebsiteID = websiteID
	if err := s.Registry.AddApp(r.Context(), &a); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleRemoveWebsite(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.RemoveWebsite(r.Context(), domain.TargetID(chi.URLParam(r, "id"))); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveApp(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.RemoveApp(r.Context(), domain.TargetID(chi.URLParam(r, "id"))); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const defaultAlertLimit = 100

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	q := repo.AlertQuery{
		WebsiteID: domain.TargetID(qv.Get("website_id")),
		Type:      domain.AlertType(qv.Get("type")),
		Limit:     defaultAlertLimit,
	}
	if v := qv.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, badRequest("since %q", v))
			return
		}
		q.Since = t
	}
	if v := qv.Get("include_cleared"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, badRequest("include_cleared %q", v))
			return
		}
		q.IncludeCleared = b
	}
	if v := qv.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, badRequest("limit %q", v))
			return
		}
		q.Limit = n
	}
	as, err := s.Alerts.Recent(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if as == nil {
		as = []domain.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, as)
}

func (s *Server) handleClearAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.Alerts.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	n, err := s.Alerts.ClearAll(r.Context(), domain.TargetID(r.URL.Query().Get("website_id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

// settingsPayload speaks whole seconds on the wire. Absent fields keep
// their stored value.
type settingsPayload struct {
	MonitoringActive     *bool `json:"monitoring_active,omitempty"`
	CheckIntervalSeconds *int  `json:"global_check_interval_seconds,omitempty"`
	MaxConcurrentChecks  *int  `json:"max_concurrent_checks,omitempty"`
	AlertCooldownSeconds *int  `json:"alert_cooldown_seconds,omitempty"`
}

func toPayload(st domain.Settings) settingsPayload {
	active := st.MonitoringActive
	interval := int(st.GlobalCheckInterval / time.Second)
	workers := st.MaxConcurrentChecks
	cooldown := int(st.AlertCooldown / time.Second)
	return settingsPayload{
		MonitoringActive:     &active,
		CheckIntervalSeconds: &interval,
		MaxConcurrentChecks:  &workers,
		AlertCooldownSeconds: &cooldown,
	}
}

func (p settingsPayload) apply(st domain.Settings) (domain.Settings, error) {
	if p.MonitoringActive != nil {
		st.MonitoringActive = *p.MonitoringActive
	}
	if p.CheckIntervalSeconds != nil {
		if *p.CheckIntervalSeconds < 1 {
			return st, badRequest("global_check_interval_seconds must be positive")
		}
		st.GlobalCheckInterval = time.Duration(*p.CheckIntervalSeconds) * time.Second
	}
	if p.MaxConcurrentChecks != nil {
		if *p.MaxConcurrentChecks < 1 {
			return st, badRequest("max_concurrent_checks must be at least 1")
		}
		st.MaxConcurrentChecks = *p.MaxConcurrentChecks
	}
	if p.AlertCooldownSeconds != nil {
		if *p.AlertCooldownSeconds < 0 {
			return st, badRequest("alert_cooldown_seconds must not be negative")
		}
		st.AlertCooldown = time.Duration(*p.AlertCooldownSeconds) * time.Second
	}
	return st, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.Settings.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(st))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var p settingsPayload
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	cur, err := s.Settings.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	next, err := p.apply(cur)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Settings.SaveSettings(r.Context(), next); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("settings_updated",
		zap.Bool("monitoring_active", next.MonitoringActive),
		zap.Duration("global_check_interval", next.GlobalCheckInterval),
		zap.Int("max_concurrent_checks", next.MaxConcurrentChecks),
		zap.Duration("alert_cooldown", next.AlertCooldown),
	)
	writeJSON(w, http.StatusOK, toPayload(next))
}
