package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/httpapi/middleware"
	"github.com/hamed0406/healthwatch/internal/metrics"
	"github.com/hamed0406/healthwatch/internal/monitor"
	"github.com/hamed0406/healthwatch/internal/registry"
	"github.com/hamed0406/healthwatch/internal/repo"
)

type Server struct {
	Logger   *zap.Logger
	Monitor  *monitor.Service
	Registry *registry.Registry
	Alerts   *alert.Manager
	Settings repo.SettingsStore
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics; the route is omitted when nil.
	Gatherer prometheus.Gatherer
}

// Options tune the router without touching the services behind it.
type Options struct {
	AllowedOrigins []string // empty means allow all
	ManualRPM      int      // rate limit for mutating routes, per client
	ManualBurst    int
}

func NewServer(l *zap.Logger, m *monitor.Service, reg *registry.Registry, al *alert.Manager, st repo.SettingsStore) *Server {
	return &Server{Logger: l, Monitor: m, Registry: reg, Alerts: al, Settings: st}
}

func (s *Server) Router(o Options) http.Handler {
	r := chi.NewRouter()
	if len(o.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.Trace)
	if s.Metrics != nil {
		r.Use(middleware.Metrics(s.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/targets/{kind}/{id}/stats", s.handleTargetStats)
		r.Get("/targets/{kind}/{id}/checks", s.handleTargetChecks)
		r.Get("/alerts", s.handleListAlerts)
		r.Get("/settings", s.handleGetSettings)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(o.ManualRPM, o.ManualBurst))

			r.Post("/targets/{kind}/{id}/check", s.handleCheckTarget)
			r.Post("/websites/{id}/check", s.handleCheckWebsite)
			r.Post("/cycles", s.handleRunCycle)

			r.Post("/websites", s.handleAddWebsite)
			r.Post("/websites/{id}/apps", s.handleAddApp)
			r.Delete("/websites/{id}", s.handleRemoveWebsite)
			r.Delete("/apps/{id}", s.handleRemoveApp)

			r.Post("/alerts/clear", s.handleClearAlerts)
			r.Post("/alerts/{id}/clear", s.handleClearAlert)

			r.Put("/settings", s.handlePutSettings)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Unknown errors are
// logged and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repo.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrInvalid), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, repo.ErrConflict), errors.Is(err, monitor.ErrCycleInProgress):
		status = http.StatusConflict
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
