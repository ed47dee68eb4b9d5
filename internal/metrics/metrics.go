// Package metrics exposes probe, alert, cycle and HTTP collectors.
// All Observe methods are safe on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/hamed0406/healthwatch/internal/domain"
)

type Metrics struct {
	Probes        *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec
	Alerts        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	CycleTargets  prometheus.Gauge

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthwatch_probes_total",
				Help: "Number of probes by target kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthwatch_probe_duration_seconds",
				Help:    "Latency of completed probes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthwatch_alerts_total",
				Help: "Alert records written, by type and delivery result",
			},
			[]string{"type", "sent"},
		),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthwatch_cycle_duration_seconds",
			Help:    "Wall time of a full check cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		CycleTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthwatch_cycle_targets",
			Help: "Targets dispatched in the last cycle",
		}),
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthwatch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthwatch_http_request_duration_seconds",
				Help:    "Histogram of response durations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
}

func (m *Metrics) Register(r prometheus.Registerer) error {
	var err error
	for _, c := range []prometheus.Collector{
		m.Probes, m.ProbeDuration, m.Alerts, m.CycleDuration, m.CycleTargets,
		m.RequestCount, m.RequestDuration,
	} {
		err = multierr.Append(err, r.Register(c))
	}
	return err
}

func (m *Metrics) ObserveProbe(r domain.CheckResult) {
	if m == nil {
		return
	}
	outcome := "online"
	if !r.Online {
		outcome = "offline"
	}
	kind := string(r.Target.Kind)
	m.Probes.WithLabelValues(kind, outcome).Inc()
	if r.Latency != nil {
		m.ProbeDuration.WithLabelValues(kind).Observe(*r.Latency)
	}
}

func (m *Metrics) ObserveAlert(t domain.AlertType, sent bool) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(string(t), strconv.FormatBool(sent)).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration, targets int) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
	m.CycleTargets.Set(float64(targets))
}

func (m *Metrics) ObserveRequest(path, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(path, method).Observe(d.Seconds())
}
