package rollout

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records rollout progress. A nil *Metrics records nothing.
type Metrics struct {
	hostsTotal    *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	failures      prometheus.Gauge
	aborted       prometheus.Gauge
	lastRun       prometheus.Gauge
}

// NewMetrics creates the rollout metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hvroll",
				Subsystem: "rollout",
				Name:      "hosts_total",
				Help:      "Hosts processed by outcome",
			},
			[]string{"outcome"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hvroll",
				Subsystem: "rollout",
				Name:      "phase_duration_seconds",
				Help:      "Duration of each host phase in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"phase", "result"},
		),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hvroll",
			Subsystem: "rollout",
			Name:      "failures",
			Help:      "Failed hosts in the current rollout",
		}),
		aborted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hvroll",
			Subsystem: "rollout",
			Name:      "aborted",
			Help:      "Whether the rollout was aborted (1) or not (0)",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hvroll",
			Subsystem: "rollout",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last rollout finished",
		}),
	}
	reg.MustRegister(m.hostsTotal, m.phaseDuration, m.failures, m.aborted, m.lastRun)
	return m
}

func (m *Metrics) observePhase(phase string, start time.Time, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.phaseDuration.WithLabelValues(phase, result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) recordOutcome(o Outcome, failures int) {
	if m == nil {
		return
	}
	m.hostsTotal.WithLabelValues(o.Kind.String()).Inc()
	m.failures.Set(float64(failures))
}

func (m *Metrics) recordFinish(r *Report) {
	if m == nil {
		return
	}
	if r.Aborted {
		m.aborted.Set(1)
	} else {
		m.aborted.Set(0)
	}
	m.failures.Set(float64(r.Failures))
	m.lastRun.Set(float64(r.Finished.Unix()))
}
