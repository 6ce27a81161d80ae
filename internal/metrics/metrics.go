// Package metrics exports run results in the Prometheus text format so a CI
// node exporter can pick them up from a textfile directory.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// Metrics holds the collectors for one process. Each instance owns its
// registry, so tests and concurrent runs never share series.
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Signals      *prometheus.GaugeVec
	LastSuccess  *prometheus.GaugeVec
	LastRunTime  *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tripwire",
				Subsystem: "run",
				Name:      "total",
				Help:      "Total number of flow runs by scenario and verdict",
			},
			[]string{"scenario", "result"},
		),
		Steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tripwire",
				Subsystem: "step",
				Name:      "total",
				Help:      "Total number of executed steps by action and result",
			},
			[]string{"scenario", "action", "result"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tripwire",
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Step execution time in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"scenario", "action"},
		),
		Signals: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tripwire",
				Subsystem: "signal",
				Name:      "count",
				Help:      "Runtime signals seen in the last run, before (raw) and after (effective) tolerance",
			},
			[]string{"scenario", "category", "stage"},
		),
		LastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tripwire",
				Subsystem: "run",
				Name:      "last_success",
				Help:      "1 if the last run of the scenario passed, 0 otherwise",
			},
			[]string{"scenario"},
		),
		LastRunTime: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tripwire",
				Subsystem: "run",
				Name:      "last_timestamp_seconds",
				Help:      "Unix time of the last run of the scenario",
			},
			[]string{"scenario"},
		),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one finished run.
func (m *Metrics) Observe(s *schemas.RunSummary) {
	if s == nil {
		return
	}
	scenario := s.Name

	m.Runs.WithLabelValues(scenario, result(s.Success)).Inc()
	for _, o := range s.Steps {
		action := string(o.Step.Kind())
		m.Steps.WithLabelValues(scenario, action, result(o.Success)).Inc()
		m.StepDuration.WithLabelValues(scenario, action).Observe(o.Duration.Seconds())
	}
	for _, c := range schemas.Categories {
		count := s.Counts[c]
		m.Signals.WithLabelValues(scenario, string(c), "raw").Set(float64(count.Raw))
		m.Signals.WithLabelValues(scenario, string(c), "effective").Set(float64(count.Effective))
	}

	success := 0.0
	if s.Success {
		success = 1
	}
	m.LastSuccess.WithLabelValues(scenario).Set(success)
	m.LastRunTime.WithLabelValues(scenario).Set(float64(s.Timestamp.Unix()))
}

// WriteTextfile atomically writes every series to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

func result(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}
