package perf

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirrors tracker observations into Prometheus collectors.
type Metrics struct {
	gatherer       prometheus.Gatherer
	ruleDuration   *prometheus.HistogramVec
	ruleErrors     *prometheus.CounterVec
	filesProcessed prometheus.Counter
	bytesProcessed prometheus.Counter
	cacheLookups   *prometheus.CounterVec
	runDuration    prometheus.Gauge
	peakHeap       prometheus.Gauge
}

// InitPrometheusMetrics registers the collectors with reg. A nil reg gets a
// private registry.
func InitPrometheusMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		ruleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rule_duration_seconds",
				Help:      "Duration of cleanup rule executions",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"type"},
		),
		ruleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_errors_total",
				Help:      "Number of rule-level errors",
			},
			[]string{"type"},
		),
		filesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_processed_total",
				Help:      "Number of files scanned or rewritten",
			},
		),
		bytesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_processed_total",
				Help:      "Bytes read from processed files",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Parse cache lookups by result",
			},
			[]string{"result"},
		),
		runDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of the last run",
			},
		),
		peakHeap: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peak_heap_bytes",
				Help:      "Peak heap allocation observed during the run",
			},
		),
	}

	reg.MustRegister(
		m.ruleDuration,
		m.ruleErrors,
		m.filesProcessed,
		m.bytesProcessed,
		m.cacheLookups,
		m.runDuration,
		m.peakHeap,
	)

	return m
}

func (m *Metrics) recordRule(ruleType string, d time.Duration, failed bool) {
	m.ruleDuration.WithLabelValues(ruleType).Observe(d.Seconds())
	if failed {
		m.ruleErrors.WithLabelValues(ruleType).Inc()
	}
}

func (m *Metrics) recordFile(size int64, cacheHit bool) {
	m.filesProcessed.Inc()
	m.bytesProcessed.Add(float64(max(size, 0)))
	if cacheHit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// WriteTextfile writes every metric in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
