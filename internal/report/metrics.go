package report

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are counters derived from Results. Every value can be explained
// by looking at individual invocation records.
type Metrics struct {
	started   *prometheus.CounterVec
	finished  *prometheus.CounterVec
	exitCodes *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	cache     *prometheus.CounterVec
	peakRSS   *prometheus.GaugeVec
}

// Registry holds the toolshim metrics; /metrics serves it.
var Registry = prometheus.NewRegistry()

var globalMetrics = NewMetrics(Registry)

// Global returns global metrics instance
func Global() *Metrics {
	return globalMetrics
}

// NewMetrics creates the metric set and registers it on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshim_invocations_started_total",
				Help: "Guarded invocations started, by runner mode",
			},
			[]string{"mode"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshim_invocations_total",
				Help: "Guarded invocations finished, by runner mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		exitCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshim_intercepted_exits_total",
				Help: "Intercepted termination requests by tool and exit code",
			},
			[]string{"tool", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolshim_invocation_duration_seconds",
				Help:    "Wall time of guarded invocations",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"mode"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolshim_invocations_in_flight",
				Help: "Invocations currently holding the process-wide guard",
			},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshim_entry_cache_lookups_total",
				Help: "Entry-point cache lookups by result (hit, miss, load)",
			},
			[]string{"result"},
		),
		peakRSS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toolshim_tool_peak_rss_bytes",
				Help: "Peak resident memory of the last child process per tool",
			},
			[]string{"tool"},
		),
	}

	reg.MustRegister(m.started, m.finished, m.exitCodes, m.duration, m.inFlight, m.cache, m.peakRSS)
	return m
}

// IncrStarted records an invocation entering the guarded section
func (m *Metrics) IncrStarted(mode Mode) {
	m.started.WithLabelValues(string(mode)).Inc()
	m.inFlight.Inc()
}

// RecordResult updates counters from a finished Result.
// This is the only way finished-invocation metrics change.
func (m *Metrics) RecordResult(r *Result) {
	m.inFlight.Dec()
	m.finished.WithLabelValues(string(r.Mode), string(r.Outcome)).Inc()
	m.duration.WithLabelValues(string(r.Mode)).Observe(r.Duration.Seconds())
	if r.Intercepted {
		m.exitCodes.WithLabelValues(r.Tool, strconv.Itoa(r.ExitCode)).Inc()
	}
}

// ObserveCache counts an entry-point cache lookup
func (m *Metrics) ObserveCache(result string) {
	m.cache.WithLabelValues(result).Inc()
}

// ObservePeakRSS records the peak memory of a tool's child process
func (m *Metrics) ObservePeakRSS(tool string, bytes uint64) {
	m.peakRSS.WithLabelValues(tool).Set(float64(bytes))
}
