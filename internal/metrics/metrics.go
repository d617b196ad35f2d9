// Package metrics exports conversion events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alnah/go-docconv"
)

const namespace = "docconv"

// Compile-time interface check.
var _ docconv.Recorder = (*Recorder)(nil)

// Recorder turns engine events into counters and a duration histogram.
type Recorder struct {
	reg *prometheus.Registry

	jobs        *prometheus.CounterVec
	wins        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	outputBytes *prometheus.HistogramVec
}

// New creates a Recorder with its own registry. Process and Go runtime
// collectors are registered alongside the conversion metrics.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total number of completed conversion jobs",
			},
			[]string{"class", "success"},
		),
		wins: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_wins_total",
				Help:      "Successful conversions per strategy",
			},
			[]string{"class", "strategy"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_failures_total",
				Help:      "Failed conversions per error kind",
			},
			[]string{"class", "kind"},
		),
		// 10ms to ~163s
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Conversion duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
			},
			[]string{"class"},
		),
		// 1KiB to 256MiB
		outputBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "output_bytes",
				Help:      "Artifact size in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"class"},
		),
	}
}

// Record updates the metrics for one event. It never fails.
func (r *Recorder) Record(_ context.Context, ev docconv.Event) error {
	class := string(ev.Class)
	r.jobs.WithLabelValues(class, strconv.FormatBool(ev.Success)).Inc()
	r.duration.WithLabelValues(class).Observe(ev.Elapsed.Seconds())

	if ev.Success {
		r.wins.WithLabelValues(class, ev.Strategy).Inc()
		r.outputBytes.WithLabelValues(class).Observe(float64(ev.OutputBytes))
		return nil
	}
	r.failures.WithLabelValues(class, string(ev.ErrorKind)).Inc()
	return nil
}

// Registry returns the registry backing r, for registering extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// RegisterGauges exposes live engine state read from stats at scrape time.
func (r *Recorder) RegisterGauges(stats func() docconv.Stats) {
	gauge := func(name, help string, value func(docconv.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return value(stats()) },
		)
	}
	r.reg.MustRegister(
		gauge("gate_size", "Configured concurrent conversion slots",
			func(s docconv.Stats) float64 { return float64(s.GateSize) }),
		gauge("gate_in_flight", "Conversions currently holding a slot",
			func(s docconv.Stats) float64 { return float64(s.GateInFlight) }),
		gauge("gate_waiting", "Jobs waiting for a slot",
			func(s docconv.Stats) float64 { return float64(s.GateWaiting) }),
		gauge("active_workspaces", "Workspaces not yet released",
			func(s docconv.Stats) float64 { return float64(s.ActiveWorkspaces) }),
		gauge("events_dropped", "Statistics events dropped on a full buffer",
			func(s docconv.Stats) float64 { return float64(s.EventsDropped) }),
	)
}
