// Package metrics counts evaluation outcomes and exports them in the
// node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/user/hostcomply/pkg/compliance"
)

// Recorder holds the engine collectors on a private registry. A nil
// *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	errors      *prometheus.CounterVec
	skipped     prometheus.Counter
	duration    *prometheus.HistogramVec
	lastRun     prometheus.Gauge
}

// NewRecorder creates and registers the collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostcomply",
			Name:      "evaluations_total",
			Help:      "Resources evaluated, by action and verdict.",
		}, []string{"action", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostcomply",
			Name:      "errors_total",
			Help:      "Resources that could not be evaluated, by error kind.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostcomply",
			Name:      "skipped_total",
			Help:      "Resources not applicable to this host.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hostcomply",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating a resource.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"procedure"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostcomply",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished session.",
		}),
	}
	r.registry.MustRegister(r.evaluations, r.errors, r.skipped, r.duration, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Evaluated(action compliance.Action, status compliance.Status, procedure string, took time.Duration) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(action.String(), status.String()).Inc()
	r.duration.WithLabelValues(procedure).Observe(took.Seconds())
}

func (r *Recorder) Failed(err error) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(compliance.KindOf(err).String()).Inc()
}

func (r *Recorder) Skipped() {
	if r == nil {
		return
	}
	r.skipped.Inc()
}

// Finished stamps the end of a session.
func (r *Recorder) Finished(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path for the node exporter textfile
// collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
