// Package metrics exposes engine metrics as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lotcost/internal/domain/costing"
)

const namespace = "lotcost"

// Compile-time check that Recorder implements costing.Recorder.
var _ costing.Recorder = (*Recorder)(nil)

// Recorder implements costing.Recorder on Prometheus collectors.
type Recorder struct {
	consumptions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	estimates    *prometheus.CounterVec
	retries      *prometheus.CounterVec
	pruned       prometheus.Counter
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		consumptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumptions_total",
			Help:      "Consumption calls by costing method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consumption_duration_seconds",
			Help:      "Consumption latency including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method"}),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_total",
			Help:      "Cost estimates by costing method and outcome.",
		}, []string{"method", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Retries after a concurrent modification.",
		}, []string{"operation"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_lots_total",
			Help:      "Exhausted lots deleted after consumption.",
		}),
	}

	for _, c := range []prometheus.Collector{r.consumptions, r.duration, r.estimates, r.retries, r.pruned} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveConsumption implements costing.Recorder.
func (r *Recorder) ObserveConsumption(method, outcome string, elapsed time.Duration) {
	r.consumptions.WithLabelValues(method, outcome).Inc()
	r.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveEstimate implements costing.Recorder.
func (r *Recorder) ObserveEstimate(method, outcome string) {
	r.estimates.WithLabelValues(method, outcome).Inc()
}

// IncRetry implements costing.Recorder.
func (r *Recorder) IncRetry(operation string) {
	r.retries.WithLabelValues(operation).Inc()
}

// AddPruned implements costing.Recorder.
func (r *Recorder) AddPruned(n int64) {
	if n > 0 {
		r.pruned.Add(float64(n))
	}
}
