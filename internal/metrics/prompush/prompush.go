// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package.
//
// A CLI run is a batch job, which Prometheus cannot scrape, so collected
// series are pushed to a Pushgateway on Flush. Each Push replaces the job's
// previous group.
package prompush

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"bidsevents/internal/errors"
	"bidsevents/internal/metrics"
)

// Backend implements metrics.Backend on a private registry.
type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	files    *prometheus.CounterVec
	issues   *prometheus.CounterVec
}

// NewBackend registers the bidsevents collectors and targets gatewayURL
// under job.
//
// Errors:
//   - Empty job or gatewayURL.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if job == "" {
		return nil, errors.New("prompush: job name is required")
	}
	if gatewayURL == "" {
		return nil, errors.New("prompush: pushgateway url is required")
	}

	b := &Backend{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step runs by outcome.",
		}, []string{"step", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline step wall time.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 9),
		}, []string{"step", "status"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.FilesTotal,
			Help: "Files seen by outcome kind.",
		}, []string{"kind"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.IssuesTotal,
			Help: "Validation issues by severity.",
		}, []string{"severity"}),
	}
	b.reg.MustRegister(b.steps, b.duration, b.files, b.issues)
	b.pusher = push.New(gatewayURL, job).Gatherer(b.reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.FilesTotal:
		b.files.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.IssuesTotal:
		b.issues.WithLabelValues(labels["severity"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || value < 0 {
		return
	}
	b.duration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes every collected series to the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return errors.Wrap(err, "prompush: push")
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
