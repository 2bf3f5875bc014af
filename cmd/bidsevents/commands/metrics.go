package commands

import (
	"context"

	"bidsevents/internal/metrics"
	"bidsevents/internal/metrics/datadog"
	"bidsevents/internal/metrics/prompush"
)

// startMetrics installs the configured metrics backend and registers its
// shutdown. A backend that fails to initialize leaves metrics disabled; a
// run never fails because of metrics.
func (a *app) startMetrics(ctx context.Context) {
	mc := a.cfg.Metrics
	job := mc.Job
	if job == "" {
		job = "bidsevents"
	}

	switch mc.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(job, mc.PushgatewayURL)
		if err != nil {
			a.log.Warnw("metrics: failed to init prom push backend; using nop", "error", err)
			return
		}
		a.log.Infow("metrics enabled", "backend", mc.Backend, "url", mc.PushgatewayURL, "job", job)
		metrics.SetBackend(b)
		a.onClose(func() {
			if err := metrics.Flush(); err != nil {
				a.log.Warnw("metrics: flush error", "error", err)
			}
			metrics.SetBackend(nil)
		})

	case "datadog":
		// Tags may arrive as one comma-separated env value or as a list.
		var tags []string
		for _, t := range mc.Tags {
			tags = append(tags, datadog.ParseTagsCSV(t)...)
		}
		tags = append(tags, "dataset:"+a.cfg.Dataset.Name)

		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: mc.FlushEvery,
		})
		if err != nil {
			a.log.Warnw("metrics: failed to init datadog backend; using nop", "error", err)
			return
		}
		a.log.Infow("metrics enabled", "backend", mc.Backend, "job", job, "tags", tags)
		metrics.SetBackend(b)
		a.onClose(func() {
			// Close stops the periodic loop, then submits what is left.
			if err := b.Close(); err != nil {
				a.log.Warnw("metrics: datadog close/flush error", "error", err)
			}
			metrics.SetBackend(nil)
		})

	case "", "none":
		a.log.Debugw("metrics disabled", "backend", mc.Backend)

	default:
		a.log.Warnw("metrics: unknown backend; metrics disabled", "backend", mc.Backend)
	}
}
