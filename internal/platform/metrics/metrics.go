package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobMetrics collects the outcome of one batch run for a Pushgateway. The
// jobs exit right after running, so nothing is ever scraped directly.
type JobMetrics struct {
	job      string
	url      string
	registry *prometheus.Registry
	started  time.Time

	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
	rowsWritten prometheus.Gauge
	alertsSent  prometheus.Gauge
}

func NewJobMetrics(job, pushgatewayURL string) *JobMetrics {
	m := &JobMetrics{
		job:      job,
		url:      pushgatewayURL,
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otpreport_job_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otpreport_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		rowsWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otpreport_rows_written",
			Help: "Sheet rows or export records written by the last run.",
		}),
		alertsSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otpreport_alerts_sent",
			Help: "Alert emails sent by the last run.",
		}),
	}
	m.registry.MustRegister(m.duration, m.lastSuccess, m.rowsWritten, m.alertsSent)
	return m
}

func (m *JobMetrics) RowsWritten(n int) {
	m.rowsWritten.Set(float64(n))
}

func (m *JobMetrics) AlertsSent(n int) {
	m.alertsSent.Set(float64(n))
}

func (m *JobMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push records the run duration and, on success, the success timestamp, then
// replaces this job's group on the Pushgateway. Without a URL it does nothing.
// A failed run keeps the previous success timestamp by pushing only the
// other gauges with Add.
func (m *JobMetrics) Push(ctx context.Context, runErr error) error {
	m.duration.Set(time.Since(m.started).Seconds())
	if m.url == "" {
		return nil
	}

	pusher := push.New(m.url, "otpreport").Grouping("job_name", m.job)
	if runErr == nil {
		m.lastSuccess.SetToCurrentTime()
		pusher = pusher.Gatherer(m.registry)
		if err := pusher.PushContext(ctx); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
		return nil
	}

	pusher = pusher.Collector(m.duration).Collector(m.rowsWritten).Collector(m.alertsSent)
	if err := pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
