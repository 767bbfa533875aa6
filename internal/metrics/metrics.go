// Package metrics records parsing outcomes with Prometheus collectors.
//
// The CLI has no HTTP listener, so metrics are written in the text exposition
// format to a file picked up by node_exporter's textfile collector.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/card-sms-parser/internal/domain"
	"github.com/dvloznov/card-sms-parser/internal/jobs"
	"github.com/dvloznov/card-sms-parser/internal/nlu"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for message parsing.
type Metrics struct {
	registry *prometheus.Registry

	// Job outcomes
	JobsTotal    *prometheus.CounterVec
	RetriesTotal prometheus.Counter

	// Records by vendor
	RecordsTotal *prometheus.CounterVec

	// Model fallback calls
	ModelCallsTotal   *prometheus.CounterVec
	ModelCallDuration prometheus.Histogram
}

// New creates metrics on a private registry.
//
// Metrics:
//   - smsparser_jobs_total{status} - finished jobs by terminal status
//   - smsparser_job_retries_total - retries spent across all jobs
//   - smsparser_records_total{vendor} - records produced per vendor code
//   - smsparser_model_calls_total{outcome} - fallback model calls ("ok" or "error")
//   - smsparser_model_call_duration_seconds - latency of fallback model calls
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsparser_jobs_total",
				Help: "Total number of finished parse jobs",
			},
			[]string{"status"},
		),

		RetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "smsparser_job_retries_total",
				Help: "Total number of parse job retries",
			},
		),

		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsparser_records_total",
				Help: "Total number of expenditure records extracted",
			},
			[]string{"vendor"},
		),

		ModelCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsparser_model_calls_total",
				Help: "Total number of fallback model calls",
			},
			[]string{"outcome"},
		),

		ModelCallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "smsparser_model_call_duration_seconds",
				Help:    "Duration of fallback model calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveJob records a finished job.
func (m *Metrics) ObserveJob(job *jobs.ParseMessageJob) {
	if job == nil {
		return
	}
	m.JobsTotal.WithLabelValues(string(job.Status)).Inc()
	m.RetriesTotal.Add(float64(job.RetryCount))
	if job.Record != nil {
		m.ObserveRecord(job.Record)
	}
}

// ObserveRecord counts a record under its vendor code.
func (m *Metrics) ObserveRecord(record *domain.ExpenditureRecord) {
	m.RecordsTotal.WithLabelValues(record.Vendor).Inc()
}

// InstrumentGenerator wraps next so every model call is counted and timed.
func (m *Metrics) InstrumentGenerator(next nlu.Generator) nlu.Generator {
	return &instrumentedGenerator{next: next, metrics: m}
}

// WriteToTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("WriteToTextfile: %w", err)
	}
	return nil
}

type instrumentedGenerator struct {
	next    nlu.Generator
	metrics *Metrics
}

func (g *instrumentedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := g.next.Generate(ctx, prompt)
	g.metrics.ModelCallDuration.Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.metrics.ModelCallsTotal.WithLabelValues(outcome).Inc()

	return out, err
}
