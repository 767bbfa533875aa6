package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/card-sms-parser/internal/config"
	"github.com/dvloznov/card-sms-parser/internal/domain"
	"github.com/dvloznov/card-sms-parser/internal/extraction"
	"github.com/dvloznov/card-sms-parser/internal/jobs"
	"github.com/dvloznov/card-sms-parser/internal/jobs/inmemory"
	"github.com/dvloznov/card-sms-parser/internal/logger"
	"github.com/dvloznov/card-sms-parser/internal/metrics"
	"github.com/dvloznov/card-sms-parser/internal/nlu"
	"github.com/dvloznov/card-sms-parser/internal/source"
)

// batchLine is one JSON line of batch output.
type batchLine struct {
	MessageID string                    `json:"message_id"`
	Status    jobs.JobStatus            `json:"status"`
	Record    *domain.ExpenditureRecord `json:"record,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

// batchSummary counts batch outcomes.
type batchSummary struct {
	Total     int
	Completed int
	Failed    int
}

// newGenerator returns the rate-limited Gemini generator, or DisabledGenerator
// when no model credentials are configured. Calls are instrumented when m is set.
func newGenerator(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (nlu.Generator, error) {
	if !cfg.FallbackEnabled() {
		log := logger.FromContext(ctx)
		log.Warn().Msg("No model credentials configured, fallback extraction disabled")
		return nlu.DisabledGenerator{}, nil
	}

	gen, err := nlu.NewGeminiGenerator(ctx, nlu.GeminiConfig{
		APIKey:   cfg.Gemini.APIKey,
		Model:    cfg.Gemini.Model,
		Backend:  cfg.Gemini.Backend,
		Project:  cfg.Gemini.Project,
		Location: cfg.Gemini.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("newGenerator: %w", err)
	}

	var out nlu.Generator = nlu.NewRateLimitedGenerator(gen, cfg.Gemini.RequestsPerSecond, cfg.Gemini.Burst)
	if m != nil {
		out = m.InstrumentGenerator(out)
	}
	return out, nil
}

// newManager wires the vendor rules and the model fallback around one clock.
func newManager(clock func() time.Time, gen nlu.Generator) (*extraction.Manager, error) {
	rules := extraction.DefaultExtractors(extraction.WithClock(clock))

	vendors := make([]string, 0, len(rules))
	for _, r := range rules {
		vendors = append(vendors, r.Vendor())
	}

	fallback, err := nlu.NewExtractor(gen, nlu.WithClock(clock), nlu.WithKnownVendors(vendors))
	if err != nil {
		return nil, fmt.Errorf("newManager: %w", err)
	}

	return extraction.NewManager(fallback, rules...)
}

// buildManager creates the manager described by cfg. m may be nil.
func buildManager(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*extraction.Manager, error) {
	clock, err := cfg.Clock()
	if err != nil {
		return nil, err
	}

	gen, err := newGenerator(ctx, cfg, m)
	if err != nil {
		return nil, err
	}

	return newManager(clock, gen)
}

// parseHandler runs each job's text through the manager and attaches the record.
// Failures no retry can fix are marked permanent.
func parseHandler(mgr *extraction.Manager) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseMessageJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		record, err := mgr.Parse(ctx, parseJob.Text)
		if err != nil {
			if errors.Is(err, extraction.ErrEmptyInput) || errors.Is(err, nlu.ErrFallbackDisabled) {
				return jobs.Permanent(err)
			}
			return err
		}

		parseJob.Record = record
		return nil
	}
}

// runBatch parses messages through the in-memory worker pool and returns the
// finished jobs in input order.
func runBatch(ctx context.Context, mgr *extraction.Manager, messages []source.Message, cfg config.WorkerConfig, opts ...inmemory.QueueOption) ([]*jobs.ParseMessageJob, error) {
	store := inmemory.NewStore()
	opts = append([]inmemory.QueueOption{inmemory.WithWorkerCount(cfg.Count)}, opts...)
	queue := inmemory.NewQueue(cfg.QueueSize, store, opts...)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := queue.Start(workerCtx, parseHandler(mgr)); err != nil {
		return nil, fmt.Errorf("runBatch: starting workers: %w", err)
	}
	defer func() {
		_ = queue.Close()
	}()

	for _, msg := range messages {
		job := &jobs.ParseMessageJob{
			MessageID:  msg.ID,
			Text:       msg.Text,
			MaxRetries: cfg.MaxRetries,
		}
		if err := queue.PublishParseMessage(ctx, job); err != nil {
			return nil, fmt.Errorf("runBatch: publishing %s: %w", msg.ID, err)
		}
	}

	if err := queue.Wait(ctx); err != nil {
		return nil, fmt.Errorf("runBatch: waiting for jobs: %w", err)
	}

	finished, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		return nil, fmt.Errorf("runBatch: listing jobs: %w", err)
	}
	return finished, nil
}

// writeBatch prints one JSON line per job and returns the outcome counts.
func writeBatch(w io.Writer, finished []*jobs.ParseMessageJob) (batchSummary, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var summary batchSummary
	for _, job := range finished {
		summary.Total++
		switch job.Status {
		case jobs.JobStatusCompleted:
			summary.Completed++
		case jobs.JobStatusFailed:
			summary.Failed++
		}

		line := batchLine{
			MessageID: job.MessageID,
			Status:    job.Status,
			Record:    job.Record,
			Error:     job.Error,
		}
		if err := enc.Encode(line); err != nil {
			return summary, fmt.Errorf("writeBatch: %w", err)
		}
	}
	return summary, nil
}

// writeRecord prints a single record as indented JSON.
func writeRecord(w io.Writer, record *domain.ExpenditureRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
