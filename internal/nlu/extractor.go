package nlu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/card-sms-parser/internal/domain"
	"github.com/dvloznov/card-sms-parser/internal/extraction"
	"github.com/dvloznov/card-sms-parser/internal/logger"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the clock used for the year hint and for year-less replies.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithKnownVendors lists the vendor codes the model should prefer.
func WithKnownVendors(vendors []string) Option {
	return func(e *Extractor) {
		e.knownVendors = append([]string(nil), vendors...)
	}
}

// Extractor is the catch-all fallback: it claims every message and asks a
// language model to extract the record.
type Extractor struct {
	generator    Generator
	schema       *jsonschema.Schema
	knownVendors []string
	now          func() time.Time
}

// NewExtractor creates the fallback extractor around generator.
func NewExtractor(generator Generator, opts ...Option) (*Extractor, error) {
	if generator == nil {
		return nil, errors.New("NewExtractor: generator is required")
	}
	schema, err := compileSchema(responseSchema)
	if err != nil {
		return nil, fmt.Errorf("NewExtractor: %w", err)
	}

	e := &Extractor{
		generator: generator,
		schema:    schema,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Vendor implements extraction.VendorExtractor.
func (e *Extractor) Vendor() string {
	return domain.VendorUnknown
}

// MatchesVendor implements extraction.VendorExtractor. The fallback accepts everything.
func (e *Extractor) MatchesVendor(string) bool {
	return true
}

// Extract implements extraction.VendorExtractor. Empty text returns
// extraction.ErrEmptyInput without calling the model; every other failure is
// returned as an *extraction.FallbackExtractionError.
func (e *Extractor) Extract(ctx context.Context, text string) (*domain.ExpenditureRecord, error) {
	if text == "" {
		return nil, extraction.ErrEmptyInput
	}

	rid := uuid.NewString()
	start := time.Now()
	log := logger.FromContext(ctx).With().Str("request_id", rid).Logger()
	year := e.now().Year()

	log.Debug().Int("text_len", len(text)).Msg("Fallback extraction started")

	raw, err := e.generator.Generate(ctx, buildExtractionPrompt(text, e.knownVendors, year))
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Model call failed")
		return nil, extraction.NewFallbackError(fmt.Errorf("model call: %w", err))
	}

	clean := cleanModelJSON(raw)
	obj, err := decodeAndValidate(e.schema, []byte(clean))
	if err != nil {
		log.Error().Err(err).Str("raw", truncate(raw, maxRawInError)).Msg("Model reply rejected")
		return nil, extraction.NewFallbackError(fmt.Errorf("%w\nraw response: %s", err, truncate(raw, maxRawInError)))
	}

	record, err := transformModelOutputToRecord(obj, year)
	if err != nil {
		log.Error().Err(err).Msg("Model reply could not be mapped")
		return nil, extraction.NewFallbackError(err)
	}

	log.Info().
		Str("vendor", record.Vendor).
		Int64("amount", record.Amount).
		Dur("elapsed", time.Since(start)).
		Msg("Fallback extraction succeeded")
	return record, nil
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	// Back off to a rune boundary.
	cut := maxBytes
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}

var _ extraction.VendorExtractor = (*Extractor)(nil)
