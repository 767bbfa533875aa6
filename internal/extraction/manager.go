package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/card-sms-parser/internal/domain"
	"github.com/dvloznov/card-sms-parser/internal/logger"
)

// Manager picks the extractor for a message and falls back to the NLU
// extractor when no rule applies. The registry is read-only after
// construction, so a Manager is safe for concurrent use without locking.
type Manager struct {
	extractors []VendorExtractor
	fallback   VendorExtractor
}

// NewManager registers extractors in probing order plus exactly one fallback.
func NewManager(fallback VendorExtractor, extractors ...VendorExtractor) (*Manager, error) {
	if fallback == nil {
		return nil, errors.New("NewManager: fallback extractor is required")
	}

	seen := make(map[string]bool, len(extractors))
	registered := make([]VendorExtractor, 0, len(extractors))
	for i, ex := range extractors {
		if ex == nil {
			return nil, fmt.Errorf("NewManager: extractor %d is nil", i)
		}
		vendor := ex.Vendor()
		if seen[vendor] {
			return nil, fmt.Errorf("NewManager: vendor %q registered twice", vendor)
		}
		seen[vendor] = true
		registered = append(registered, ex)
	}

	return &Manager{
		extractors: registered,
		fallback:   fallback,
	}, nil
}

// Vendors returns the registered vendor codes in probing order.
func (m *Manager) Vendors() []string {
	out := make([]string, 0, len(m.extractors))
	for _, ex := range m.extractors {
		out = append(out, ex.Vendor())
	}
	return out
}

// MatchingVendors returns every registered vendor whose predicate accepts text.
// Parse only ever consults the first of them.
func (m *Manager) MatchingVendors(text string) []string {
	var out []string
	for _, ex := range m.extractors {
		if ex.MatchesVendor(text) {
			out = append(out, ex.Vendor())
		}
	}
	return out
}

// Parse extracts an expenditure record from a raw SMS body.
//
// The first extractor whose predicate matches gets exactly one attempt. If it
// reports an *ExtractionError no other rule is tried and the fallback takes
// over. Errors of any other kind from a rule-based extractor are wrapped and
// returned. Only ErrEmptyInput, a *FallbackExtractionError or such an unexpected
// error ever reach the caller.
func (m *Manager) Parse(ctx context.Context, text string) (*domain.ExpenditureRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	log := logger.FromContext(ctx)

	for _, ex := range m.extractors {
		if !ex.MatchesVendor(text) {
			continue
		}

		vendor := ex.Vendor()
		record, err := ex.Extract(ctx, text)
		if err == nil {
			if vErr := record.Validate(); vErr != nil {
				err = &ExtractionError{Vendor: vendor, Input: text, Reason: vErr.Error()}
			}
		}
		if err == nil {
			log.Debug().
				Str("vendor", vendor).
				Int64("amount", record.Amount).
				Msg("Rule-based extraction succeeded")
			return record, nil
		}
		if !IsExtractionError(err) {
			return nil, fmt.Errorf("Parse: %s extractor: %w", vendor, err)
		}

		log.Warn().
			Err(err).
			Str("vendor", vendor).
			Msg("Rule-based extraction failed, using fallback")
		break
	}

	return m.parseWithFallback(ctx, text)
}

func (m *Manager) parseWithFallback(ctx context.Context, text string) (*domain.ExpenditureRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug().Msg("Delegating to fallback extractor")

	record, err := m.fallback.Extract(ctx, text)
	if err != nil {
		return nil, NewFallbackError(err)
	}
	if err := record.Validate(); err != nil {
		return nil, NewFallbackError(fmt.Errorf("invalid record: %w", err))
	}

	log.Debug().
		Str("vendor", record.Vendor).
		Int64("amount", record.Amount).
		Msg("Fallback extraction succeeded")
	return record, nil
}
