package extraction

import (
	"context"

	"github.com/dvloznov/card-sms-parser/internal/domain"
)

// VendorExtractor is implemented by every extractor, rule-based or fallback.
type VendorExtractor interface {
	// Vendor returns the fixed vendor code this extractor tags records with.
	Vendor() string

	// MatchesVendor reports whether the extractor might be able to parse text.
	// It must be cheap and must not panic for any input.
	MatchesVendor(text string) bool

	// Extract parses text into a record. Rule-based extractors return an
	// *ExtractionError when text does not have the expected shape.
	Extract(ctx context.Context, text string) (*domain.ExpenditureRecord, error)
}
