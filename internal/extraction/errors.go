package extraction

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when there is no text to extract from.
var ErrEmptyInput = errors.New("empty input")

// maxInputInError bounds how much of the message body is echoed in errors.
const maxInputInError = 80

// ExtractionError is returned by a rule-based extractor whose vendor predicate
// matched but whose pattern could not be applied to the message.
type ExtractionError struct {
	Vendor string
	Input  string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extractor: %s: malformed input %q", e.Vendor, e.Reason, truncate(e.Input, maxInputInError))
}

// FallbackExtractionError is the terminal failure of the fallback extractor.
type FallbackExtractionError struct {
	Cause error
}

func (e *FallbackExtractionError) Error() string {
	if e.Cause == nil {
		return "fallback extraction failed"
	}
	return fmt.Sprintf("fallback extraction failed: %v", e.Cause)
}

func (e *FallbackExtractionError) Unwrap() error {
	return e.Cause
}

// NewFallbackError wraps cause into a *FallbackExtractionError unless it
// already is one.
func NewFallbackError(cause error) error {
	var fe *FallbackExtractionError
	if errors.As(cause, &fe) {
		return cause
	}
	return &FallbackExtractionError{Cause: cause}
}

// IsExtractionError reports whether err carries an *ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// IsFallbackError reports whether err carries a *FallbackExtractionError.
func IsFallbackError(err error) bool {
	var fe *FallbackExtractionError
	return errors.As(err, &fe)
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
