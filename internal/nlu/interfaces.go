package nlu

import (
	"context"
	"errors"
)

// Generator sends a prompt to a language model and returns its raw text reply.
// This interface enables mocking of the model call in tests.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrFallbackDisabled is returned by DisabledGenerator.
var ErrFallbackDisabled = errors.New("fallback disabled: no model credentials configured")

// DisabledGenerator is used when no model is configured. Every call fails, so
// messages no rule can parse surface as fallback errors.
type DisabledGenerator struct{}

// Generate implements Generator.
func (DisabledGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", ErrFallbackDisabled
}
