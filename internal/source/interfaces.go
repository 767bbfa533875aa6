package source

import "context"

// Fetcher downloads the raw bytes behind a storage location.
// This interface enables mocking and testing of storage functionality.
type Fetcher interface {
	// Fetch downloads the object addressed by uri.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Message is one SMS body read from an input.
type Message struct {
	// ID is "<input name>#<1-based position>".
	ID string `json:"id"`

	// Text is the verbatim SMS body.
	Text string `json:"text"`
}
