// Package source reads SMS bodies from a local file or a Cloud Storage object.
//
// An input holds one or more messages separated by blank lines; a single
// message may span several lines.
package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dvloznov/card-sms-parser/internal/logger"
)

// Reader loads messages from local paths or gs:// URIs.
type Reader struct {
	gcs Fetcher
}

// NewReader creates a Reader. gcs is only consulted for gs:// locations and may be nil
// when remote inputs are not needed.
func NewReader(gcs Fetcher) *Reader {
	return &Reader{gcs: gcs}
}

// Load reads location and returns its messages in input order.
func (r *Reader) Load(ctx context.Context, location string) ([]Message, error) {
	log := logger.FromContext(ctx)

	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("Load: empty location")
	}

	var (
		data []byte
		name string
		err  error
	)

	if IsGCSURI(location) {
		if r.gcs == nil {
			return nil, fmt.Errorf("Load: no storage fetcher configured for %s", location)
		}
		_, object, perr := ParseGCSURI(location)
		if perr != nil {
			return nil, fmt.Errorf("Load: %w", perr)
		}
		name = path.Base(object)
		data, err = r.gcs.Fetch(ctx, location)
	} else {
		name = filepath.Base(location)
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", location, err)
	}

	bodies := SplitMessages(string(data))
	messages := make([]Message, len(bodies))
	for i, body := range bodies {
		messages[i] = Message{
			ID:   fmt.Sprintf("%s#%d", name, i+1),
			Text: body,
		}
	}

	log.Debug().
		Str("location", location).
		Int("messages", len(messages)).
		Msg("Loaded messages")

	return messages, nil
}

// SplitMessages splits input into message bodies separated by one or more
// blank lines. Line endings are normalised to \n and each body is trimmed.
func SplitMessages(input string) []string {
	input = strings.TrimPrefix(input, "\ufeff")
	input = strings.ReplaceAll(input, "\r\n", "\n")

	var (
		messages []string
		current  []string
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		messages = append(messages, strings.TrimSpace(strings.Join(current, "\n")))
		current = current[:0]
	}

	for _, line := range strings.Split(input, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, strings.TrimRight(line, " \t\r"))
	}
	flush()

	return messages
}
