package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// FileSource serves messages from a JSON export (an array of messages in
// RawMessage shape). The cursor is the offset of the next unserved message,
// so re-running after new exports only yields the tail.
type FileSource struct {
	messages []RawMessage
}

// NewFileSource loads the export once; Poll then pages through it.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading message export %q: %w", path, err)
	}

	var messages []RawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parsing message export %q: %w", path, err)
	}

	return &FileSource{messages: messages}, nil
}

func (f *FileSource) Poll(_ context.Context, cursor string, limit int) ([]RawMessage, string, error) {
	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		offset = parsed
	}

	if offset >= len(f.messages) {
		return nil, cursor, nil
	}

	end := offset + limit
	if end > len(f.messages) {
		end = len(f.messages)
	}

	return f.messages[offset:end], strconv.Itoa(end), nil
}
