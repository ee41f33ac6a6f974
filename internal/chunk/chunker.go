// Package chunk splits normalized text into overlapping windows sized for
// embedding and snippet display.
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// Default window parameters. Quick imports (pasted notes, short docs) use
// the small window; long-form sources use the large one.
const (
	DefaultQuickSize    = 200
	DefaultQuickOverlap = 50

	DefaultLongSize    = 1000
	DefaultLongOverlap = 200
)

// ErrInvalidConfig indicates an unusable size/overlap combination.
// Overlap must be smaller than size so the window always advances.
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Split cleans text and slices it into overlapping chunks of at most size
// characters, with consecutive chunks sharing overlap characters. Internal
// whitespace runs collapse to single spaces before slicing, so the output
// is deterministic for a given input and configuration.
//
// Non-empty input always yields at least one chunk. Sizes are measured in
// runes, not bytes, so multi-byte text never splits mid-character.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be positive", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, overlap, size)
	}

	cleaned := Clean(text)
	if cleaned == "" {
		return nil, nil
	}

	runes := []rune(cleaned)
	if len(runes) <= size {
		return []string{cleaned}, nil
	}

	step := size - overlap // >= 1, validated above
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks, nil
}

// Clean collapses whitespace runs to single spaces and trims the ends.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
