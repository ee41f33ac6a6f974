// Package normalize extracts plain text from source-specific ingestion
// payloads and computes the content checksum that serves as a document's
// identity for deduplication.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SourceType identifies where an ingested document came from.
type SourceType string

const (
	SourceGoogleDocs SourceType = "google_docs"
	SourceNotion     SourceType = "notion"
	SourceObsidian   SourceType = "obsidian"
	SourceManual     SourceType = "manual"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceGoogleDocs, SourceNotion, SourceObsidian, SourceManual:
		return true
	}
	return false
}

var (
	// ErrEmptyContent indicates normalization produced no text. The caller
	// records the item as skipped and continues with the rest of the batch.
	ErrEmptyContent = errors.New("empty content after normalization")

	// ErrUnknownSource indicates an unrecognized source type.
	ErrUnknownSource = errors.New("unknown source type")

	// ErrMalformedPayload indicates the raw payload could not be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Normalized is the source-independent output of payload normalization.
type Normalized struct {
	Title string
	Text  string            // Plain text, exactly as extracted
	URL   string            // Empty for manual and obsidian entries
	Meta  map[string]string // Source-specific metadata (file ids, edit times)
}

// Payload decodes and normalizes a raw source payload.
// The text is the ordered concatenation of textual leaf nodes; empty and
// whitespace-only leaves are dropped. Returns ErrEmptyContent when nothing
// textual remains.
func Payload(source SourceType, raw []byte) (*Normalized, error) {
	var (
		n   *Normalized
		err error
	)

	switch source {
	case SourceGoogleDocs:
		n, err = googleDoc(raw)
	case SourceNotion:
		n, err = notionPage(raw)
	case SourceObsidian:
		n, err = obsidianNote(raw)
	case SourceManual:
		n, err = manualNote(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(n.Text) == "" {
		return nil, fmt.Errorf("%w: source %s", ErrEmptyContent, source)
	}
	if n.Title == "" {
		n.Title = "Untitled"
	}
	if n.Meta == nil {
		n.Meta = map[string]string{}
	}
	return n, nil
}

// Checksum returns the hex-encoded SHA-256 of the extracted text.
// The hash is computed over the text exactly as produced: re-exports that
// differ only in whitespace or punctuation are distinct versions.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ManualPayload is a manually pasted note.
type ManualPayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// EncodeManual builds a manual-source payload from a title and body.
func EncodeManual(title, text string) ([]byte, error) {
	return json.Marshal(ManualPayload{Title: title, Text: text})
}

func manualNote(raw []byte) (*Normalized, error) {
	var p ManualPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: manual: %v", ErrMalformedPayload, err)
	}
	return &Normalized{
		Title: strings.TrimSpace(p.Title),
		Text:  p.Text,
	}, nil
}
