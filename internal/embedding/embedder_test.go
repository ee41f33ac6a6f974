package embedding

import (
	"errors"
	"testing"

	"github.com/openai/openai-go"
)

// TestNewEmbedder_Defaults verifies the default batch size kicks in.
func TestNewEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(nil, 0)
	if e.batchSize != DefaultBatchSize {
		t.Errorf("Expected batch size %d, got %d", DefaultBatchSize, e.batchSize)
	}
	if e.timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, e.timeout)
	}

	e = NewEmbedder(nil, 100)
	if e.batchSize != 100 {
		t.Errorf("Expected batch size 100, got %d", e.batchSize)
	}
}

// TestEmbedderContract verifies model identity metadata.
func TestEmbedderContract(t *testing.T) {
	e := NewEmbedder(nil, 0)
	if e.Dimension() != 1536 {
		t.Errorf("Expected dimension 1536, got %d", e.Dimension())
	}
	if e.ModelName() != "text-embedding-3-small" {
		t.Errorf("Unexpected model name %q", e.ModelName())
	}
}

// TestIsRateLimitError verifies only HTTP 429 is retryable.
func TestIsRateLimitError(t *testing.T) {
	if !isRateLimitError(&openai.Error{StatusCode: 429}) {
		t.Error("429 should be a rate limit error")
	}
	if isRateLimitError(&openai.Error{StatusCode: 500}) {
		t.Error("500 is not a rate limit error")
	}
	if isRateLimitError(errors.New("plain error")) {
		t.Error("Non-API errors are not rate limit errors")
	}
}

// TestToFloat32 verifies the conversion preserves order and length.
func TestToFloat32(t *testing.T) {
	got := toFloat32([]float64{0.5, -1.25, 2})
	expected := []float32{0.5, -1.25, 2}

	if len(got) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Index %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}
