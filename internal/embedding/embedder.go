// Package embedding maps chunk texts to vectors through the OpenAI
// embeddings API. The coordinator and the retrieval engine depend only on
// the batch contract: output length and order match the input, and every
// vector has the model's dimensionality.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// Model is the OpenAI model used for generating embeddings.
	Model = "text-embedding-3-small"

	// Dimension is the vector dimension for text-embedding-3-small.
	Dimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits. OpenAI supports up to 2048 texts per batch, but smaller
	// batches reduce TPM pressure.
	DefaultBatchSize = 500

	// DefaultTimeout bounds a single batch request. The surrounding system
	// imposes its own overall deadline; this keeps one hung call from
	// eating all of it.
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrProvider indicates the embedding provider failed or returned a
	// malformed response. Recoverable: the document can be retried later.
	ErrProvider = errors.New("embedding provider error")

	// ErrProviderTimeout indicates the bounded per-call deadline elapsed.
	ErrProviderTimeout = errors.New("embedding provider timeout")
)

// Embedder generates embeddings in batches with exponential backoff on
// rate-limit errors. Other provider failures are permanent for the call;
// retry policy beyond rate limits belongs to the caller.
type Embedder struct {
	client    *Client
	batchSize int
	timeout   time.Duration
}

// NewEmbedder creates an Embedder with the given client and optional batch
// size. If batchSize is 0, DefaultBatchSize is used.
func NewEmbedder(client *Client, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		batchSize: batchSize,
		timeout:   DefaultTimeout,
	}
}

// Dimension returns the vector dimensionality this embedder produces.
func (e *Embedder) Dimension() int {
	return Dimension
}

// ModelName returns the provider/model identifier recorded on documents.
func (e *Embedder) ModelName() string {
	return Model
}

// GenerateEmbeddings generates one vector per input text, in input order.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

// embedBatchWithRetry generates embeddings for a single batch, retrying
// with exponential backoff on rate-limit errors (HTTP 429). Every other
// failure is permanent and surfaces immediately as ErrProvider.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	batchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(batchCtx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // retried with backoff
			}
			return backoff.Permanent(err)
		}

		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)))
		}

		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, batchCtx)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return embeddings, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// The API returns float64; storage uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
