// Package retrieval answers semantic and pattern queries over the stored
// corpus, fusing chunk-level hits into document-level results.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rowanvale/recall/internal/storage"
)

// Defaults applied when the caller leaves a knob unset.
const (
	DefaultMaxResults    = 5
	DefaultMinSimilarity = 0.3

	patternDocLimit   = 5
	patternChunkLimit = 10
)

// ErrRetrieval wraps failures of the underlying search store.
var ErrRetrieval = errors.New("retrieval failed")

// Store is the search surface the engine reads from.
type Store interface {
	VectorSearch(ctx context.Context, ownerID string, query []float32, k int, minSimilarity float32) ([]storage.ChunkHit, error)
	TextSearch(ctx context.Context, ownerID, query string, scope storage.Scope, limit int) ([]storage.TextHit, error)
	GetDocumentsByIDs(ctx context.Context, ids []string, ownerID string) ([]*storage.Document, error)
}

// Embedder turns a query string into a vector.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Match is one matching passage within a result document. Similarity is
// meaningful only when Scored is true; lexical matches carry no score.
type Match struct {
	Snippet    string
	Similarity float32
	Scored     bool
}

// Result is a document-level search result with its matching passages.
type Result struct {
	DocumentID string
	Title      string
	URL        string
	Tags       []string
	Matches    []Match
}

// Engine executes searches. logger may be nil to use slog.Default().
type Engine struct {
	store    Store
	embedder Embedder
	logger   *slog.Logger
}

func NewEngine(store Store, embedder Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, logger: logger}
}

// SearchSemantic embeds the query and returns up to maxResults documents
// owning chunks whose similarity meets minSimilarity. Documents are
// ordered by their best chunk; matches within a document keep the store's
// similarity ordering. maxResults <= 0 and minSimilarity <= 0 take the
// defaults.
func (e *Engine) SearchSemantic(ctx context.Context, ownerID, query string, maxResults int, minSimilarity float32) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	vectors, err := e.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected one query vector, got %d", ErrRetrieval, len(vectors))
	}

	// Over-fetch chunks so that several hits landing in one document still
	// leave enough distinct documents to fill the page.
	hits, err := e.store.VectorSearch(ctx, ownerID, vectors[0], maxResults*4, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrRetrieval, err)
	}

	// Group hits by document, first-seen order. Hits arrive sorted by
	// similarity descending, so group order is best-chunk order.
	var docOrder []string
	matchesByDoc := make(map[string][]Match)
	for _, hit := range hits {
		if _, seen := matchesByDoc[hit.DocumentID]; !seen {
			if len(docOrder) == maxResults {
				continue
			}
			docOrder = append(docOrder, hit.DocumentID)
		}
		matchesByDoc[hit.DocumentID] = append(matchesByDoc[hit.DocumentID], Match{
			Snippet:    hit.Text,
			Similarity: hit.Similarity,
			Scored:     true,
		})
	}

	results, err := e.resolve(ctx, ownerID, docOrder, matchesByDoc)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("semantic search complete",
		"owner_id", ownerID, "chunk_hits", len(hits), "documents", len(results))
	return results, nil
}

// SearchPattern runs a lexical match over both document bodies and chunk
// texts and unions the two result sets by document. Chunk-scope matches
// contribute snippets; a document matched only at the body level appears
// with no matches. Results carry no relevance ordering.
func (e *Engine) SearchPattern(ctx context.Context, ownerID, query string) ([]Result, error) {
	docHits, err := e.store.TextSearch(ctx, ownerID, query, storage.ScopeDocument, patternDocLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: document text search: %w", ErrRetrieval, err)
	}
	chunkHits, err := e.store.TextSearch(ctx, ownerID, query, storage.ScopeChunk, patternChunkLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk text search: %w", ErrRetrieval, err)
	}

	var docOrder []string
	matchesByDoc := make(map[string][]Match)
	for _, hit := range docHits {
		if _, seen := matchesByDoc[hit.DocumentID]; !seen {
			docOrder = append(docOrder, hit.DocumentID)
			matchesByDoc[hit.DocumentID] = nil
		}
	}
	for _, hit := range chunkHits {
		if _, seen := matchesByDoc[hit.DocumentID]; !seen {
			docOrder = append(docOrder, hit.DocumentID)
		}
		matchesByDoc[hit.DocumentID] = append(matchesByDoc[hit.DocumentID], Match{
			Snippet: hit.Snippet,
		})
	}

	results, err := e.resolve(ctx, ownerID, docOrder, matchesByDoc)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("pattern search complete",
		"owner_id", ownerID, "doc_hits", len(docHits),
		"chunk_hits", len(chunkHits), "documents", len(results))
	return results, nil
}

// resolve fetches the parent documents and assembles results in docOrder.
// Documents deleted between the hit and the fetch drop out silently.
func (e *Engine) resolve(ctx context.Context, ownerID string, docOrder []string, matchesByDoc map[string][]Match) ([]Result, error) {
	if len(docOrder) == 0 {
		return []Result{}, nil
	}

	docs, err := e.store.GetDocumentsByIDs(ctx, docOrder, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: document fetch: %w", ErrRetrieval, err)
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		results = append(results, Result{
			DocumentID: doc.ID,
			Title:      doc.Title,
			URL:        doc.URL,
			Tags:       doc.Tags,
			Matches:    matchesByDoc[doc.ID],
		})
	}
	return results, nil
}
