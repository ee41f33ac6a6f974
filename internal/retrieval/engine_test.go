package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/rowanvale/recall/internal/storage"
)

// fakeSearchStore serves canned hits and documents.
type fakeSearchStore struct {
	chunkHits []storage.ChunkHit
	docHits   []storage.TextHit
	textHits  []storage.TextHit
	docs      map[string]*storage.Document

	vectorErr error
	textErr   error

	lastK       int
	lastMinSim  float32
	lastOwnerID string
}

func (f *fakeSearchStore) VectorSearch(ctx context.Context, ownerID string, query []float32, k int, minSimilarity float32) ([]storage.ChunkHit, error) {
	f.lastOwnerID = ownerID
	f.lastK = k
	f.lastMinSim = minSimilarity
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return f.chunkHits, nil
}

func (f *fakeSearchStore) TextSearch(ctx context.Context, ownerID, query string, scope storage.Scope, limit int) ([]storage.TextHit, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	if scope == storage.ScopeDocument {
		return f.docHits, nil
	}
	return f.textHits, nil
}

func (f *fakeSearchStore) GetDocumentsByIDs(ctx context.Context, ids []string, ownerID string) ([]*storage.Document, error) {
	var docs []*storage.Document
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

type fakeQueryEmbedder struct {
	err error
}

func (f *fakeQueryEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{{1, 0, 0}}, nil
}

func testDocs() map[string]*storage.Document {
	return map[string]*storage.Document{
		"doc-a": {ID: "doc-a", Title: "Garden notes", URL: "https://example.com/a", Tags: []string{"garden"}},
		"doc-b": {ID: "doc-b", Title: "Cooking ideas"},
		"doc-c": {ID: "doc-c", Title: "Travel plans"},
	}
}

// TestSearchSemantic_Fusion verifies chunk hits collapse into one result
// per document, ordered by best chunk.
func TestSearchSemantic_Fusion(t *testing.T) {
	store := &fakeSearchStore{
		chunkHits: []storage.ChunkHit{
			{DocumentID: "doc-a", ChunkIndex: 2, Text: "tomatoes", Similarity: 0.9},
			{DocumentID: "doc-b", ChunkIndex: 0, Text: "pasta", Similarity: 0.8},
			{DocumentID: "doc-a", ChunkIndex: 5, Text: "watering", Similarity: 0.7},
		},
		docs: testDocs(),
	}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	results, err := e.SearchSemantic(context.Background(), "alice", "garden", 5, 0.3)
	if err != nil {
		t.Fatalf("SearchSemantic failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(results))
	}
	if results[0].DocumentID != "doc-a" {
		t.Errorf("Expected doc-a first (best chunk), got %s", results[0].DocumentID)
	}
	if len(results[0].Matches) != 2 {
		t.Errorf("Expected 2 matches for doc-a, got %d", len(results[0].Matches))
	}
	if !results[0].Matches[0].Scored || results[0].Matches[0].Similarity != 0.9 {
		t.Errorf("Expected scored match 0.9, got %+v", results[0].Matches[0])
	}
	if results[0].Title != "Garden notes" || results[0].URL != "https://example.com/a" {
		t.Errorf("Document metadata missing: %+v", results[0])
	}
}

// TestSearchSemantic_Defaults verifies unset knobs resolve to defaults.
func TestSearchSemantic_Defaults(t *testing.T) {
	store := &fakeSearchStore{docs: testDocs()}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	_, err := e.SearchSemantic(context.Background(), "alice", "anything", 0, 0)
	if err != nil {
		t.Fatalf("SearchSemantic failed: %v", err)
	}
	if store.lastK != DefaultMaxResults*4 {
		t.Errorf("Expected over-fetch of %d, got %d", DefaultMaxResults*4, store.lastK)
	}
	if store.lastMinSim != DefaultMinSimilarity {
		t.Errorf("Expected default threshold %v, got %v", DefaultMinSimilarity, store.lastMinSim)
	}
	if store.lastOwnerID != "alice" {
		t.Errorf("Owner scope not forwarded: %q", store.lastOwnerID)
	}
}

// TestSearchSemantic_MaxResults verifies the document cap survives
// over-fetching.
func TestSearchSemantic_MaxResults(t *testing.T) {
	store := &fakeSearchStore{
		chunkHits: []storage.ChunkHit{
			{DocumentID: "doc-a", Similarity: 0.9, Text: "a"},
			{DocumentID: "doc-b", Similarity: 0.8, Text: "b"},
			{DocumentID: "doc-c", Similarity: 0.7, Text: "c"},
		},
		docs: testDocs(),
	}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	results, err := e.SearchSemantic(context.Background(), "alice", "query", 2, 0.3)
	if err != nil {
		t.Fatalf("SearchSemantic failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(results))
	}
	if results[0].DocumentID != "doc-a" || results[1].DocumentID != "doc-b" {
		t.Errorf("Unexpected document order: %s, %s", results[0].DocumentID, results[1].DocumentID)
	}
}

// TestSearchSemantic_NoHits verifies an empty, non-nil result set.
func TestSearchSemantic_NoHits(t *testing.T) {
	e := NewEngine(&fakeSearchStore{docs: testDocs()}, &fakeQueryEmbedder{}, nil)

	results, err := e.SearchSemantic(context.Background(), "alice", "nothing similar", 5, 0.9)
	if err != nil {
		t.Fatalf("SearchSemantic failed: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("Expected empty slice, got %v", results)
	}
}

// TestSearchSemantic_DeletedDocument verifies hits whose parent vanished
// drop out silently.
func TestSearchSemantic_DeletedDocument(t *testing.T) {
	store := &fakeSearchStore{
		chunkHits: []storage.ChunkHit{
			{DocumentID: "doc-gone", Similarity: 0.9, Text: "orphan"},
			{DocumentID: "doc-a", Similarity: 0.8, Text: "alive"},
		},
		docs: testDocs(),
	}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	results, err := e.SearchSemantic(context.Background(), "alice", "query", 5, 0.3)
	if err != nil {
		t.Fatalf("SearchSemantic failed: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-a" {
		t.Errorf("Expected only doc-a, got %+v", results)
	}
}

// TestSearchSemantic_EmbedError verifies embed failures keep their own type.
func TestSearchSemantic_EmbedError(t *testing.T) {
	embedErr := errors.New("provider down")
	e := NewEngine(&fakeSearchStore{}, &fakeQueryEmbedder{err: embedErr}, nil)

	_, err := e.SearchSemantic(context.Background(), "alice", "query", 5, 0.3)
	if !errors.Is(err, embedErr) {
		t.Errorf("Expected wrapped embed error, got %v", err)
	}
	if errors.Is(err, ErrRetrieval) {
		t.Error("Embed failures are not store failures")
	}
}

// TestSearchSemantic_StoreError verifies store failures wrap ErrRetrieval.
func TestSearchSemantic_StoreError(t *testing.T) {
	store := &fakeSearchStore{vectorErr: errors.New("connection reset")}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	_, err := e.SearchSemantic(context.Background(), "alice", "query", 5, 0.3)
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("Expected ErrRetrieval, got %v", err)
	}
}

// TestSearchPattern_Union verifies document-level and chunk-level matches
// union into one result set without duplicates.
func TestSearchPattern_Union(t *testing.T) {
	store := &fakeSearchStore{
		docHits: []storage.TextHit{
			{DocumentID: "doc-a"},
			{DocumentID: "doc-b"},
		},
		textHits: []storage.TextHit{
			{DocumentID: "doc-b", Snippet: "pasta with basil"},
			{DocumentID: "doc-c", Snippet: "basil farms in Italy"},
		},
		docs: testDocs(),
	}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	results, err := e.SearchPattern(context.Background(), "alice", "basil")
	if err != nil {
		t.Fatalf("SearchPattern failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(results))
	}

	byID := make(map[string]Result)
	for _, r := range results {
		byID[r.DocumentID] = r
	}

	// Matched only at the document level: present, no passages.
	if len(byID["doc-a"].Matches) != 0 {
		t.Errorf("doc-a should have no passages, got %d", len(byID["doc-a"].Matches))
	}
	// Matched at both levels: one entry with the chunk snippet.
	if len(byID["doc-b"].Matches) != 1 || byID["doc-b"].Matches[0].Snippet != "pasta with basil" {
		t.Errorf("doc-b passages wrong: %+v", byID["doc-b"].Matches)
	}
	// Chunk-only match: present with its snippet, unscored.
	if len(byID["doc-c"].Matches) != 1 || byID["doc-c"].Matches[0].Scored {
		t.Errorf("doc-c passages wrong: %+v", byID["doc-c"].Matches)
	}
}

// TestSearchPattern_ChunkMatchesOnly verifies documents still surface when
// the pattern hits chunk content but no document-level field.
func TestSearchPattern_ChunkMatchesOnly(t *testing.T) {
	store := &fakeSearchStore{
		textHits: []storage.TextHit{
			{DocumentID: "doc-b", Snippet: "pasta with basil"},
			{DocumentID: "doc-c", Snippet: "basil farms in Italy"},
		},
		docs: testDocs(),
	}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	results, err := e.SearchPattern(context.Background(), "alice", "basil")
	if err != nil {
		t.Fatalf("SearchPattern failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(results))
	}

	byID := make(map[string]Result)
	for _, r := range results {
		byID[r.DocumentID] = r
	}
	for _, id := range []string{"doc-b", "doc-c"} {
		r, ok := byID[id]
		if !ok {
			t.Fatalf("Missing %s in results", id)
		}
		if len(r.Matches) != 1 || r.Matches[0].Snippet == "" {
			t.Errorf("%s should carry its chunk snippet, got %+v", id, r.Matches)
		}
	}
}

// TestSearchPattern_NoHits verifies the empty result shape.
func TestSearchPattern_NoHits(t *testing.T) {
	e := NewEngine(&fakeSearchStore{docs: testDocs()}, &fakeQueryEmbedder{}, nil)

	results, err := e.SearchPattern(context.Background(), "alice", "zzzz")
	if err != nil {
		t.Fatalf("SearchPattern failed: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("Expected empty slice, got %v", results)
	}
}

// TestSearchPattern_StoreError verifies store failures wrap ErrRetrieval.
func TestSearchPattern_StoreError(t *testing.T) {
	store := &fakeSearchStore{textErr: errors.New("timeout")}
	e := NewEngine(store, &fakeQueryEmbedder{}, nil)

	_, err := e.SearchPattern(context.Background(), "alice", "query")
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("Expected ErrRetrieval, got %v", err)
	}
}
