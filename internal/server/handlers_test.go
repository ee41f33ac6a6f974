package server

import (
	"context"
	"errors"
	"testing"

	"github.com/rowanvale/recall/internal/ingest"
	"github.com/rowanvale/recall/internal/retrieval"
	"github.com/rowanvale/recall/internal/storage"
)

type fakeSearcher struct {
	semantic []retrieval.Result
	pattern  []retrieval.Result
	err      error

	lastOwner  string
	lastMax    int
	lastMinSim float32
	lastQuery  string
}

func (f *fakeSearcher) SearchSemantic(ctx context.Context, ownerID, query string, maxResults int, minSimilarity float32) ([]retrieval.Result, error) {
	f.lastOwner, f.lastQuery, f.lastMax, f.lastMinSim = ownerID, query, maxResults, minSimilarity
	return f.semantic, f.err
}

func (f *fakeSearcher) SearchPattern(ctx context.Context, ownerID, query string) ([]retrieval.Result, error) {
	f.lastOwner, f.lastQuery = ownerID, query
	return f.pattern, f.err
}

type fakeIngestor struct {
	result   ingest.ItemResult
	lastItem ingest.Item
}

func (f *fakeIngestor) Ingest(ctx context.Context, item ingest.Item) ingest.ItemResult {
	f.lastItem = item
	return f.result
}

type fakeStatusStore struct {
	counts *storage.Counts
	err    error
}

func (f *fakeStatusStore) GetCounts(ctx context.Context) (*storage.Counts, error) {
	return f.counts, f.err
}

// TestSearchNotesHandler verifies result mapping and scored passages.
func TestSearchNotesHandler(t *testing.T) {
	score := float32(0.87)
	searcher := &fakeSearcher{
		semantic: []retrieval.Result{
			{
				DocumentID: "doc-1",
				Title:      "Garden notes",
				URL:        "https://example.com",
				Tags:       []string{"garden"},
				Matches: []retrieval.Match{
					{Snippet: "plant tomatoes", Similarity: score, Scored: true},
				},
			},
		},
	}
	handler := makeSearchNotesHandler(searcher)

	_, out, err := handler(context.Background(), nil, SearchNotesInput{
		Query:   "gardening",
		OwnerID: "alice",
	})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	if len(out.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(out.Results))
	}
	r := out.Results[0]
	if r.DocumentID != "doc-1" || r.Title != "Garden notes" {
		t.Errorf("Result metadata wrong: %+v", r)
	}
	if len(r.Passages) != 1 || r.Passages[0].Text != "plant tomatoes" {
		t.Fatalf("Passages wrong: %+v", r.Passages)
	}
	if r.Passages[0].Score == nil || *r.Passages[0].Score != float64(score) {
		t.Errorf("Expected score %v, got %v", score, r.Passages[0].Score)
	}
	if searcher.lastOwner != "alice" {
		t.Errorf("Owner not forwarded: %q", searcher.lastOwner)
	}
}

// TestSearchNotesHandler_Empty verifies the no-results message.
func TestSearchNotesHandler_Empty(t *testing.T) {
	handler := makeSearchNotesHandler(&fakeSearcher{})

	_, out, err := handler(context.Background(), nil, SearchNotesInput{
		Query:   "nothing",
		OwnerID: "alice",
	})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if out.Message == "" {
		t.Error("Expected informational message for empty results")
	}
	if out.Results == nil {
		t.Error("Results must be non-nil for JSON marshaling")
	}
}

// TestSearchNotesHandler_MissingOwner verifies owner validation.
func TestSearchNotesHandler_MissingOwner(t *testing.T) {
	handler := makeSearchNotesHandler(&fakeSearcher{})

	_, _, err := handler(context.Background(), nil, SearchNotesInput{Query: "q"})
	if err == nil {
		t.Fatal("Expected error for missing owner_id")
	}
}

// TestMatchNotesHandler verifies unscored passages for lexical matches.
func TestMatchNotesHandler(t *testing.T) {
	searcher := &fakeSearcher{
		pattern: []retrieval.Result{
			{
				DocumentID: "doc-2",
				Title:      "Cooking",
				Matches:    []retrieval.Match{{Snippet: "basil pesto"}},
			},
		},
	}
	handler := makeMatchNotesHandler(searcher)

	_, out, err := handler(context.Background(), nil, MatchNotesInput{
		Query:   "basil",
		OwnerID: "alice",
	})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	if len(out.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(out.Results))
	}
	p := out.Results[0].Passages[0]
	if p.Score != nil {
		t.Errorf("Lexical passages must be unscored, got %v", *p.Score)
	}
	if out.Results[0].Tags == nil {
		t.Error("Tags must be non-nil for JSON marshaling")
	}
}

// TestMatchNotesHandler_Error verifies search failures surface as errors.
func TestMatchNotesHandler_Error(t *testing.T) {
	handler := makeMatchNotesHandler(&fakeSearcher{err: errors.New("store down")})

	_, _, err := handler(context.Background(), nil, MatchNotesInput{
		Query:   "q",
		OwnerID: "alice",
	})
	if err == nil {
		t.Fatal("Expected error from failing store")
	}
}

// TestIngestNoteHandler verifies the note becomes a manual-source item.
func TestIngestNoteHandler(t *testing.T) {
	ingestor := &fakeIngestor{
		result: ingest.ItemResult{Status: ingest.StatusCreated, DocumentID: "doc-3", Title: "Quick note"},
	}
	handler := makeIngestNoteHandler(ingestor)

	_, out, err := handler(context.Background(), nil, IngestNoteInput{
		OwnerID: "alice",
		Title:   "Quick note",
		Text:    "remember the milk",
	})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	if out.Status != ingest.StatusCreated || out.DocumentID != "doc-3" {
		t.Errorf("Unexpected output: %+v", out)
	}
	if ingestor.lastItem.OwnerID != "alice" {
		t.Errorf("Owner not forwarded: %q", ingestor.lastItem.OwnerID)
	}
	if string(ingestor.lastItem.Source) != "manual" {
		t.Errorf("Expected manual source, got %q", ingestor.lastItem.Source)
	}
}

// TestStatusHandler verifies count mapping.
func TestStatusHandler(t *testing.T) {
	store := &fakeStatusStore{
		counts: &storage.Counts{Documents: 12, Chunks: 340, Pending: 2},
	}
	handler := makeStatusHandler(store, "text-embedding-3-small")

	_, out, err := handler(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	if out.TotalDocs != 12 || out.TotalChunks != 340 || out.PendingRepair != 2 {
		t.Errorf("Counts wrong: %+v", out)
	}
	if out.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("Model wrong: %q", out.EmbeddingModel)
	}
}

// TestStatusHandler_Error verifies store failures surface as errors.
func TestStatusHandler_Error(t *testing.T) {
	handler := makeStatusHandler(&fakeStatusStore{err: errors.New("unreachable")}, "m")

	_, _, err := handler(context.Background(), nil, StatusInput{})
	if err == nil {
		t.Fatal("Expected error from failing store")
	}
}
