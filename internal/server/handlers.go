package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rowanvale/recall/internal/ingest"
	"github.com/rowanvale/recall/internal/normalize"
	"github.com/rowanvale/recall/internal/retrieval"
	"github.com/rowanvale/recall/internal/storage"
)

// Searcher is the retrieval surface the tools call.
type Searcher interface {
	SearchSemantic(ctx context.Context, ownerID, query string, maxResults int, minSimilarity float32) ([]retrieval.Result, error)
	SearchPattern(ctx context.Context, ownerID, query string) ([]retrieval.Result, error)
}

// Ingestor accepts manual note captures.
type Ingestor interface {
	Ingest(ctx context.Context, item ingest.Item) ingest.ItemResult
}

// StatusStore reports collection statistics.
type StatusStore interface {
	GetCounts(ctx context.Context) (*storage.Counts, error)
}

// makeSearchNotesHandler creates the search_notes tool handler.
func makeSearchNotesHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchNotesInput,
) (*mcp.CallToolResult, SearchNotesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchNotesInput) (
		*mcp.CallToolResult, SearchNotesOutput, error,
	) {
		if input.OwnerID == "" {
			return nil, SearchNotesOutput{}, fmt.Errorf("owner_id is required")
		}

		results, err := searcher.SearchSemantic(ctx, input.OwnerID, input.Query,
			input.MaxResults, float32(input.MinScore))
		if err != nil {
			return nil, SearchNotesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		out := toNoteResults(results)
		if len(out) == 0 {
			return nil, SearchNotesOutput{
				Results: []NoteResult{},
				Message: "No matching notes found. Try broader search terms or a lower min_score.",
			}, nil
		}
		return nil, SearchNotesOutput{Results: out}, nil
	}
}

// makeMatchNotesHandler creates the match_notes tool handler.
func makeMatchNotesHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, MatchNotesInput,
) (*mcp.CallToolResult, MatchNotesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input MatchNotesInput) (
		*mcp.CallToolResult, MatchNotesOutput, error,
	) {
		if input.OwnerID == "" {
			return nil, MatchNotesOutput{}, fmt.Errorf("owner_id is required")
		}

		results, err := searcher.SearchPattern(ctx, input.OwnerID, input.Query)
		if err != nil {
			return nil, MatchNotesOutput{}, fmt.Errorf("match failed: %w", err)
		}

		out := toNoteResults(results)
		if len(out) == 0 {
			return nil, MatchNotesOutput{
				Results: []NoteResult{},
				Message: "No notes matched the pattern.",
			}, nil
		}
		return nil, MatchNotesOutput{Results: out}, nil
	}
}

// makeIngestNoteHandler creates the ingest_note tool handler. Notes arrive
// as manual-source payloads and run through the full pipeline.
func makeIngestNoteHandler(ingestor Ingestor) func(
	context.Context, *mcp.CallToolRequest, IngestNoteInput,
) (*mcp.CallToolResult, IngestNoteOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestNoteInput) (
		*mcp.CallToolResult, IngestNoteOutput, error,
	) {
		if input.OwnerID == "" {
			return nil, IngestNoteOutput{}, fmt.Errorf("owner_id is required")
		}

		payload, err := normalize.EncodeManual(input.Title, input.Text)
		if err != nil {
			return nil, IngestNoteOutput{}, fmt.Errorf("failed to encode note: %w", err)
		}

		result := ingestor.Ingest(ctx, ingest.Item{
			OwnerID: input.OwnerID,
			Source:  normalize.SourceManual,
			Payload: payload,
		})

		return nil, IngestNoteOutput{
			Status:     result.Status,
			DocumentID: result.DocumentID,
			Title:      result.Title,
			Reason:     result.Reason,
		}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(store StatusStore, embeddingModel string) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		counts, err := store.GetCounts(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("qdrant_error: failed to get counts: %w", err)
		}

		return nil, StatusOutput{
			TotalDocs:      counts.Documents,
			TotalChunks:    counts.Chunks,
			PendingRepair:  counts.Pending,
			EmbeddingModel: embeddingModel,
		}, nil
	}
}

// toNoteResults converts retrieval results to the wire shape.
func toNoteResults(results []retrieval.Result) []NoteResult {
	out := make([]NoteResult, 0, len(results))
	for _, r := range results {
		tags := r.Tags
		if tags == nil {
			tags = []string{} // Ensure non-nil for JSON marshaling
		}
		passages := make([]Passage, 0, len(r.Matches))
		for _, m := range r.Matches {
			p := Passage{Text: m.Snippet}
			if m.Scored {
				score := float64(m.Similarity)
				p.Score = &score
			}
			passages = append(passages, p)
		}
		out = append(out, NoteResult{
			DocumentID: r.DocumentID,
			Title:      r.Title,
			URL:        r.URL,
			Tags:       tags,
			Passages:   passages,
		})
	}
	return out
}
