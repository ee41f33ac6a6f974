// Package server exposes the knowledge base over the Model Context
// Protocol: semantic and pattern search, manual note capture, and index
// status.
package server

// SearchNotesInput defines the input parameters for the search_notes tool.
type SearchNotesInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=Natural-language query for semantically similar notes"`
	// OwnerID scopes the search to one user's documents.
	OwnerID string `json:"owner_id" jsonschema:"required,description=Owner whose documents to search"`
	// MaxResults is the maximum number of documents to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of documents to return"`
	// MinScore is the minimum cosine similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.3,description=Minimum similarity score threshold (0-1)"`
}

// SearchNotesOutput contains the semantic search results.
type SearchNotesOutput struct {
	// Results is the list of matching documents with their passages.
	Results []NoteResult `json:"results"`
	// Message provides informational context (e.g., "No matching notes found").
	Message string `json:"message,omitempty"`
}

// NoteResult represents a single document match.
type NoteResult struct {
	// DocumentID is the stored document's identifier.
	DocumentID string `json:"document_id"`
	// Title is the document title.
	Title string `json:"title"`
	// URL points at the source document, if it has one.
	URL string `json:"url,omitempty"`
	// Tags are the document's descriptive tags.
	Tags []string `json:"tags"`
	// Passages are the matching excerpts within the document.
	Passages []Passage `json:"passages"`
}

// Passage is one matching excerpt. Score is present only for semantic
// matches; lexical matches carry no relevance signal.
type Passage struct {
	Text  string   `json:"text"`
	Score *float64 `json:"score,omitempty"`
}

// MatchNotesInput defines the input parameters for the match_notes tool.
type MatchNotesInput struct {
	// Query is the lexical pattern to match against stored text.
	Query string `json:"query" jsonschema:"required,description=Text pattern to match against note bodies and excerpts"`
	// OwnerID scopes the search to one user's documents.
	OwnerID string `json:"owner_id" jsonschema:"required,description=Owner whose documents to search"`
}

// MatchNotesOutput contains the pattern match results.
type MatchNotesOutput struct {
	Results []NoteResult `json:"results"`
	Message string       `json:"message,omitempty"`
}

// IngestNoteInput defines the input parameters for the ingest_note tool.
type IngestNoteInput struct {
	// OwnerID is the user capturing the note.
	OwnerID string `json:"owner_id" jsonschema:"required,description=Owner the note belongs to"`
	// Title is an optional note title.
	Title string `json:"title,omitempty" jsonschema:"description=Optional note title"`
	// Text is the note body.
	Text string `json:"text" jsonschema:"required,description=Plain-text note content"`
}

// IngestNoteOutput reports the ingestion outcome.
type IngestNoteOutput struct {
	// Status is created, existing, skipped, or error.
	Status string `json:"status"`
	// DocumentID identifies the stored document for created and existing.
	DocumentID string `json:"document_id,omitempty"`
	// Title is the stored title.
	Title string `json:"title,omitempty"`
	// Reason explains skipped and error outcomes.
	Reason string `json:"reason,omitempty"`
}

// StatusInput defines the input parameters for the index_status tool.
// This tool takes no parameters.
type StatusInput struct {
	// No input parameters required
}

// StatusOutput contains index statistics.
type StatusOutput struct {
	// TotalDocs is the number of stored documents.
	TotalDocs int `json:"total_docs"`
	// TotalChunks is the number of stored chunk points.
	TotalChunks int `json:"total_chunks"`
	// PendingRepair is the count of documents awaiting vector completion.
	PendingRepair int `json:"pending_repair"`
	// EmbeddingModel identifies the model producing the vectors.
	EmbeddingModel string `json:"embedding_model"`
}
