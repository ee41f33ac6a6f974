package storage

import "time"

// Document is a stored knowledge document. The parent point carries the
// full text, the denormalized chunk texts, and (once vectors are written)
// a centroid vector; per-chunk embeddings live on separate chunk points.
type Document struct {
	ID             string            // UUID, generated on insert
	OwnerID        string            // All operations are scoped to the owner
	SourceType     string            // google_docs | notion | obsidian | manual
	Title          string
	URL            string            // Empty for manual/obsidian entries
	RawText        string            // Normalized plain text
	Checksum       string            // SHA-256 of RawText, the content identity
	Tags           []string
	Chunks         []string          // Ordered chunk texts, display copy
	Meta           map[string]string // Source-specific metadata
	EmbeddingModel string            // Provider/model the vectors came from
	VectorState    string            // VectorStatePending until phase two lands
	CreatedAt      time.Time
}

// Vector states for the two-phase write. A document inserted but not yet
// carrying chunk vectors stays pending and is invisible to vector search.
const (
	VectorStatePending = "pending"
	VectorStateReady   = "ready"
)

// ChunkHit is a chunk-level vector search result.
type ChunkHit struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Similarity float32
}

// TextHit is a lexical search result. Snippet is empty for document-scope
// matches, which only identify the parent.
type TextHit struct {
	DocumentID string
	Snippet    string
}

// Scope selects the target of a lexical search.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeChunk    Scope = "chunk"
)

// Counts summarizes the collection for status reporting.
type Counts struct {
	Documents int
	Chunks    int
	Pending   int // Documents awaiting vector repair
}

// CollectionName is the single Qdrant collection for documents and chunks.
const CollectionName = "documents"

// Point type discriminator values.
const (
	pointTypeDocument = "document"
	pointTypeChunk    = "chunk"
)
