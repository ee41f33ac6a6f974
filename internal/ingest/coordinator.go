// Package ingest orchestrates the content pipeline: normalize a source
// payload, deduplicate by checksum, chunk, embed, and persist with a
// two-phase vector write that stays repairable across failures.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rowanvale/recall/internal/chunk"
	"github.com/rowanvale/recall/internal/normalize"
	"github.com/rowanvale/recall/internal/storage"
	"github.com/rowanvale/recall/internal/vector"
)

// Item result statuses.
const (
	StatusCreated  = "created"  // New document fully persisted
	StatusExisting = "existing" // Checksum matched a stored document
	StatusSkipped  = "skipped"  // Payload normalized to empty content
	StatusError    = "error"    // Pipeline failed for this item
)

// Store is the persistence surface the coordinator needs.
type Store interface {
	FindDocumentByChecksum(ctx context.Context, ownerID, checksum string) (*storage.Document, error)
	InsertDocument(ctx context.Context, doc *storage.Document) (string, error)
	UpdateDocumentVectors(ctx context.Context, doc *storage.Document, embeddings [][]float32, centroid []float32) error
	ListPartialDocuments(ctx context.Context, ownerID string) ([]*storage.Document, error)
}

// Embedder generates embedding vectors for batches of texts.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Tagger derives descriptive tags from document content. Optional.
type Tagger interface {
	GenerateTags(ctx context.Context, title, content string) ([]string, error)
}

// Item is one unit of ingestion work.
type Item struct {
	OwnerID      string
	Source       normalize.SourceType
	Payload      []byte
	ChunkSize    int // 0 selects the per-source default
	ChunkOverlap int
}

// ItemResult reports the outcome for a single item.
type ItemResult struct {
	Status     string
	DocumentID string
	Title      string
	Reason     string // Populated for skipped and error statuses
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Items    []ItemResult
	Created  int
	Existing int
	Skipped  int
	Errors   int
	Duration time.Duration
}

// Coordinator runs the ingestion pipeline. Concurrent ingestion of the
// same content is serialized per (owner, checksum) so dedup stays exact.
type Coordinator struct {
	store    Store
	embedder Embedder
	tagger   Tagger
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*refMutex
}

// refMutex is a keyed mutex entry reclaimed once the last holder releases
// it, so the lock table stays proportional to in-flight work.
type refMutex struct {
	mu   sync.Mutex
	refs int
}

// NewCoordinator creates a pipeline coordinator. tagger may be nil to
// disable tag generation; logger may be nil to use slog.Default().
func NewCoordinator(store Store, embedder Embedder, tagger Tagger, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:    store,
		embedder: embedder,
		tagger:   tagger,
		logger:   logger,
		locks:    make(map[string]*refMutex),
	}
}

// Ingest runs one item through the full pipeline.
//
// Identical content for the same owner short-circuits to the stored
// document without calling the embedding provider. An embedding failure
// after the document row lands leaves the document pending; a later
// Repair (or a retry of the same content) completes it.
func (c *Coordinator) Ingest(ctx context.Context, item Item) ItemResult {
	norm, err := normalize.Payload(item.Source, item.Payload)
	if err != nil {
		if errors.Is(err, normalize.ErrEmptyContent) {
			return ItemResult{Status: StatusSkipped, Reason: "no textual content"}
		}
		return ItemResult{Status: StatusError, Reason: fmt.Sprintf("normalize: %v", err)}
	}

	checksum := normalize.Checksum(norm.Text)

	unlock := c.lock(item.OwnerID, checksum)
	defer unlock()

	existing, err := c.store.FindDocumentByChecksum(ctx, item.OwnerID, checksum)
	if err != nil && !errors.Is(err, storage.ErrDocumentNotFound) {
		return ItemResult{Status: StatusError, Reason: fmt.Sprintf("dedup lookup: %v", err)}
	}
	if existing != nil {
		if existing.VectorState == storage.VectorStatePending {
			// Earlier run crashed between phases; finish it now.
			if err := c.repairDocument(ctx, existing); err != nil {
				return ItemResult{
					Status:     StatusError,
					DocumentID: existing.ID,
					Title:      existing.Title,
					Reason:     fmt.Sprintf("vector repair: %v", err),
				}
			}
		}
		c.logger.Debug("duplicate content, reusing document",
			"owner_id", item.OwnerID, "document_id", existing.ID)
		return ItemResult{Status: StatusExisting, DocumentID: existing.ID, Title: existing.Title}
	}

	size, overlap := chunkParams(item)
	chunks, err := chunk.Split(norm.Text, size, overlap)
	if err != nil {
		return ItemResult{Status: StatusError, Reason: fmt.Sprintf("chunking: %v", err)}
	}

	// Tags are best-effort; a generation failure never blocks ingestion.
	var tags []string
	if c.tagger != nil {
		tags, err = c.tagger.GenerateTags(ctx, norm.Title, norm.Text)
		if err != nil {
			c.logger.Warn("tag generation failed, continuing without tags",
				"title", norm.Title, "error", err)
			tags = nil
		}
	}

	doc := &storage.Document{
		OwnerID:        item.OwnerID,
		SourceType:     string(item.Source),
		Title:          norm.Title,
		URL:            norm.URL,
		RawText:        norm.Text,
		Checksum:       checksum,
		Tags:           tags,
		Chunks:         chunks,
		Meta:           norm.Meta,
		EmbeddingModel: c.embedder.ModelName(),
	}

	docID, err := c.store.InsertDocument(ctx, doc)
	if err != nil {
		return ItemResult{Status: StatusError, Title: norm.Title,
			Reason: fmt.Sprintf("insert: %v", err)}
	}

	if err := c.writeVectors(ctx, doc); err != nil {
		// Document persisted in the pending state; report the failure but
		// keep the id so callers can repair later.
		c.logger.Error("vector write failed, document left pending",
			"document_id", docID, "error", err)
		return ItemResult{Status: StatusError, DocumentID: docID, Title: norm.Title,
			Reason: fmt.Sprintf("vectors: %v", err)}
	}

	c.logger.Info("document ingested",
		"document_id", docID, "owner_id", item.OwnerID,
		"source", item.Source, "chunks", len(chunks))
	return ItemResult{Status: StatusCreated, DocumentID: docID, Title: norm.Title}
}

// IngestBatch processes items sequentially. Each item succeeds or fails
// independently.
func (c *Coordinator) IngestBatch(ctx context.Context, items []Item) *BatchResult {
	start := time.Now()
	result := &BatchResult{Items: make([]ItemResult, 0, len(items))}

	for _, item := range items {
		r := c.Ingest(ctx, item)
		result.Items = append(result.Items, r)
		switch r.Status {
		case StatusCreated:
			result.Created++
		case StatusExisting:
			result.Existing++
		case StatusSkipped:
			result.Skipped++
		case StatusError:
			result.Errors++
		}
	}

	result.Duration = time.Since(start)
	c.logger.Info("batch complete",
		"total", len(items), "created", result.Created,
		"existing", result.Existing, "skipped", result.Skipped,
		"errors", result.Errors, "duration", result.Duration)
	return result
}

// Repair finds the owner's pending documents and completes their vector
// writes from the chunk texts stored on the parent. Pass an empty ownerID
// to repair all owners. Returns the number repaired; stops at the first
// store listing error, keeps going past per-document failures.
func (c *Coordinator) Repair(ctx context.Context, ownerID string) (int, error) {
	pending, err := c.store.ListPartialDocuments(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending documents: %w", err)
	}

	repaired := 0
	var errs []error
	for _, doc := range pending {
		if err := c.repairDocument(ctx, doc); err != nil {
			c.logger.Error("repair failed", "document_id", doc.ID, "error", err)
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		repaired++
	}

	if len(errs) > 0 {
		return repaired, errors.Join(errs...)
	}
	return repaired, nil
}

// repairDocument re-runs phase two for a pending document.
func (c *Coordinator) repairDocument(ctx context.Context, doc *storage.Document) error {
	if len(doc.Chunks) == 0 {
		return fmt.Errorf("document %s has no stored chunks", doc.ID)
	}
	if err := c.writeVectors(ctx, doc); err != nil {
		return err
	}
	c.logger.Info("pending document repaired", "document_id", doc.ID, "chunks", len(doc.Chunks))
	return nil
}

// writeVectors embeds the document's chunks, computes the centroid, and
// performs the second persistence phase.
func (c *Coordinator) writeVectors(ctx context.Context, doc *storage.Document) error {
	embeddings, err := c.embedder.GenerateEmbeddings(ctx, doc.Chunks)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(doc.Chunks), err)
	}

	centroid, err := vector.Centroid(embeddings)
	if err != nil {
		return fmt.Errorf("failed to compute centroid: %w", err)
	}

	return c.store.UpdateDocumentVectors(ctx, doc, embeddings, centroid)
}

// lock serializes pipeline runs for one (owner, checksum) pair.
func (c *Coordinator) lock(ownerID, checksum string) func() {
	key := ownerID + "\x00" + checksum

	c.mu.Lock()
	m, ok := c.locks[key]
	if !ok {
		m = &refMutex{}
		c.locks[key] = m
	}
	m.refs++
	c.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		c.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

// chunkParams resolves explicit chunk settings or per-source defaults.
// Quick-capture sources get small windows, long-form sources large ones.
func chunkParams(item Item) (size, overlap int) {
	if item.ChunkSize > 0 {
		return item.ChunkSize, item.ChunkOverlap
	}
	switch item.Source {
	case normalize.SourceManual:
		return chunk.DefaultQuickSize, chunk.DefaultQuickOverlap
	default:
		return chunk.DefaultLongSize, chunk.DefaultLongOverlap
	}
}
