// Package storage persists documents and chunk embeddings in Qdrant.
// One collection holds two kinds of points: parent documents (payload plus
// an optional "centroid" named vector) and chunks (a "content" named
// vector each), discriminated by the "type" payload field.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// opTimeout bounds a single Qdrant call. The surrounding system imposes
// its own overall deadline; this keeps one stalled call from eating it.
const opTimeout = 15 * time.Second

// opContext derives a per-call deadline from the inbound context.
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// opError wraps an operation failure, mapping deadline expiry to the
// typed ErrTimeout sentinel.
func opError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// Store wraps the Qdrant client with connection management and the
// operations the ingestion and retrieval paths need.
type Store struct {
	client *qdrant.Client
	dim    int
}

// NewStore creates a Qdrant-backed store with health validation.
// dim is the embedding dimensionality enforced on every write and query.
// Fails fast if Qdrant is unreachable after bounded retries.
func NewStore(host string, port, dim int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, dim: dim}

	ctx := context.Background()
	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return s, nil
}

// healthCheckWithRetry performs health checks with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 10 * time.Second
	expo.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(expo, ctx))
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection ensures the collection exists with named vectors and
// payload indexes. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	// Named vectors let parent documents (centroid) and chunks (content)
	// share one collection with one dimensionality.
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			"content": {
				Size:     uint64(s.dim),
				Distance: qdrant.Distance_Cosine,
			},
			"centroid": {
				Size:     uint64(s.dim),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return s.createPayloadIndexes(ctx)
}

// createPayloadIndexes creates indexes for the filterable fields plus a
// full-text index on content for pattern search.
func (s *Store) createPayloadIndexes(ctx context.Context) error {
	keyword := []string{
		"owner_id",    // every operation is owner-scoped
		"checksum",    // dedup lookup
		"source_type",
		"type",        // "document" vs "chunk"
		"document_id", // chunk -> parent
		"vector_state",
	}
	for _, field := range keyword {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CollectionName,
		FieldName:      "content",
		FieldType:      qdrant.FieldType_FieldTypeText.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create text index: %w", err)
	}
	return nil
}

// ClearCollection deletes all points and recreates the collection.
func (s *Store) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, CollectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert with exponential backoff.
func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 10 * time.Second
	expo.MaxElapsedTime = 30 * time.Second

	// Each attempt carries its own deadline: a hung call surfaces as a
	// retryable deadline error instead of stalling the whole loop.
	err := backoff.Retry(func() error {
		attemptCtx, cancel := opContext(ctx)
		defer cancel()

		_, err := s.client.Upsert(attemptCtx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(expo, ctx))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: upsert", ErrTimeout)
	}
	return err
}

// FindDocumentByChecksum looks up a document by its content identity.
// Returns ErrDocumentNotFound when no document matches.
func (s *Store) FindDocumentByChecksum(ctx context.Context, ownerID, checksum string) (*Document, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointTypeDocument),
				qdrant.NewMatch("owner_id", ownerID),
				qdrant.NewMatch("checksum", checksum),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, opError("query document by checksum", err)
	}
	if len(results) == 0 {
		return nil, ErrDocumentNotFound
	}
	return documentFromPayload(results[0].Id.GetUuid(), results[0].Payload), nil
}

// InsertDocument writes the parent point in the pending vector state and
// returns its id. Chunk points and the centroid arrive in a second phase
// via UpdateDocumentVectors; a crash in between leaves a detectable
// pending document.
func (s *Store) InsertDocument(ctx context.Context, doc *Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.VectorState = VectorStatePending
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(documentPayload(doc)),
	}
	if err := s.upsertWithRetry(ctx, []*qdrant.PointStruct{point}); err != nil {
		return "", fmt.Errorf("failed to insert document %q: %w", doc.ID, err)
	}
	return doc.ID, nil
}

// UpdateDocumentVectors completes the second write phase: it upserts one
// chunk point per embedding, then rewrites the parent with its centroid
// vector and the ready state. Safe to re-run for repair; existing chunk
// points for the document are removed first.
func (s *Store) UpdateDocumentVectors(ctx context.Context, doc *Document, embeddings [][]float32, centroid []float32) error {
	if len(doc.Chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", ErrChunkMismatch, len(doc.Chunks), len(embeddings))
	}
	for i, emb := range embeddings {
		if len(emb) != s.dim {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(emb), s.dim)
		}
	}
	if len(centroid) != s.dim {
		return fmt.Errorf("%w: centroid has %d dimensions, expected %d",
			ErrDimensionMismatch, len(centroid), s.dim)
	}

	// A crashed or repeated phase two may have left partial chunk points.
	if err := s.deleteChunks(ctx, doc.ID); err != nil {
		return err
	}

	// Batch chunk upserts in groups of 100.
	const batchSize = 100
	for start := 0; start < len(doc.Chunks); start += batchSize {
		end := min(start+batchSize, len(doc.Chunks))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(uuid.New().String()),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					"content": qdrant.NewVector(embeddings[i]...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"type":        pointTypeChunk,
					"document_id": doc.ID,
					"owner_id":    doc.OwnerID,
					"chunk_index": i,
					"content":     doc.Chunks[i],
					"token_count": len(doc.Chunks[i]) / 4, // rough 4 chars/token estimate
				}),
			})
		}
		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert chunk batch %d-%d: %w", start, end, err)
		}
	}

	doc.VectorState = VectorStateReady
	parent := &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			"centroid": qdrant.NewVector(centroid...),
		}),
		Payload: qdrant.NewValueMap(documentPayload(doc)),
	}
	if err := s.upsertWithRetry(ctx, []*qdrant.PointStruct{parent}); err != nil {
		return fmt.Errorf("failed to finalize document %q: %w", doc.ID, err)
	}
	return nil
}

// deleteChunks removes all chunk points belonging to a document.
func (s *Store) deleteChunks(ctx context.Context, docID string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointTypeChunk),
				qdrant.NewMatch("document_id", docID),
			},
		}),
	})
	if err != nil {
		return opError(fmt.Sprintf("delete chunks of %q", docID), err)
	}
	return nil
}

// VectorSearch returns the owner's chunks whose content vector has cosine
// similarity of at least minSimilarity with the query vector, ordered by
// similarity descending. Pending documents have no chunk points yet, so
// they never appear here.
func (s *Store) VectorSearch(ctx context.Context, ownerID string, query []float32, k int, minSimilarity float32) ([]ChunkHit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query), s.dim)
	}

	ctx, cancel := opContext(ctx)
	defer cancel()

	vectorName := "content"
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(query...),
		Using:          &vectorName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointTypeChunk),
				qdrant.NewMatch("owner_id", ownerID),
			},
		},
		Limit:          qdrant.PtrOf(uint64(k)),
		ScoreThreshold: qdrant.PtrOf(minSimilarity),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, opError("search chunks", err)
	}

	hits := make([]ChunkHit, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		hits = append(hits, ChunkHit{
			DocumentID: payload["document_id"].GetStringValue(),
			ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
			Text:       payload["content"].GetStringValue(),
			Similarity: result.Score,
		})
	}
	return hits, nil
}

// TextSearch performs a lexical full-text match against document bodies or
// chunk texts, scoped to the owner. No ranking signal beyond match/no-match.
func (s *Store) TextSearch(ctx context.Context, ownerID, query string, scope Scope, limit int) ([]TextHit, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	pointType := pointTypeDocument
	if scope == ScopeChunk {
		pointType = pointTypeChunk
	}

	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointType),
				qdrant.NewMatch("owner_id", ownerID),
				qdrant.NewMatchText("content", query),
			},
		},
		Limit:       qdrant.PtrOf(uint32(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, opError(fmt.Sprintf("text-search %s scope", scope), err)
	}

	hits := make([]TextHit, 0, len(results))
	for _, result := range results {
		if scope == ScopeChunk {
			hits = append(hits, TextHit{
				DocumentID: result.Payload["document_id"].GetStringValue(),
				Snippet:    result.Payload["content"].GetStringValue(),
			})
			continue
		}
		hits = append(hits, TextHit{DocumentID: result.Id.GetUuid()})
	}
	return hits, nil
}

// GetDocumentsByIDs fetches parent documents by id, scoped to the owner.
// Missing ids are skipped; output preserves input order.
func (s *Store) GetDocumentsByIDs(ctx context.Context, ids []string, ownerID string) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := opContext(ctx)
	defer cancel()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	results, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: CollectionName,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, opError("get documents", err)
	}

	byID := make(map[string]*Document, len(results))
	for _, point := range results {
		payload := point.Payload
		if payload["type"].GetStringValue() != pointTypeDocument {
			continue
		}
		if payload["owner_id"].GetStringValue() != ownerID {
			continue
		}
		doc := documentFromPayload(point.Id.GetUuid(), payload)
		byID[doc.ID] = doc
	}

	docs := make([]*Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// ListPartialDocuments returns the owner's documents stuck in the pending
// vector state, i.e. inserted but never finished by phase two. Pass an
// empty ownerID to scan all owners.
func (s *Store) ListPartialDocuments(ctx context.Context, ownerID string) ([]*Document, error) {
	must := []*qdrant.Condition{
		qdrant.NewMatch("type", pointTypeDocument),
		qdrant.NewMatch("vector_state", VectorStatePending),
	}
	if ownerID != "" {
		must = append(must, qdrant.NewMatch("owner_id", ownerID))
	}
	filter := &qdrant.Filter{Must: must}

	var docs []*Document
	var offset *qdrant.PointId
	batchSize := uint32(100)

	for {
		results, err := s.scrollPage(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, opError("scroll pending documents", err)
		}

		for _, result := range results {
			docs = append(docs, documentFromPayload(result.Id.GetUuid(), result.Payload))
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}
	return docs, nil
}

// GetCounts returns collection statistics for status reporting.
func (s *Store) GetCounts(ctx context.Context) (*Counts, error) {
	docs, err := s.countPoints(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("type", pointTypeDocument)},
	})
	if err != nil {
		return nil, err
	}
	pending, err := s.countPoints(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("type", pointTypeDocument),
			qdrant.NewMatch("vector_state", VectorStatePending),
		},
	})
	if err != nil {
		return nil, err
	}

	infoCtx, cancel := opContext(ctx)
	defer cancel()
	collection, err := s.client.GetCollectionInfo(infoCtx, CollectionName)
	if err != nil {
		return nil, opError("get collection", err)
	}

	// Every point is either a parent document or a chunk.
	return &Counts{
		Documents: docs,
		Chunks:    int(collection.GetPointsCount()) - docs,
		Pending:   pending,
	}, nil
}

// scrollPage fetches one Scroll page under a per-call deadline, so a
// stalled server bounds each page rather than the whole listing.
func (s *Store) scrollPage(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	pageCtx, cancel := opContext(ctx)
	defer cancel()
	return s.client.Scroll(pageCtx, req)
}

// countPoints counts matching points by scrolling ids only.
func (s *Store) countPoints(ctx context.Context, filter *qdrant.Filter) (int, error) {
	count := 0
	var offset *qdrant.PointId
	batchSize := uint32(256)

	for {
		results, err := s.scrollPage(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return 0, opError("scroll for count", err)
		}
		count += len(results)
		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}
	return count, nil
}

// documentPayload builds the parent point payload.
func documentPayload(doc *Document) map[string]any {
	tags := make([]any, len(doc.Tags))
	for i, t := range doc.Tags {
		tags[i] = t
	}
	chunks := make([]any, len(doc.Chunks))
	for i, c := range doc.Chunks {
		chunks[i] = c
	}
	meta := make(map[string]any, len(doc.Meta))
	for k, v := range doc.Meta {
		meta[k] = v
	}

	return map[string]any{
		"type":            pointTypeDocument,
		"owner_id":        doc.OwnerID,
		"source_type":     doc.SourceType,
		"title":           doc.Title,
		"url":             doc.URL,
		"content":         doc.RawText,
		"checksum":        doc.Checksum,
		"tags":            tags,
		"chunks":          chunks,
		"meta":            meta,
		"embedding_model": doc.EmbeddingModel,
		"vector_state":    doc.VectorState,
		"created_at":      doc.CreatedAt.Format(time.RFC3339),
	}
}

// documentFromPayload reconstructs a Document from a parent point payload.
func documentFromPayload(id string, payload map[string]*qdrant.Value) *Document {
	createdAt, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue())
	if err != nil {
		createdAt = time.Time{}
	}

	var tags []string
	if list := payload["tags"].GetListValue(); list != nil {
		for _, v := range list.Values {
			tags = append(tags, v.GetStringValue())
		}
	}
	var chunks []string
	if list := payload["chunks"].GetListValue(); list != nil {
		for _, v := range list.Values {
			chunks = append(chunks, v.GetStringValue())
		}
	}
	meta := map[string]string{}
	if structVal := payload["meta"].GetStructValue(); structVal != nil {
		for k, v := range structVal.GetFields() {
			meta[k] = v.GetStringValue()
		}
	}

	return &Document{
		ID:             id,
		OwnerID:        payload["owner_id"].GetStringValue(),
		SourceType:     payload["source_type"].GetStringValue(),
		Title:          payload["title"].GetStringValue(),
		URL:            payload["url"].GetStringValue(),
		RawText:        payload["content"].GetStringValue(),
		Checksum:       payload["checksum"].GetStringValue(),
		Tags:           tags,
		Chunks:         chunks,
		Meta:           meta,
		EmbeddingModel: payload["embedding_model"].GetStringValue(),
		VectorState:    payload["vector_state"].GetStringValue(),
		CreatedAt:      createdAt,
	}
}
