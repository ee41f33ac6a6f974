package storage

import "errors"

var (
	ErrUnreachable       = errors.New("qdrant server unreachable")
	ErrTimeout           = errors.New("qdrant operation timed out")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrChunkMismatch     = errors.New("chunk and embedding counts differ")
)
