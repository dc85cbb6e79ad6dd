package storage

import (
	"context"

	"github.com/poiesic/recall/core"
)

// VectorStore owns a single named collection of indexed records.
// Implementations must be safe for concurrent use. Every method ensures the
// collection exists before doing anything else.
type VectorStore interface {
	// EnsureCollection creates the collection with cosine distance if it
	// does not exist. Existing collections are reused as-is.
	EnsureCollection(ctx context.Context) error

	// Upsert writes records atomically. IDs are supplied by the caller;
	// a record with an existing ID replaces it.
	Upsert(ctx context.Context, records ...*core.IndexedRecord) error

	// DeleteWhere removes every record whose metadata matches where and
	// returns how many were removed. Matching nothing is not an error.
	DeleteWhere(ctx context.Context, where Where) (int, error)

	// Query returns up to topK records ordered by ascending cosine distance.
	// An empty collection yields an empty slice.
	Query(ctx context.Context, embedding []float32, topK int) ([]*core.ScoredRecord, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// Scan calls fn for every record matching where, in key order.
	// Returning an error from fn stops the scan and returns that error.
	Scan(ctx context.Context, where Where, fn func(*core.IndexedRecord) error) error

	// Info returns the collection descriptor.
	Info(ctx context.Context) (*CollectionInfo, error)

	// Close releases resources held by the store.
	Close() error
}

// CheckpointStore persists the outcome of the most recent sync per window.
type CheckpointStore interface {
	// SaveCheckpoint replaces the checkpoint for checkpoint.HoursBack.
	SaveCheckpoint(ctx context.Context, checkpoint *SyncCheckpoint) error

	// LoadCheckpoint returns the checkpoint for hoursBack.
	// Returns nil, nil if no sync has been recorded.
	LoadCheckpoint(ctx context.Context, hoursBack int) (*SyncCheckpoint, error)
}
