package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// SpaceCosine is the only distance space a collection is created with.
const SpaceCosine = "cosine"

// Collection implements storage.VectorStore on top of a Badger keyspace.
// Nearest-neighbour queries are brute force over every record.
type Collection struct {
	backend     *Backend
	name        string
	ownsBackend bool
	ensured     atomic.Bool
	logger      *slog.Logger
}

var _ storage.VectorStore = (*Collection)(nil)

// newCollection is an internal constructor that returns the concrete type.
func newCollection(backend *Backend, name string) (*Collection, error) {
	if backend == nil {
		return nil, errors.New("badger backend required")
	}
	if name == "" {
		return nil, storage.ErrCollectionNameRequired
	}
	if strings.Contains(name, ":") {
		return nil, fmt.Errorf("collection name %q must not contain ':'", name)
	}
	return &Collection{
		backend: backend,
		name:    name,
		logger:  slog.Default().With("component", "badger-collection", "collection", name),
	}, nil
}

// NewCollection creates a collection handle on an open backend.
// The caller keeps ownership of the backend.
//
// Returns storage.VectorStore interface to enforce abstraction.
func NewCollection(backend *Backend, name string) (storage.VectorStore, error) {
	return newCollection(backend, name)
}

// OpenCollection opens (or creates) the database at path and returns a
// collection that closes the database when closed.
func OpenCollection(path, name string) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	c, err := newCollection(backend, name)
	if err != nil {
		backend.Close()
		return nil, err
	}
	c.ownsBackend = true
	return c, nil
}

// Close closes the backend if this collection opened it.
func (c *Collection) Close() error {
	if c.ownsBackend {
		return c.backend.Close()
	}
	return nil
}

// EnsureCollection creates the collection descriptor with cosine distance
// if it is missing. Existing collections are reused as-is.
func (c *Collection) EnsureCollection(ctx context.Context) error {
	if c.ensured.Load() {
		return nil
	}
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	key := makeCollectionInfoKey(c.name)
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		info, err := c.readInfo(tx)
		if err != nil {
			return err
		}
		if info != nil {
			if info.Space != SpaceCosine {
				return fmt.Errorf("%w: %s", storage.ErrUnsupportedSpace, info.Space)
			}
			return nil
		}
		info = &storage.CollectionInfo{
			Name:      c.name,
			Space:     SpaceCosine,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Set(key, storage.MarshalCollectionInfo(info)); err != nil {
			return err
		}
		c.logger.Info("created collection", "space", SpaceCosine)
		return tx.Commit()
	}, true)

	// A concurrent creator won the race; the collection exists now.
	if errors.Is(err, badger.ErrConflict) {
		err = nil
	}
	if err != nil {
		return err
	}
	c.ensured.Store(true)
	return nil
}

// Info returns the collection descriptor.
func (c *Collection) Info(ctx context.Context) (*storage.CollectionInfo, error) {
	if err := c.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	var info *storage.CollectionInfo
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		info, err = c.readInfo(tx)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, storage.ErrNotFound
	}
	return info, nil
}

// Upsert writes records, splitting the write across transactions when it
// is too large for one. Records are validated before anything is written.
func (c *Collection) Upsert(ctx context.Context, records ...*core.IndexedRecord) error {
	if err := c.EnsureCollection(ctx); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return err
		}
	}

	entries := make([]Entry, 0, len(records)+1)
	for _, record := range records {
		value, err := storage.MarshalRecord(record)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Key: makeRecordKey(c.name, record.ID), Value: value})
	}

	var info *storage.CollectionInfo
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		info, err = c.readInfo(tx)
		return err
	}, false)
	if err != nil {
		return err
	}
	if info != nil && info.Dimension == 0 {
		info.Dimension = len(records[0].Embedding)
		entries = append(entries, Entry{Key: makeCollectionInfoKey(c.name), Value: storage.MarshalCollectionInfo(info)})
	}

	return c.backend.SetEntries(ctx, entries)
}

// DeleteWhere removes every record whose metadata matches where.
func (c *Collection) DeleteWhere(ctx context.Context, where storage.Where) (int, error) {
	if err := c.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	var keys [][]byte
	err := c.scan(ctx, func(key []byte, record *core.IndexedRecord) error {
		if where.Match(record.Metadata) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.backend.DeleteKeys(keys); err != nil {
		return 0, err
	}
	c.logger.Debug("deleted records", "count", len(keys), "where", map[string]any(where))
	return len(keys), nil
}

// Query returns up to topK records ordered by ascending cosine distance.
// Records whose dimension differs from the query are skipped.
func (c *Collection) Query(ctx context.Context, embedding []float32, topK int) ([]*core.ScoredRecord, error) {
	if err := c.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", storage.ErrInvalidQuery)
	}

	results := []*core.ScoredRecord{}
	skipped := 0
	err := c.scan(ctx, func(_ []byte, record *core.IndexedRecord) error {
		if len(record.Embedding) != len(embedding) {
			skipped++
			return nil
		}
		results = append(results, &core.ScoredRecord{
			Record:   record,
			Distance: cosineDistance(embedding, record.Embedding),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.logger.Warn("skipped records with mismatched dimension", "count", skipped, "query_dimension", len(embedding))
	}

	// Sort by distance ascending
	slices.SortStableFunc(results, func(a, b *core.ScoredRecord) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if err := c.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeRecordPrefix(c.name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Scan calls fn for every record matching where.
func (c *Collection) Scan(ctx context.Context, where storage.Where, fn func(*core.IndexedRecord) error) error {
	if err := c.EnsureCollection(ctx); err != nil {
		return err
	}
	return c.scan(ctx, func(_ []byte, record *core.IndexedRecord) error {
		if !where.Match(record.Metadata) {
			return nil
		}
		return fn(record)
	})
}

// scan iterates every record in the collection inside one read transaction.
func (c *Collection) scan(ctx context.Context, fn func(key []byte, record *core.IndexedRecord) error) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordPrefix(c.name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()

			var record *core.IndexedRecord
			err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

func (c *Collection) readInfo(tx *badger.Txn) (*storage.CollectionInfo, error) {
	item, err := tx.Get(makeCollectionInfoKey(c.name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info *storage.CollectionInfo
	err = item.Value(func(val []byte) error {
		var err error
		info, err = storage.UnmarshalCollectionInfo(val)
		return err
	})
	return info, err
}

// cosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
