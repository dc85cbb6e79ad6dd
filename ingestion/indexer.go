package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// Indexer turns messages into stored records: chunk, embed, upsert.
type Indexer struct {
	store    storage.VectorStore
	embedder ai.Embedder
	chunker  *Chunker
	poolSize int
	logger   *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithChunker sets the chunking policy. Default is NewChunker().
func WithChunker(chunker *Chunker) Option {
	return func(ix *Indexer) {
		if chunker != nil {
			ix.chunker = chunker
		}
	}
}

// WithPoolSize sets the number of files parsed concurrently by IndexFiles.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Indexer) {
		if size < 1 {
			size = 1
		}
		ix.poolSize = size
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger.With("component", "indexer")
	}
}

// NewIndexer creates an indexer writing to store with vectors from embedder.
func NewIndexer(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Indexer, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	ix := &Indexer{
		store:    store,
		embedder: embedder,
		chunker:  NewChunker(),
		poolSize: max(runtime.NumCPU()/2, 1),
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Chunker returns the chunker used by the indexer.
func (ix *Indexer) Chunker() *Chunker {
	return ix.chunker
}

// IndexOptions holds optional parameters for indexing.
type IndexOptions struct {
	// Replace clears the whole collection before the new records are written.
	Replace bool

	// Metadata is merged into every record written.
	Metadata core.Metadata
}

// Index chunks, embeds and stores messages, returning the number of chunks
// written. No chunks is a zero-count success and leaves the store untouched.
// A failed clear is logged and the new records are still written.
func (ix *Indexer) Index(ctx context.Context, messages []core.Message, opts IndexOptions) (int, error) {
	chunks := ix.chunker.Chunk(messages)
	if len(chunks) == 0 {
		ix.logger.Info("nothing to index", "messages", len(messages))
		return 0, nil
	}

	records, err := EmbedChunks(ctx, ix.embedder, chunks, opts.Metadata)
	if err != nil {
		return 0, err
	}

	if opts.Replace {
		deleted, err := ix.store.DeleteWhere(ctx, storage.Where{})
		if err != nil {
			ix.logger.Warn("failed to clear collection, appending instead", "err", err)
		} else {
			ix.logger.Info("cleared collection", "deleted", deleted)
		}
	}

	if err := ix.store.Upsert(ctx, records...); err != nil {
		return 0, err
	}
	ix.logger.Info("indexed messages", "messages", len(messages), "chunks", len(records), "mode", ix.chunker.Mode())
	return len(records), nil
}

// IndexStrict is Index that reports an empty result as core.ErrEmptyInput.
func (ix *Indexer) IndexStrict(ctx context.Context, messages []core.Message, opts IndexOptions) (int, error) {
	n, err := ix.Index(ctx, messages, opts)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, core.ErrEmptyInput
	}
	return n, nil
}

// FilesResult summarises an IndexFiles run.
type FilesResult struct {
	Files  int
	Failed []FileResult
	Chunks int
}

// IndexFiles parses every path and appends the combined messages to the
// collection. Files that fail to parse are logged and skipped. Every record
// is tagged with the number of files requested.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string) (*FilesResult, error) {
	parsed, err := ParseFiles(ctx, paths, ix.poolSize)
	if err != nil {
		return nil, err
	}

	result := &FilesResult{Files: len(paths)}
	var messages []core.Message
	for _, fr := range parsed {
		if fr.Err != nil {
			ix.logger.Warn("skipping file", "path", fr.Path, "err", fr.Err)
			result.Failed = append(result.Failed, fr)
			continue
		}
		messages = append(messages, fr.Messages...)
	}
	if len(messages) == 0 {
		return result, nil
	}

	n, err := ix.Index(ctx, messages, IndexOptions{
		Metadata: core.Metadata{core.KeySourceFilesCount: int64(len(paths))},
	})
	if err != nil {
		return nil, err
	}
	result.Chunks = n
	return result, nil
}

// EmbedChunks embeds the chunk texts in one call and pairs each vector with
// its chunk. extra is merged into every record's metadata, and each record
// carries the fingerprint of its document under core.KeyContentHash.
func EmbedChunks(ctx context.Context, embedder ai.Embedder, chunks []core.Chunk, extra core.Metadata) ([]*core.IndexedRecord, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ai.ErrEmbeddingCountMismatch, len(chunks), len(vectors))
	}

	records := make([]*core.IndexedRecord, len(chunks))
	for i, c := range chunks {
		md := c.Metadata.Clone()
		for k, v := range extra {
			md[k] = v
		}
		md[core.KeyContentHash] = core.FingerprintHex(c.Text)
		normalized, err := core.NormalizeMetadata(md)
		if err != nil {
			return nil, err
		}
		records[i] = core.NewIndexedRecord(core.Chunk{Text: c.Text, Metadata: normalized}, vectors[i])
	}
	return records, nil
}
