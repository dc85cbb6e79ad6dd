package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// BatchProcessor re-embeds batches of records and writes them back.
// Each batch is a single EmbedTexts call; retries and pacing belong to the
// embedder (see ai.BatchEmbedder).
type BatchProcessor struct {
	store    storage.VectorStore
	embedder ai.Embedder
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(store storage.VectorStore, embedder ai.Embedder) *BatchProcessor {
	return &BatchProcessor{
		store:    store,
		embedder: embedder,
	}
}

// Process embeds the documents of records and upserts them under their
// existing IDs. Vectors are normalized before they are stored.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Document
	}

	embeddings, err := bp.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(embeddings))
	}

	updated := make([]*core.IndexedRecord, len(records))
	for i, record := range records {
		updated[i] = &core.IndexedRecord{
			ID:        record.ID,
			Embedding: ai.NormalizeVector(embeddings[i]),
			Document:  record.Document,
			Metadata:  record.Metadata,
		}
	}

	if err := bp.store.Upsert(ctx, updated...); err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}

	return nil
}
