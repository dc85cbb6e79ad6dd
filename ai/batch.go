package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/recall/core"
	"golang.org/x/time/rate"
)

// BatchEmbedder splits requests into fixed-size batches, issues them one at a
// time at a bounded rate, and retries each batch according to its backoff
// policy. Returned vectors are unit length.
type BatchEmbedder struct {
	inner       Embedder
	batchSize   int
	maxAttempts int
	backoff     Backoff
	limiter     *rate.Limiter
	logger      *slog.Logger
}

var _ Embedder = (*BatchEmbedder)(nil)

// BatchOption configures a BatchEmbedder.
type BatchOption func(*BatchEmbedder)

// WithBatchSizeLimit sets the number of texts per request. Values below 1 are ignored.
func WithBatchSizeLimit(size int) BatchOption {
	return func(b *BatchEmbedder) {
		if size > 0 {
			b.batchSize = size
		}
	}
}

// WithRetryPolicy sets the attempt budget and backoff for each batch.
func WithRetryPolicy(maxAttempts int, backoff Backoff) BatchOption {
	return func(b *BatchEmbedder) {
		b.maxAttempts = maxAttempts
		b.backoff = backoff
	}
}

// WithMinInterval spaces consecutive batch requests at least interval apart.
// Zero disables pacing.
func WithMinInterval(interval time.Duration) BatchOption {
	return func(b *BatchEmbedder) {
		if interval <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		b.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithBatchLogger sets a custom logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchEmbedder) {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "batch-embedder")
	}
}

// NewBatchEmbedder wraps inner with batching, retry and pacing.
// Defaults: batch size 10, 3 attempts, DefaultBackoff, no pacing.
func NewBatchEmbedder(inner Embedder, opts ...BatchOption) (*BatchEmbedder, error) {
	if inner == nil {
		return nil, ErrEmbedderRequired
	}
	b := &BatchEmbedder{
		inner:       inner,
		batchSize:   10,
		maxAttempts: 3,
		backoff:     DefaultBackoff(),
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      slog.Default().With("component", "batch-embedder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxAttempts < 1 {
		return nil, ErrInvalidMaxAttempts
	}
	return b, nil
}

// EmbedText embeds a single text as a one-element batch.
func (b *BatchEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts batch by batch. The result has the same length and
// order as texts. If a batch still fails after its retries the whole call
// fails with core.ErrTransientProvider.
func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	if len(texts) == 0 {
		return result, nil
	}

	total := (len(texts) + b.batchSize - 1) / b.batchSize
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batch := texts[start:end]
		index := start/b.batchSize + 1

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var vectors [][]float32
		err := Retry(ctx, func(ctx context.Context) error {
			var err error
			vectors, err = b.inner.EmbedTexts(ctx, batch)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(batch), len(vectors))
			}
			return nil
		}, b.maxAttempts, b.backoff)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			b.logger.Error("embedding batch failed", "batch", index, "batches", total, "attempts", b.maxAttempts, "err", err)
			return nil, fmt.Errorf("%w: batch %d/%d after %d attempts: %w", core.ErrTransientProvider, index, total, b.maxAttempts, err)
		}

		for _, v := range vectors {
			result = append(result, NormalizeVector(v))
		}
		b.logger.Debug("embedded batch", "batch", index, "batches", total, "size", len(batch))
	}
	return result, nil
}
