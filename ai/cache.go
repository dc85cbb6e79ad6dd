package ai

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/recall/core"
)

// CachingEmbedder remembers embeddings by content fingerprint and forwards
// only cache misses to the wrapped embedder, preserving input order.
type CachingEmbedder struct {
	inner Embedder
	model string
	cache *lru.Cache[uint64, []float32]
}

var _ Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder wraps inner with an LRU cache of size entries.
// model is mixed into the cache key so vectors from different models never collide.
func NewCachingEmbedder(inner Embedder, model string, size int) (*CachingEmbedder, error) {
	if inner == nil {
		return nil, ErrEmbedderRequired
	}
	cache, err := lru.New[uint64, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{inner: inner, model: model, cache: cache}, nil
}

func (c *CachingEmbedder) key(text string) uint64 {
	return core.Fingerprint(c.model + "\x00" + text)
}

// EmbedText returns the cached vector for text or embeds it.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds only the texts not already cached.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(c.key(text)); ok {
			result[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return result, nil
	}

	vectors, err := c.inner.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, ErrEmbeddingCountMismatch
	}
	for j, v := range vectors {
		result[missingIdx[j]] = v
		c.cache.Add(c.key(missing[j]), v)
	}
	return result, nil
}

// Len returns the number of cached embeddings.
func (c *CachingEmbedder) Len() int {
	return c.cache.Len()
}
