package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/poiesic/recall/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReembedder(t *testing.T) {
	store, _ := setupTestStore(t, 0)

	_, err := NewReembedder(nil, &mockEmbedder{}, nil, nil)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewReembedder(store, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	r, err := NewReembedder(store, &mockEmbedder{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReembedder_Run(t *testing.T) {
	store, records := setupTestStore(t, 10)
	ctx := context.Background()

	var buf bytes.Buffer
	embedder := &mockEmbedder{}
	config := &Config{
		BatchSize:      3,
		ReportInterval: 3,
	}

	r, err := NewReembedder(store, embedder, config, &buf)
	require.NoError(t, err)

	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 4, embedder.calls, "batches of 3,3,3,1")

	stored := loadAll(t, store)
	require.Len(t, stored, 10)
	for _, original := range records {
		got := stored[original.ID]
		require.NotNil(t, got)
		assert.Equal(t, original.Document, got.Document)
		var magnitude float32
		for _, v := range got.Embedding {
			magnitude += v * v
		}
		assert.InDelta(t, 1.0, magnitude, 0.01, "vector should be normalized")
		assert.NotEqual(t, []float32{0, 0, 1}, got.Embedding)
	}

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 records (batch size: 3)")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Reembedding complete. Processed 10 records")
}

func TestReembedder_EmptyCollection(t *testing.T) {
	store, _ := setupTestStore(t, 0)

	var buf bytes.Buffer
	embedder := &mockEmbedder{}
	r, err := NewReembedder(store, embedder, DefaultConfig(), &buf)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, embedder.calls)
	assert.Contains(t, buf.String(), "0 records")
}

func TestReembedder_StopsOnBatchFailure(t *testing.T) {
	store, _ := setupTestStore(t, 6)

	embedder := &mockEmbedder{}
	embedder.embedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if embedder.calls > 1 {
			return nil, errors.New("quota exceeded")
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{3, 4, 0}
		}
		return out, nil
	}

	r, err := NewReembedder(store, embedder, &Config{BatchSize: 3, ReportInterval: 1}, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 3, n, "first batch was written")

	updated := 0
	for _, rec := range loadAll(t, store) {
		if rec.Embedding[0] != 0 {
			updated++
		}
	}
	assert.Equal(t, 3, updated)
}

func TestReembedder_FailingBatchUsesOneAttemptBudget(t *testing.T) {
	store, _ := setupTestStore(t, 2)

	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}}
	retrying, err := ai.NewBatchEmbedder(embedder, ai.WithRetryPolicy(3, fastBackoff))
	require.NoError(t, err)

	r, err := NewReembedder(store, retrying, &Config{BatchSize: 10, ReportInterval: 1}, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, embedder.calls, "one failing batch costs exactly the embedder's attempts")
}
