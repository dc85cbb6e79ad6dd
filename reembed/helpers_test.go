package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
	"github.com/stretchr/testify/require"
)

// mockEmbedder returns unnormalized vectors by default.
type mockEmbedder struct {
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls          int
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

func setupTestStore(t *testing.T, n int) (storage.VectorStore, []*core.IndexedRecord) {
	t.Helper()
	store, backend, err := badger.NewMemoryCollection("reembed")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	records := make([]*core.IndexedRecord, n)
	for i := range records {
		records[i] = &core.IndexedRecord{
			ID:        uuid.New(),
			Embedding: []float32{0, 0, 1},
			Document:  fmt.Sprintf("message %d", i),
			Metadata:  core.Metadata{core.KeyChannel: "general", core.KeyMessageCount: int64(1)},
		}
	}
	if n > 0 {
		require.NoError(t, store.Upsert(context.Background(), records...))
	}
	return store, records
}

func loadAll(t *testing.T, store storage.VectorStore) map[uuid.UUID]*core.IndexedRecord {
	t.Helper()
	out := map[uuid.UUID]*core.IndexedRecord{}
	require.NoError(t, store.Scan(context.Background(), storage.Where{}, func(r *core.IndexedRecord) error {
		out[r.ID] = r
		return nil
	}))
	return out
}
