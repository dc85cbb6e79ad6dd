package recall

import (
	"testing"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	t.Run("default ollama embeddings without chat", func(t *testing.T) {
		p, err := newProvider(ai.DefaultConfig())
		require.NoError(t, err)
		defer p.Close()

		assert.NotNil(t, p.Embedder())
		assert.Nil(t, p.ChatModel())
		assert.IsType(t, &ai.CachingEmbedder{}, p.Embedder())
	})

	t.Run("cache disabled leaves batch embedder", func(t *testing.T) {
		p, err := newProvider(ai.NewConfig(ai.WithCacheSize(0)))
		require.NoError(t, err)
		assert.IsType(t, &ai.BatchEmbedder{}, p.Embedder())
	})

	t.Run("mixed backends", func(t *testing.T) {
		p, err := newProvider(ai.NewConfig(
			ai.WithEmbeddingBackend(ai.BackendOpenAI),
			ai.WithEmbeddingAPIKey("sk-test"),
			ai.WithEmbeddingModel("text-embedding-3-small"),
			ai.WithChatBackend(ai.BackendAnthropic),
			ai.WithChatAPIKey("ak-test"),
			ai.WithChatModel("claude-3-haiku-20240307"),
		))
		require.NoError(t, err)
		assert.NotNil(t, p.Embedder())
		assert.NotNil(t, p.ChatModel())
	})

	t.Run("ollama chat", func(t *testing.T) {
		p, err := newProvider(ai.NewConfig(
			ai.WithChatBackend(ai.BackendOllama),
			ai.WithChatHost("http://localhost:11434"),
			ai.WithChatModel("llama3"),
		))
		require.NoError(t, err)
		assert.NotNil(t, p.ChatModel())
	})

	t.Run("missing key is a configuration error", func(t *testing.T) {
		_, err := NewProvider(ai.NewConfig(
			ai.WithEmbeddingBackend(ai.BackendOpenAI),
			ai.WithEmbeddingHost(""),
		))
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}
