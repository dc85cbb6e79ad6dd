package recall

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/anthropic"
	"github.com/poiesic/recall/ai/ollama"
	"github.com/poiesic/recall/ai/openai"
)

// Provider implements ai.AIProvider by combining the embedding and chat
// backends named in an ai.Config. The embedder is always wrapped with
// batching, retry, pacing and (optionally) a content cache.
type Provider struct {
	config   *ai.Config
	embedder ai.Embedder
	chat     ai.ChatModel
	logger   *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider builds the backends selected by config.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	return newProvider(config)
}

func newProvider(config *ai.Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var backend ai.Embedder
	var err error
	switch config.EmbeddingBackend {
	case ai.BackendOpenAI:
		backend, err = openai.NewEmbedder(config)
	case ai.BackendOllama:
		backend, err = ollama.NewEmbedder(config)
	default:
		err = fmt.Errorf("%w: %s", ai.ErrUnknownBackend, config.EmbeddingBackend)
	}
	if err != nil {
		return nil, err
	}

	embedder, err := decorateEmbedder(backend, config)
	if err != nil {
		return nil, err
	}

	var chat ai.ChatModel
	switch config.ChatBackend {
	case ai.BackendNone:
	case ai.BackendOpenAI:
		chat, err = openai.NewChatModel(config)
	case ai.BackendAnthropic:
		chat, err = anthropic.NewChatModel(config)
	case ai.BackendOllama:
		chat, err = ollama.NewChatModel(config)
	default:
		err = fmt.Errorf("%w: %s", ai.ErrUnknownBackend, config.ChatBackend)
	}
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "provider")
	logger.Debug("ai provider ready",
		"embedding_backend", config.EmbeddingBackend,
		"embedding_model", config.EmbeddingModel,
		"chat_backend", config.ChatBackend)

	return &Provider{
		config:   config,
		embedder: embedder,
		chat:     chat,
		logger:   logger,
	}, nil
}

// decorateEmbedder applies the request discipline shared by every backend.
func decorateEmbedder(backend ai.Embedder, config *ai.Config) (ai.Embedder, error) {
	batched, err := ai.NewBatchEmbedder(backend,
		ai.WithBatchSizeLimit(config.BatchSize),
		ai.WithRetryPolicy(config.MaxAttempts, config.Backoff),
		ai.WithMinInterval(config.RequestInterval),
	)
	if err != nil {
		return nil, err
	}
	if config.CacheSize == 0 {
		return batched, nil
	}
	return ai.NewCachingEmbedder(batched, config.EmbeddingModel, config.CacheSize)
}

// Embedder returns the decorated embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// ChatModel returns the chat backend, or nil when none is configured.
func (p *Provider) ChatModel() ai.ChatModel {
	return p.chat
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
