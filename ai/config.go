// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/recall/core"
)

// Backend names accepted in configuration.
const (
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
	BackendNone      = "none"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingBackend selects the embedding implementation.
	// "openai" for the hosted API (or any OpenAI-compatible server), "ollama" for a local model.
	EmbeddingBackend string

	// EmbeddingHost is the base URL for the embedding service API.
	// Empty means the backend's public default.
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small", "all-minilm"
	EmbeddingModel string

	// EmbeddingAPIKey authenticates against the hosted embedding API.
	EmbeddingAPIKey string

	// ChatBackend selects the chat implementation: "openai", "anthropic", "ollama" or "none".
	ChatBackend string

	// ChatHost is the base URL for the chat service API.
	ChatHost string

	// ChatModel is the model identifier used to generate answers.
	// Example: "gpt-4o-mini", "claude-3-haiku-20240307"
	ChatModel string

	// ChatAPIKey authenticates against the hosted chat API.
	ChatAPIKey string

	// BatchSize is the number of texts sent per embedding request.
	// Default: 10
	BatchSize int

	// MaxAttempts is the total number of tries per embedding batch.
	// Default: 3
	MaxAttempts int

	// Backoff is the delay policy between attempts.
	Backoff Backoff

	// RequestInterval is the minimum spacing between embedding requests.
	// Zero selects a backend default (1s hosted, 100ms local).
	RequestInterval time.Duration

	// CacheSize is the number of embeddings kept in memory. Zero disables caching.
	CacheSize int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingBackend sets the embedding backend name.
func WithEmbeddingBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBackend = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingAPIKey sets the embedding API key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithChatBackend sets the chat backend name.
func WithChatBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.ChatBackend = backend
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithChatAPIKey sets the chat API key.
func WithChatAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.ChatAPIKey = key
	}
}

// WithBatchSize sets the embedding batch size.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithRetry sets the attempt budget and backoff policy for embedding batches.
func WithRetry(maxAttempts int, backoff Backoff) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = maxAttempts
		c.Backoff = backoff
	}
}

// WithRequestInterval sets the minimum spacing between embedding requests.
func WithRequestInterval(interval time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestInterval = interval
	}
}

// WithCacheSize sets the embedding cache capacity.
func WithCacheSize(size int) ConfigOption {
	return func(c *Config) {
		c.CacheSize = size
	}
}

// DefaultConfig returns a Config that embeds with a local Ollama model and
// answers without an LLM. It works with no credentials.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingBackend: BackendOllama,
		EmbeddingHost:    "http://localhost:11434",
		EmbeddingModel:   "all-minilm",
		ChatBackend:      BackendNone,
		BatchSize:        10,
		MaxAttempts:      3,
		Backoff:          DefaultBackoff(),
		CacheSize:        1024,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingBackend(BackendOpenAI),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	    WithEmbeddingAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Backend names are lowercased, OpenAI-compatible hosts get a /v1 suffix,
// and Ollama hosts lose one.
func (c *Config) Normalize() {
	c.EmbeddingBackend = strings.ToLower(strings.TrimSpace(c.EmbeddingBackend))
	c.ChatBackend = strings.ToLower(strings.TrimSpace(c.ChatBackend))
	if c.ChatBackend == "" {
		c.ChatBackend = BackendNone
	}
	c.EmbeddingHost = normalizeHost(c.EmbeddingBackend, c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatBackend, c.ChatHost)
	if c.RequestInterval == 0 {
		if c.EmbeddingBackend == BackendOpenAI && c.EmbeddingHost == "" {
			c.RequestInterval = time.Second
		} else {
			c.RequestInterval = 100 * time.Millisecond
		}
	}
}

func normalizeHost(backend, host string) string {
	if host == "" {
		return ""
	}
	host = strings.TrimSuffix(host, "/")
	switch backend {
	case BackendOpenAI:
		if !strings.HasSuffix(host, "/v1") {
			host += "/v1"
		}
	case BackendOllama:
		host = strings.TrimSuffix(host, "/v1")
	}
	return host
}

// HasChat reports whether a chat backend is configured.
func (c *Config) HasChat() bool {
	return c.ChatBackend != "" && c.ChatBackend != BackendNone
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
// Missing credentials are reported as core.ErrConfiguration.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.EmbeddingBackend {
	case BackendOpenAI:
		if c.EmbeddingAPIKey == "" && c.EmbeddingHost == "" {
			return fmt.Errorf("%w: no provider key configured for openai embeddings (set OPENAI_API_KEY or use the ollama backend)", core.ErrConfiguration)
		}
	case BackendOllama:
		if c.EmbeddingHost == "" {
			return fmt.Errorf("%w: ai config: EmbeddingHost is required for ollama", core.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: %w: embedding backend %q", core.ErrConfiguration, ErrUnknownBackend, c.EmbeddingBackend)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: ai config: EmbeddingModel is required", core.ErrConfiguration)
	}

	switch c.ChatBackend {
	case BackendNone:
	case BackendOpenAI:
		if c.ChatAPIKey == "" && c.ChatHost == "" {
			return fmt.Errorf("%w: no provider key configured for openai chat (set OPENAI_API_KEY or chat backend none)", core.ErrConfiguration)
		}
	case BackendAnthropic:
		if c.ChatAPIKey == "" {
			return fmt.Errorf("%w: no provider key configured for anthropic chat (set ANTHROPIC_API_KEY or chat backend none)", core.ErrConfiguration)
		}
	case BackendOllama:
		if c.ChatHost == "" {
			return fmt.Errorf("%w: ai config: ChatHost is required for ollama", core.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: %w: chat backend %q", core.ErrConfiguration, ErrUnknownBackend, c.ChatBackend)
	}
	if c.HasChat() && c.ChatModel == "" {
		return fmt.Errorf("%w: ai config: ChatModel is required", core.ErrConfiguration)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("%w: ai config: BatchSize must be positive", core.ErrConfiguration)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: ai config: MaxAttempts must be positive", core.ErrConfiguration)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: ai config: CacheSize must not be negative", core.ErrConfiguration)
	}
	return nil
}
