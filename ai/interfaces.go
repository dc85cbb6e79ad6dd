package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionOptions bounds a single chat completion.
type CompletionOptions struct {
	// MaxTokens caps the length of the completion.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64
}

// ChatModel produces a text completion from a system prompt and a user prompt.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Complete returns the model's reply to prompt.
	// Returns an error if the backend call fails.
	Complete(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error)
}

// AIProvider aggregates the embedding and chat backends selected by configuration.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ChatModel returns the chat backend, or nil when none is configured.
	ChatModel() ChatModel

	// Close releases resources held by the provider and its services.
	Close() error
}
