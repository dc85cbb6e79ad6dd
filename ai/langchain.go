package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// ErrEmptyCompletion is returned when a chat backend replies with no text.
var ErrEmptyCompletion = errors.New("model returned no completion")

// LangchainEmbedder adapts a langchaingo embedder to Embedder.
type LangchainEmbedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

var _ Embedder = (*LangchainEmbedder)(nil)

// NewLangchainEmbedder wraps e. component names the backend in log output.
func NewLangchainEmbedder(e embeddings.Embedder, component string) *LangchainEmbedder {
	return &LangchainEmbedder{
		embedder: e,
		logger:   slog.Default().With("component", component),
	}
}

// EmbedText generates a vector embedding for a single text string.
func (e *LangchainEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmbeddingCountMismatch
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings.
func (e *LangchainEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}

// LangchainChat adapts a langchaingo model to ChatModel.
type LangchainChat struct {
	client llms.Model
	logger *slog.Logger
}

var _ ChatModel = (*LangchainChat)(nil)

// NewLangchainChat wraps client. component names the backend in log output.
func NewLangchainChat(client llms.Model, component string) *LangchainChat {
	return &LangchainChat{
		client: client,
		logger: slog.Default().With("component", component),
	}
}

// Complete sends a system and a human message and returns the first choice.
func (c *LangchainChat) Complete(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(system),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	var callOpts []llms.CallOption
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))

	response, err := c.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		c.logger.Error("failed to generate content", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	c.logger.Debug("generated completion", "length", len(text))
	return text, nil
}
