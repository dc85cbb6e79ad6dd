// Package anthropic provides a chat implementation backed by the Anthropic
// Messages API. Anthropic offers no embedding endpoint, so pair it with an
// openai or ollama embedder.
package anthropic

import (
	"github.com/poiesic/recall/ai"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// NewChatModel creates a chat model such as claude-3-haiku-20240307.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	opts := []anthropic.Option{
		anthropic.WithToken(config.ChatAPIKey),
		anthropic.WithModel(config.ChatModel),
	}
	if config.ChatHost != "" {
		opts = append(opts, anthropic.WithBaseURL(config.ChatHost))
	}
	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, err
	}
	return ai.NewLangchainChat(client, "anthropic-chat"), nil
}
