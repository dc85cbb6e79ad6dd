package openai

import (
	"github.com/poiesic/recall/ai"
	"github.com/tmc/langchaingo/llms/openai"
)

// newChatModel is an internal constructor that returns the concrete type.
func newChatModel(config *ai.Config) (*ai.LangchainChat, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []openai.Option{
		openai.WithToken(tokenOrNone(config.ChatAPIKey)),
		openai.WithModel(config.ChatModel),
	}
	if config.ChatHost != "" {
		opts = append(opts, openai.WithBaseURL(config.ChatHost))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return ai.NewLangchainChat(client, "openai-chat"), nil
}

// NewChatModel creates a chat model backed by the OpenAI chat completions API.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}
