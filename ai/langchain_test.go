package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	reply    *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}
	return f.reply, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

type fakeEmbedder struct {
	vectors [][]float32
	err     error
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return f.vectors, f.err
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[0], nil
}

func TestLangchainChat_Complete(t *testing.T) {
	model := &fakeModel{reply: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "  Roll back to v1.2.  "}},
	}}
	chat := NewLangchainChat(model, "test-chat")

	answer, err := chat.Complete(context.Background(), "be brief", "what broke?", CompletionOptions{MaxTokens: 500, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Roll back to v1.2.", answer)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, 500, model.options.MaxTokens)
	assert.InDelta(t, 0.7, model.options.Temperature, 1e-9)
}

func TestLangchainChat_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
		want  error
	}{
		{"backend error", &fakeModel{err: errors.New("401")}, nil},
		{"no choices", &fakeModel{reply: &llms.ContentResponse{}}, ErrEmptyCompletion},
		{"blank choice", &fakeModel{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: " \n"}}}}, ErrEmptyCompletion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLangchainChat(tt.model, "test-chat").Complete(context.Background(), "s", "p", CompletionOptions{})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLangchainEmbedder(t *testing.T) {
	e := NewLangchainEmbedder(&fakeEmbedder{vectors: [][]float32{{1, 2}, {3, 4}}}, "test-embed")

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	v, err := e.EmbedText(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)

	empty := NewLangchainEmbedder(&fakeEmbedder{}, "test-embed")
	_, err = empty.EmbedText(context.Background(), "a")
	assert.ErrorIs(t, err, ErrEmbeddingCountMismatch)

	failing := NewLangchainEmbedder(&fakeEmbedder{err: errors.New("down")}, "test-embed")
	_, err = failing.EmbedTexts(context.Background(), []string{"a"})
	assert.Error(t, err)
}
