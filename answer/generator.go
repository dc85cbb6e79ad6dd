package answer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/recall/ai"
)

// MaxChunks is the number of ranked chunks used to build an answer.
const MaxChunks = 5

// DefaultCompletionOptions bounds answer length and sampling.
var DefaultCompletionOptions = ai.CompletionOptions{MaxTokens: 500, Temperature: 0.7}

// Strategy names which tier produced an answer.
type Strategy string

const (
	StrategyLLM        Strategy = "llm"
	StrategyExtractive Strategy = "extractive"
)

// Generator turns ranked chunks and a question into an answer.
// The chat model is optional; without one, or when it fails, the answer is
// extracted from the chunks directly.
type Generator struct {
	chat   ai.ChatModel
	opts   ai.CompletionOptions
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithCompletionOptions overrides DefaultCompletionOptions.
func WithCompletionOptions(opts ai.CompletionOptions) Option {
	return func(g *Generator) {
		g.opts = opts
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger.With("component", "answer")
	}
}

// NewGenerator creates a generator. chat may be nil.
func NewGenerator(chat ai.ChatModel, opts ...Option) *Generator {
	g := &Generator{
		chat:   chat,
		opts:   DefaultCompletionOptions,
		logger: slog.Default().With("component", "answer"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate answers question from rankedChunks. It never fails: chat errors
// degrade to the extractive fallback.
func (g *Generator) Generate(ctx context.Context, question string, rankedChunks []string) string {
	text, _ := g.GenerateWithStrategy(ctx, question, rankedChunks)
	return text
}

// GenerateWithStrategy is Generate that also reports which tier answered.
func (g *Generator) GenerateWithStrategy(ctx context.Context, question string, rankedChunks []string) (string, Strategy) {
	chunks := rankedChunks[:min(len(rankedChunks), MaxChunks)]

	if g.chat != nil {
		reply, err := g.chat.Complete(ctx, SystemPrompt, buildPrompt(question, chunks), g.opts)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply, StrategyLLM
		}
		g.logger.Warn("chat backend failed, using extractive answer", "err", err)
	}

	return Extractive(question, strings.Join(chunks, "\n"), MaxChunks), StrategyExtractive
}
