package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/answer"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// NotFoundAnswer is returned when the collection has no matches.
const NotFoundAnswer = "No related conversations were found."

const (
	// DefaultTopK is the number of records queried when the caller passes 0.
	DefaultTopK = 10

	// PreviewRunes is the maximum length of a source preview.
	PreviewRunes = 200
)

// Pipeline answers questions from the vector store: embed the question,
// query nearest records, generate an answer from the top documents.
type Pipeline struct {
	store       storage.VectorStore
	embedder    ai.Embedder
	generator   *answer.Generator
	defaultTopK int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "search")
		return nil
	}
}

// WithGenerator replaces the answer generator built from the provider's chat model.
func WithGenerator(g *answer.Generator) Option {
	return func(p *Pipeline) error {
		if g != nil {
			p.generator = g
		}
		return nil
	}
}

// WithDefaultTopK sets the number of records queried when Answer gets topK <= 0.
func WithDefaultTopK(k int) Option {
	return func(p *Pipeline) error {
		if k > 0 {
			p.defaultTopK = k
		}
		return nil
	}
}

// NewPipeline creates a retrieval pipeline.
func NewPipeline(store storage.VectorStore, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		store:       store,
		embedder:    provider.Embedder(),
		defaultTopK: DefaultTopK,
		logger:      slog.Default().With("component", "search"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.generator == nil {
		p.generator = answer.NewGenerator(provider.ChatModel(), answer.WithLogger(p.logger))
	}
	return p, nil
}

// Answer retrieves the records nearest to question and answers from them.
func (p *Pipeline) Answer(ctx context.Context, question string, topK int) (*core.SearchResult, error) {
	return p.AnswerWithMonitor(ctx, question, topK, nil)
}

// AnswerWithMonitor is Answer with stage callbacks.
func (p *Pipeline) AnswerWithMonitor(ctx context.Context, question string, topK int, monitor Monitor) (*core.SearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = p.defaultTopK
	}

	monitor.Start(question)

	vectors, err := p.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		p.logger.Error("error generating embedding for question", "err", err)
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, ai.ErrEmbeddingCountMismatch
	}
	monitor.AfterEmbedding(len(vectors[0]))

	matches, err := p.store.Query(ctx, vectors[0], topK)
	if err != nil {
		p.logger.Error("error querying for similar records", "err", err)
		return nil, err
	}
	monitor.AfterQuery(matches)

	result := &core.SearchResult{Query: question, Sources: []core.Source{}}
	if len(matches) == 0 {
		result.Answer = NotFoundAnswer
		monitor.Finish(result)
		return result, nil
	}

	top := matches[:min(len(matches), answer.MaxChunks)]
	documents := make([]string, len(top))
	for i, m := range top {
		documents[i] = m.Record.Document
		result.Sources = append(result.Sources, core.Source{
			Text:     Preview(m.Record.Document),
			Metadata: m.Record.Metadata,
			Distance: m.Distance,
		})
	}

	text, strategy := p.generator.GenerateWithStrategy(ctx, question, documents)
	monitor.AfterGenerate(text, strategy)
	result.Answer = text

	p.logger.Debug("answered question", "matches", len(matches), "strategy", strategy)
	monitor.Finish(result)
	return result, nil
}

// Preview truncates text to PreviewRunes runes, appending "…" when cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewRunes]) + "…"
}

// Similarity converts a cosine distance into a display score.
func Similarity(distance float32) float32 {
	return 1 - distance
}
