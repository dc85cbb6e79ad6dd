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


package recall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/answer"
	"github.com/poiesic/recall/config"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/livesource"
	"github.com/poiesic/recall/livesync"
	"github.com/poiesic/recall/reembed"
	"github.com/poiesic/recall/search"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
)

// Engine wires the store, the AI provider and every pipeline from one
// configuration. It owns the storage backend and the provider.
type Engine struct {
	config      *config.Config
	backend     *badger.Backend
	store       storage.VectorStore
	checkpoints storage.CheckpointStore
	provider    ai.AIProvider
	indexer     *ingestion.Indexer
	pipeline    *search.Pipeline
	logger      *slog.Logger

	slackOptions []livesource.Option
	slackOnce    sync.Once
	slack        *livesource.Client
	slackErr     error
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider     ai.AIProvider
	inMemory     bool
	slackOptions []livesource.Option
	logger       *slog.Logger
}

// WithProvider uses provider instead of building one from the configuration.
// The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps the collection in memory instead of at
// config.Storage.Path.
func WithInMemoryStorage() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithSlackOptions passes extra options to the Slack client.
func WithSlackOptions(opts ...livesource.Option) EngineOption {
	return func(o *engineOptions) {
		o.slackOptions = append(o.slackOptions, opts...)
	}
}

// WithEngineLogger sets a custom logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine validates cfg, opens the collection and builds the pipelines.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := ingestion.ParseMode(cfg.Ingestion.ChunkingMode)
	if err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, options.inMemory)
	if err != nil {
		return nil, err
	}

	e, err := newEngine(cfg, backend, mode, options)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return e, nil
}

func newEngine(cfg *config.Config, backend *badger.Backend, mode ingestion.Mode, options *engineOptions) (*Engine, error) {
	ctx := context.Background()

	store, err := badger.NewCollection(backend, cfg.Storage.Collection)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	checkpoints, err := badger.NewCheckpointRepository(backend, cfg.Storage.Collection)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = NewProvider(cfg.AI())
		if err != nil {
			return nil, err
		}
	}

	logger := options.logger
	chunker := ingestion.NewChunker(
		ingestion.WithMode(mode),
		ingestion.WithMaxTokens(cfg.Ingestion.MaxTokens))

	indexer, err := ingestion.NewIndexer(store, provider.Embedder(),
		ingestion.WithChunker(chunker),
		ingestion.WithPoolSize(cfg.Ingestion.ParseWorkers),
		ingestion.WithLogger(logger))
	if err != nil {
		provider.Close()
		return nil, err
	}

	generator := answer.NewGenerator(provider.ChatModel(),
		answer.WithCompletionOptions(cfg.Completion()),
		answer.WithLogger(logger))
	pipeline, err := search.NewPipeline(store, provider,
		search.WithGenerator(generator),
		search.WithDefaultTopK(cfg.Search.TopK),
		search.WithLogger(logger))
	if err != nil {
		provider.Close()
		return nil, err
	}

	return &Engine{
		config:      cfg,
		backend:     backend,
		store:       store,
		checkpoints: checkpoints,
		provider:    provider,
		indexer:     indexer,
		pipeline:    pipeline,
		logger:      logger.With("component", "engine"),

		slackOptions: options.slackOptions,
	}, nil
}

// Close releases the provider and the storage backend.
func (e *Engine) Close() error {
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) Store() storage.VectorStore {
	return e.store
}

func (e *Engine) Indexer() *ingestion.Indexer {
	return e.indexer
}

func (e *Engine) Pipeline() *search.Pipeline {
	return e.pipeline
}

// IndexExport parses one export file and indexes it. Unless appendMode is
// set the collection is cleared first. An export with nothing to index
// returns core.ErrEmptyInput and leaves the collection untouched.
func (e *Engine) IndexExport(ctx context.Context, path string, appendMode bool) (int, error) {
	messages, err := ingestion.ParseFile(path)
	if err != nil {
		return 0, err
	}
	return e.indexer.IndexStrict(ctx, messages, ingestion.IndexOptions{Replace: !appendMode})
}

// IndexExports indexes several export files, appending to the collection.
func (e *Engine) IndexExports(ctx context.Context, paths []string) (*ingestion.FilesResult, error) {
	return e.indexer.IndexFiles(ctx, paths)
}

// Ask answers question from the indexed history.
// topK <= 0 uses the configured search.top_k.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (*core.SearchResult, error) {
	return e.pipeline.Answer(ctx, question, topK)
}

// Slack returns the Slack client, building it on first use.
func (e *Engine) Slack() (*livesource.Client, error) {
	e.slackOnce.Do(func() {
		if err := e.config.ValidateSlack(); err != nil {
			e.slackErr = err
			return
		}
		opts := []livesource.Option{
			livesource.WithRequestInterval(e.config.Slack.RequestInterval),
			livesource.WithLogger(e.logger),
		}
		if e.config.Slack.APIURL != "" {
			opts = append(opts, livesource.WithAPIURL(e.config.Slack.APIURL))
		}
		e.slack, e.slackErr = livesource.NewClient(e.config.Slack.Token, append(opts, e.slackOptions...)...)
	})
	return e.slack, e.slackErr
}

// SyncEngine builds a live sync engine over the Slack client.
func (e *Engine) SyncEngine() (*livesync.Engine, error) {
	client, err := e.Slack()
	if err != nil {
		return nil, err
	}
	return livesync.NewEngine(client, e.store, e.provider.Embedder(),
		livesync.WithChunker(e.indexer.Chunker()),
		livesync.WithMessageLimit(e.config.Slack.MessageLimit),
		livesync.WithCheckpoints(e.checkpoints),
		livesync.WithLogger(e.logger))
}

// Sync runs one live sync. hoursBack <= 0 uses sync.hours_back and a nil
// channels uses sync.channels.
func (e *Engine) Sync(ctx context.Context, hoursBack int, channels []string) (*core.SyncResult, error) {
	syncer, err := e.SyncEngine()
	if err != nil {
		return nil, err
	}
	if hoursBack <= 0 {
		hoursBack = e.config.Sync.HoursBack
	}
	if channels == nil {
		channels = e.config.Sync.Channels
	}
	return syncer.Sync(ctx, hoursBack, channels)
}

// NewScheduler builds a stopped scheduler from the sync section of the
// configuration. opts are applied after the configured values.
func (e *Engine) NewScheduler(opts ...livesync.SchedulerOption) (*livesync.Scheduler, error) {
	syncer, err := e.SyncEngine()
	if err != nil {
		return nil, err
	}
	sc := e.config.Sync
	base := []livesync.SchedulerOption{
		livesync.WithHoursBack(sc.HoursBack),
		livesync.WithChannels(sc.Channels),
		livesync.WithJitter(sc.Jitter),
		livesync.WithCooldown(sc.Cooldown),
		livesync.WithCron(sc.Cron),
		livesync.WithSchedulerLogger(e.logger),
	}
	if sc.Interval > 0 {
		base = append(base, livesync.WithInterval(sc.Interval))
	}
	if sc.StopTimeout > 0 {
		base = append(base, livesync.WithJoinTimeout(sc.StopTimeout))
	}
	return livesync.NewScheduler(syncer, append(base, opts...)...)
}

// Reembed replaces the embedding of every record using the configured
// embedder, writing progress to w.
func (e *Engine) Reembed(ctx context.Context, w io.Writer) (int, error) {
	r, err := reembed.NewReembedder(e.store, e.provider.Embedder(), nil, w)
	if err != nil {
		return 0, err
	}
	return r.Run(ctx)
}

// Stats describes the collection and the most recent sync of the
// configured window.
type Stats struct {
	Collection string
	Records    int
	Dimension  int
	CreatedAt  time.Time
	LastSync   *storage.SyncCheckpoint
}

// Stats reports collection statistics.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	info, err := e.store.Info(ctx)
	if err != nil {
		return nil, err
	}
	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	last, err := e.checkpoints.LoadCheckpoint(ctx, e.config.Sync.HoursBack)
	if err != nil {
		return nil, fmt.Errorf("loading sync checkpoint: %w", err)
	}
	return &Stats{
		Collection: info.Name,
		Records:    count,
		Dimension:  info.Dimension,
		CreatedAt:  info.CreatedAt,
		LastSync:   last,
	}, nil
}

// IsConfigError reports whether err was caused by missing or invalid settings.
func IsConfigError(err error) bool {
	return errors.Is(err, core.ErrConfiguration)
}
