package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/livesource"
	"github.com/poiesic/recall/storage"
)

// Source is the live message source read by the engine.
// *livesource.Client implements it.
type Source interface {
	TestConnection(ctx context.Context) (*livesource.Identity, error)
	ListChannels(ctx context.Context) ([]livesource.Channel, error)
	JoinChannel(ctx context.Context, channelID string) error
	FetchMessages(ctx context.Context, channelID string, oldest time.Time, limit int) ([]livesource.Message, error)
	UserName(ctx context.Context, userID string) (string, error)
}

var _ Source = (*livesource.Client)(nil)

// skippedSubtypes are automated or system messages that are never indexed.
var skippedSubtypes = map[string]bool{
	"bot_message":   true,
	"channel_join":  true,
	"channel_leave": true,
}

const (
	// DefaultMessageLimit caps the messages fetched per channel per run.
	DefaultMessageLimit = 1000

	// DefaultUserCacheSize bounds the per-run user name memo.
	DefaultUserCacheSize = 4096
)

// Engine pulls recent messages from a live source and replaces the matching
// sync window in the vector store.
type Engine struct {
	source        Source
	store         storage.VectorStore
	embedder      ai.Embedder
	chunker       *ingestion.Chunker
	checkpoints   storage.CheckpointStore
	messageLimit  int
	userCacheSize int
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunker sets the chunking policy. Default is ingestion.NewChunker().
func WithChunker(chunker *ingestion.Chunker) Option {
	return func(e *Engine) {
		if chunker != nil {
			e.chunker = chunker
		}
	}
}

// WithCheckpoints records the outcome of every completed sync.
func WithCheckpoints(checkpoints storage.CheckpointStore) Option {
	return func(e *Engine) {
		e.checkpoints = checkpoints
	}
}

// WithMessageLimit caps the messages fetched per channel.
func WithMessageLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.messageLimit = n
		}
	}
}

// WithUserCacheSize bounds the per-run user name memo.
func WithUserCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.userCacheSize = n
		}
	}
}

// WithNow sets the clock used for the window start and sync_time.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "livesync")
	}
}

// NewEngine creates a sync engine.
func NewEngine(source Source, store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		source:        source,
		store:         store,
		embedder:      embedder,
		chunker:       ingestion.NewChunker(),
		messageLimit:  DefaultMessageLimit,
		userCacheSize: DefaultUserCacheSize,
		now:           time.Now,
		logger:        slog.Default().With("component", "livesync"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// WindowFilter selects the records written by a sync with hoursBack.
func WindowFilter(hoursBack int) storage.Where {
	return storage.Where{
		core.KeySource:    core.SourceLiveSync,
		core.KeyHoursBack: int64(hoursBack),
	}
}

// Sync collects the last hoursBack hours from every channel (or only the
// channels named in channelFilter, by ID or name) and replaces the previous
// generation of records for the same hoursBack.
//
// Per-channel failures are recorded in the result and do not stop the run.
// An unusable credential fails immediately with core.ErrSourceAuth and an
// embedding failure aborts the run. A failed delete of the previous
// generation is logged and the new records are written anyway.
func (e *Engine) Sync(ctx context.Context, hoursBack int, channelFilter []string) (*core.SyncResult, error) {
	if hoursBack <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, hoursBack)
	}

	identity, err := e.source.TestConnection(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("sync started", "team", identity.Team, "hours_back", hoursBack, "filter", len(channelFilter))

	channels, err := e.resolveChannels(ctx, channelFilter)
	if err != nil {
		return nil, err
	}

	users, err := newUserNames(e.source, e.userCacheSize, e.logger)
	if err != nil {
		return nil, err
	}

	now := e.now()
	oldest := now.Add(-time.Duration(hoursBack) * time.Hour)
	result := &core.SyncResult{Errors: []string{}}

	var messages []core.Message
	for i, ch := range channels {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		collected, err := e.collect(ctx, ch, oldest, users)
		if err != nil {
			e.logger.Error("channel sync failed", "channel", ch.Name, "index", i+1, "channels", len(channels), "err", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ch.Name, err))
			continue
		}
		result.ChannelsSynced++
		if len(collected) > 0 {
			e.logger.Info("collected channel messages", "channel", ch.Name, "messages", len(collected))
		}
		messages = append(messages, collected...)
	}
	result.MessagesCollected = len(messages)

	chunks := e.chunker.Chunk(messages)
	if len(chunks) == 0 {
		e.logger.Info("no new messages to sync", "channels", result.ChannelsSynced)
		e.saveCheckpoint(ctx, hoursBack, now, result)
		return result, nil
	}

	records, err := ingestion.EmbedChunks(ctx, e.embedder, chunks, core.Metadata{
		core.KeySyncTime:  now.UTC().Format(time.RFC3339),
		core.KeySource:    core.SourceLiveSync,
		core.KeyHoursBack: int64(hoursBack),
	})
	if err != nil {
		return result, fmt.Errorf("embedding synced messages: %w", err)
	}

	deleted, err := e.store.DeleteWhere(ctx, WindowFilter(hoursBack))
	if err != nil {
		e.logger.Warn("failed to delete previous sync window, writing anyway", "hours_back", hoursBack, "err", err)
	} else if deleted > 0 {
		e.logger.Info("deleted previous sync window", "hours_back", hoursBack, "records", deleted)
	}

	if err := e.store.Upsert(ctx, records...); err != nil {
		return result, err
	}
	result.ChunksCreated = len(records)
	e.saveCheckpoint(ctx, hoursBack, now, result)

	e.logger.Info("sync finished",
		"channels", result.ChannelsSynced,
		"messages", result.MessagesCollected,
		"chunks", result.ChunksCreated,
		"errors", len(result.Errors))
	return result, nil
}

// saveCheckpoint failures are logged only; the records are already written.
func (e *Engine) saveCheckpoint(ctx context.Context, hoursBack int, now time.Time, result *core.SyncResult) {
	if e.checkpoints == nil {
		return
	}
	err := e.checkpoints.SaveCheckpoint(ctx, &storage.SyncCheckpoint{
		HoursBack:         hoursBack,
		SyncedAt:          now.UTC(),
		ChannelsSynced:    result.ChannelsSynced,
		MessagesCollected: result.MessagesCollected,
		ChunksCreated:     result.ChunksCreated,
		ErrorCount:        len(result.Errors),
	})
	if err != nil {
		e.logger.Warn("failed to save sync checkpoint", "hours_back", hoursBack, "err", err)
	}
}

// resolveChannels maps the filter onto listed channels by ID or name. Entries
// that match nothing are used as IDs, as are all entries when listing fails.
func (e *Engine) resolveChannels(ctx context.Context, filter []string) ([]livesource.Channel, error) {
	if len(filter) == 0 {
		return e.source.ListChannels(ctx)
	}

	listed, err := e.source.ListChannels(ctx)
	if err != nil {
		e.logger.Warn("could not list channels, using filter as IDs", "err", err)
		listed = nil
	}

	channels := make([]livesource.Channel, 0, len(filter))
	for _, want := range filter {
		found := livesource.Channel{ID: want, Name: want}
		for _, ch := range listed {
			if ch.ID == want || ch.Name == want {
				found = ch
				break
			}
		}
		channels = append(channels, found)
	}
	return channels, nil
}

// collect fetches one channel and converts its messages.
func (e *Engine) collect(ctx context.Context, ch livesource.Channel, oldest time.Time, users *userNames) ([]core.Message, error) {
	if !ch.IsMember {
		if err := e.source.JoinChannel(ctx, ch.ID); err != nil {
			e.logger.Warn("failed to join channel", "channel", ch.Name, "err", err)
		}
	}

	raw, err := e.source.FetchMessages(ctx, ch.ID, oldest, e.messageLimit)
	if err != nil {
		return nil, err
	}

	messages := make([]core.Message, 0, len(raw))
	for _, m := range raw {
		if skippedSubtypes[m.SubType] || m.Text == "" {
			continue
		}
		text := ingestion.Normalize(m.Text)
		if text == "" {
			continue
		}
		messages = append(messages, core.Message{
			Author:    users.resolve(ctx, m.User),
			Text:      text,
			Timestamp: m.TS,
			Channel:   ch.Name,
			ThreadID:  m.ThreadTS,
		})
	}
	return messages, nil
}
