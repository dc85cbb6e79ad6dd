package livesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/livesource"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	authErr   error
	listErr   error
	channels  []livesource.Channel
	messages  map[string][]livesource.Message
	fetchErrs map[string]error
	names     map[string]string
	joined    []string
	lookups   int
	oldest    time.Time
}

func (f *fakeSource) TestConnection(ctx context.Context) (*livesource.Identity, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &livesource.Identity{Team: "acme", User: "recall"}, nil
}

func (f *fakeSource) ListChannels(ctx context.Context) ([]livesource.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeSource) JoinChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, channelID)
	return nil
}

func (f *fakeSource) FetchMessages(ctx context.Context, channelID string, oldest time.Time, limit int) ([]livesource.Message, error) {
	f.mu.Lock()
	f.oldest = oldest
	f.mu.Unlock()
	if err := f.fetchErrs[channelID]; err != nil {
		return nil, err
	}
	return f.messages[channelID], nil
}

func (f *fakeSource) UserName(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()
	if name, ok := f.names[userID]; ok {
		return name, nil
	}
	return "", errors.New("user_not_found")
}

// failingDeleteStore fails DeleteWhere and passes everything else through.
type failingDeleteStore struct {
	storage.VectorStore
}

func (s failingDeleteStore) DeleteWhere(ctx context.Context, where storage.Where) (int, error) {
	return 0, errors.New("delete unavailable")
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFakeSource() *fakeSource {
	return &fakeSource{
		channels: []livesource.Channel{
			{ID: "C1", Name: "general", IsMember: true},
			{ID: "C2", Name: "ops"},
		},
		messages: map[string][]livesource.Message{
			"C1": {
				{User: "U1", Text: "standup moved to 10am", TS: "1700000000.000100"},
				{User: "U2", Text: "ack <@U1>", TS: "1700000001.000100"},
				{User: "U1", Text: "joined", TS: "1700000002.000100", SubType: "channel_join"},
				{User: "B1", Text: "build green", TS: "1700000003.000100", SubType: "bot_message"},
				{User: "U2", Text: "", TS: "1700000004.000100"},
			},
			"C2": {
				{User: "U9", Text: "disk full on db-2", TS: "1700000005.000100"},
			},
		},
		names: map[string]string{"U1": "alice", "U2": "bob"},
	}
}

func setupEngine(t *testing.T, src Source, opts ...Option) (*Engine, storage.VectorStore, *mock.MockEmbedder) {
	t.Helper()
	store, backend, err := badger.NewMemoryCollection("sync")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder()
	opts = append([]Option{WithNow(func() time.Time { return fixedNow })}, opts...)
	e, err := NewEngine(src, store, embedder, opts...)
	require.NoError(t, err)
	return e, store, embedder
}

func collect(t *testing.T, store storage.VectorStore, where storage.Where) []*core.IndexedRecord {
	t.Helper()
	var out []*core.IndexedRecord
	require.NoError(t, store.Scan(context.Background(), where, func(r *core.IndexedRecord) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestNewEngine(t *testing.T) {
	store, backend, err := badger.NewMemoryCollection("sync")
	require.NoError(t, err)
	defer backend.Close()
	embedder := mock.NewMockEmbedder()

	tests := []struct {
		name    string
		source  Source
		store   storage.VectorStore
		embed   ai.Embedder
		wantErr error
	}{
		{"missing source", nil, store, embedder, ErrSourceRequired},
		{"missing store", newFakeSource(), nil, embedder, ErrVectorStoreRequired},
		{"missing embedder", newFakeSource(), store, nil, ErrEmbedderRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.source, tt.store, tt.embed)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_Sync(t *testing.T) {
	src := newFakeSource()
	e, store, embedder := setupEngine(t, src)
	ctx := context.Background()

	result, err := e.Sync(ctx, 24, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChannelsSynced)
	assert.Equal(t, 3, result.MessagesCollected)
	assert.Equal(t, 3, result.ChunksCreated)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, embedder.CallCount())

	assert.Equal(t, []string{"C2"}, src.joined, "only non-member channels are joined")
	assert.Equal(t, fixedNow.Add(-24*time.Hour), src.oldest)

	records := collect(t, store, WindowFilter(24))
	require.Len(t, records, 3)
	byText := map[string]*core.IndexedRecord{}
	for _, r := range records {
		byText[r.Document] = r
	}

	r := byText["ack @user"]
	require.NotNil(t, r, "mentions are normalized")
	assert.Equal(t, "bob", r.Metadata[core.KeyUser])
	assert.Equal(t, "general", r.Metadata[core.KeyChannel])
	assert.Equal(t, core.SourceLiveSync, r.Metadata[core.KeySource])
	assert.Equal(t, int64(24), r.Metadata[core.KeyHoursBack])
	assert.Equal(t, "2026-03-01T12:00:00Z", r.Metadata[core.KeySyncTime])

	r = byText["disk full on db-2"]
	require.NotNil(t, r)
	assert.Equal(t, "U9", r.Metadata[core.KeyUser], "failed lookups fall back to the raw ID")
	assert.Equal(t, "ops", r.Metadata[core.KeyChannel])
}

func TestEngine_SyncMemoizesUsers(t *testing.T) {
	src := newFakeSource()
	e, _, _ := setupEngine(t, src)

	_, err := e.Sync(context.Background(), 24, nil)
	require.NoError(t, err)
	// U1, U2 and U9 each resolved once.
	assert.Equal(t, 3, src.lookups)
}

func TestEngine_SyncPartialFailure(t *testing.T) {
	src := newFakeSource()
	src.fetchErrs = map[string]error{"C2": errors.New("channel_not_found")}
	e, store, _ := setupEngine(t, src)

	result, err := e.Sync(context.Background(), 24, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChannelsSynced)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ops: ")
	assert.Contains(t, result.Errors[0], "channel_not_found")

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEngine_SyncNoMessages(t *testing.T) {
	src := newFakeSource()
	e, store, embedder := setupEngine(t, src)
	ctx := context.Background()

	_, err := e.Sync(ctx, 24, nil)
	require.NoError(t, err)

	src.messages = map[string][]livesource.Message{}
	result, err := e.Sync(ctx, 24, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChannelsSynced)
	assert.Zero(t, result.MessagesCollected)
	assert.Zero(t, result.ChunksCreated)
	assert.Equal(t, 1, embedder.CallCount(), "no embedding without messages")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "previous generation is kept when nothing new arrives")
}

func TestEngine_SyncReplacesSameWindowOnly(t *testing.T) {
	src := newFakeSource()
	e, store, _ := setupEngine(t, src)
	ctx := context.Background()

	ix, err := ingestion.NewIndexer(store, mock.NewMockEmbedder())
	require.NoError(t, err)
	_, err = ix.Index(ctx, []core.Message{
		{Author: "dana", Text: "from the archive", Timestamp: "1", Channel: "history"},
	}, ingestion.IndexOptions{})
	require.NoError(t, err)

	_, err = e.Sync(ctx, 24, nil)
	require.NoError(t, err)
	_, err = e.Sync(ctx, 48, nil)
	require.NoError(t, err)

	src.messages["C1"] = []livesource.Message{{User: "U1", Text: "new day", TS: "1700100000.000100"}}
	_, err = e.Sync(ctx, 24, nil)
	require.NoError(t, err)

	day := collect(t, store, WindowFilter(24))
	assert.Len(t, day, 2, "only the latest 24h generation remains")
	assert.Len(t, collect(t, store, WindowFilter(48)), 3, "48h window untouched")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count, "file-indexed record untouched")
}

func TestEngine_SyncDeleteFailureIsNonFatal(t *testing.T) {
	src := newFakeSource()
	store, backend, err := badger.NewMemoryCollection("sync")
	require.NoError(t, err)
	defer backend.Close()

	e, err := NewEngine(src, failingDeleteStore{store}, mock.NewMockEmbedder())
	require.NoError(t, err)

	result, err := e.Sync(context.Background(), 24, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunksCreated)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEngine_SyncEmbeddingFailureAborts(t *testing.T) {
	src := newFakeSource()
	e, store, embedder := setupEngine(t, src)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, core.ErrTransientProvider
	}

	result, err := e.Sync(context.Background(), 24, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransientProvider)
	require.NotNil(t, result)
	assert.Zero(t, result.ChunksCreated)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEngine_SyncAuthFailure(t *testing.T) {
	src := newFakeSource()
	src.authErr = core.ErrSourceAuth
	e, _, embedder := setupEngine(t, src)

	result, err := e.Sync(context.Background(), 24, nil)
	assert.ErrorIs(t, err, core.ErrSourceAuth)
	assert.Nil(t, result)
	assert.Zero(t, embedder.CallCount())
}

func TestEngine_SyncInvalidWindow(t *testing.T) {
	e, _, _ := setupEngine(t, newFakeSource())
	for _, hours := range []int{0, -5} {
		_, err := e.Sync(context.Background(), hours, nil)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	}
}

func TestEngine_SyncChannelFilter(t *testing.T) {
	tests := []struct {
		name       string
		filter     []string
		listErr    error
		wantSynced int
		wantChunks int
	}{
		{"by name", []string{"ops"}, nil, 1, 1},
		{"by id", []string{"C1"}, nil, 1, 2},
		{"unknown entry used as id", []string{"C404"}, nil, 1, 0},
		{"list failure falls back to ids", []string{"C2"}, errors.New("boom"), 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.listErr = tt.listErr
			e, _, _ := setupEngine(t, src)

			result, err := e.Sync(context.Background(), 6, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSynced, result.ChannelsSynced)
			assert.Equal(t, tt.wantChunks, result.ChunksCreated)
		})
	}
}

func TestEngine_SyncWindowedChunks(t *testing.T) {
	src := newFakeSource()
	e, store, _ := setupEngine(t, src,
		WithChunker(ingestion.NewChunker(ingestion.WithMode(ingestion.ModeWindowed))))

	result, err := e.Sync(context.Background(), 24, []string{"general"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated)

	records := collect(t, store, WindowFilter(24))
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].Metadata[core.KeyMessageCount])
	assert.Equal(t, "alice,bob", records[0].Metadata[core.KeyUsers])
}

func TestEngine_SyncSavesCheckpoint(t *testing.T) {
	store, backend, err := badger.NewMemoryCollection("sync")
	require.NoError(t, err)
	defer backend.Close()
	checkpoints, err := badger.NewCheckpointRepository(backend, "sync")
	require.NoError(t, err)

	src := newFakeSource()
	src.fetchErrs = map[string]error{"C2": errors.New("not_in_channel")}
	e, err := NewEngine(src, store, mock.NewMockEmbedder(),
		WithCheckpoints(checkpoints),
		WithNow(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	_, err = e.Sync(context.Background(), 24, nil)
	require.NoError(t, err)

	cp, err := checkpoints.LoadCheckpoint(context.Background(), 24)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, fixedNow.Equal(cp.SyncedAt))
	assert.Equal(t, 1, cp.ChannelsSynced)
	assert.Equal(t, 2, cp.ChunksCreated)
	assert.Equal(t, 1, cp.ErrorCount)
}
