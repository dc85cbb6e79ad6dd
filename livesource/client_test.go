package livesource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlack struct {
	*httptest.Server
	authError   string
	joinError   string
	historyHits atomic.Int32
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()
	f := &fakeSlack{}
	mux := http.NewServeMux()

	mux.HandleFunc("/auth.test", func(w http.ResponseWriter, r *http.Request) {
		if f.authError != "" {
			writeJSON(w, map[string]any{"ok": false, "error": f.authError})
			return
		}
		writeJSON(w, map[string]any{
			"ok": true, "team": "Acme", "team_id": "T1",
			"user": "recall-bot", "user_id": "U0", "bot_id": "B1",
		})
	})

	mux.HandleFunc("/conversations.list", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.FormValue("cursor") == "" {
			writeJSON(w, map[string]any{
				"ok":                true,
				"channels":          []map[string]any{{"id": "C1", "name": "general", "is_member": true, "num_members": 12}},
				"response_metadata": map[string]any{"next_cursor": "page2"},
			})
			return
		}
		writeJSON(w, map[string]any{
			"ok":                true,
			"channels":          []map[string]any{{"id": "C2", "name": "ops", "num_members": 3}},
			"response_metadata": map[string]any{"next_cursor": ""},
		})
	})

	mux.HandleFunc("/conversations.join", func(w http.ResponseWriter, r *http.Request) {
		if f.joinError != "" {
			writeJSON(w, map[string]any{"ok": false, "error": f.joinError})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "channel": map[string]any{"id": "C1"}})
	})

	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		f.historyHits.Add(1)
		_ = r.ParseForm()
		switch r.FormValue("channel") {
		case "C404":
			writeJSON(w, map[string]any{"ok": false, "error": "channel_not_found"})
		case "C429":
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			if r.FormValue("cursor") == "" {
				writeJSON(w, map[string]any{
					"ok": true,
					"messages": []map[string]any{
						{"type": "message", "user": "U1", "text": "deploy failed", "ts": "1700000000.000100"},
						{"type": "message", "subtype": "channel_join", "user": "U2", "text": "<@U2> joined", "ts": "1700000001.000100"},
					},
					"has_more":          true,
					"response_metadata": map[string]any{"next_cursor": "more"},
				})
				return
			}
			writeJSON(w, map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"type": "message", "user": "U2", "text": "rolled back", "ts": "1700000002.000100", "thread_ts": "1700000000.000100"},
				},
				"has_more": false,
			})
		}
	})

	mux.HandleFunc("/users.info", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.FormValue("user") {
		case "U1":
			writeJSON(w, map[string]any{"ok": true, "user": map[string]any{
				"id": "U1", "name": "bob", "real_name": "Bob Smith",
				"profile": map[string]any{"real_name": "Bob Smith", "display_name": "bob"},
			}})
		case "U3":
			writeJSON(w, map[string]any{"ok": true, "user": map[string]any{"id": "U3", "name": "handle-only"}})
		default:
			writeJSON(w, map[string]any{"ok": false, "error": "user_not_found"})
		}
	})

	mux.HandleFunc("/search.messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "query": "deploy", "messages": map[string]any{
			"total": 1,
			"matches": []map[string]any{{
				"type": "message", "user": "U1", "username": "bob", "text": "deploy failed",
				"ts": "1700000000.000100", "permalink": "https://acme.slack.com/archives/C1/p1",
				"channel": map[string]any{"id": "C1", "name": "general"},
			}},
			"pagination": map[string]any{}, "paging": map[string]any{},
		}})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestClient(t *testing.T, f *fakeSlack) *Client {
	t.Helper()
	c, err := NewClient("xoxb-test", WithAPIURL(f.URL), WithRequestInterval(0), WithPageSize(2))
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(" ")
	assert.ErrorIs(t, err, ErrTokenRequired)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestClient_TestConnection(t *testing.T) {
	f := newFakeSlack(t)
	c := newTestClient(t, f)

	id, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", id.Team)
	assert.Equal(t, "B1", id.BotID)
}

func TestClient_TestConnectionAuthFailure(t *testing.T) {
	for _, code := range []string{"invalid_auth", "token_revoked", "not_authed"} {
		t.Run(code, func(t *testing.T) {
			f := newFakeSlack(t)
			f.authError = code
			_, err := newTestClient(t, f).TestConnection(context.Background())
			assert.ErrorIs(t, err, core.ErrSourceAuth)
		})
	}
}

func TestClient_ListChannelsPaginates(t *testing.T) {
	c := newTestClient(t, newFakeSlack(t))

	channels, err := c.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, Channel{ID: "C1", Name: "general", IsMember: true, NumMembers: 12}, channels[0])
	assert.Equal(t, "ops", channels[1].Name)
}

func TestClient_JoinChannel(t *testing.T) {
	f := newFakeSlack(t)
	c := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.JoinChannel(ctx, "C1"))

	f.joinError = "already_in_channel"
	assert.NoError(t, c.JoinChannel(ctx, "C1"))

	f.joinError = "is_archived"
	assert.Error(t, c.JoinChannel(ctx, "C1"))

	assert.ErrorIs(t, c.JoinChannel(ctx, ""), ErrChannelRequired)
}

func TestClient_FetchMessages(t *testing.T) {
	f := newFakeSlack(t)
	c := newTestClient(t, f)

	messages, err := c.FetchMessages(context.Background(), "C1", time.Now().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, Message{User: "U1", Text: "deploy failed", TS: "1700000000.000100"}, messages[0])
	assert.Equal(t, "channel_join", messages[1].SubType)
	assert.Equal(t, "1700000000.000100", messages[2].ThreadTS)
	assert.Equal(t, int32(2), f.historyHits.Load())
}

func TestClient_FetchMessagesLimit(t *testing.T) {
	f := newFakeSlack(t)
	messages, err := newTestClient(t, f).FetchMessages(context.Background(), "C1", time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, int32(1), f.historyHits.Load())
}

func TestClient_FetchMessagesErrors(t *testing.T) {
	c := newTestClient(t, newFakeSlack(t))
	ctx := context.Background()

	_, err := c.FetchMessages(ctx, "C404", time.Time{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
	assert.NotErrorIs(t, err, core.ErrSourceAuth)

	_, err = c.FetchMessages(ctx, "C429", time.Time{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = c.FetchMessages(ctx, "", time.Time{}, 0)
	assert.ErrorIs(t, err, ErrChannelRequired)
}

func TestClient_UserName(t *testing.T) {
	c := newTestClient(t, newFakeSlack(t))
	ctx := context.Background()

	name, err := c.UserName(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "Bob Smith", name)

	name, err = c.UserName(ctx, "U3")
	require.NoError(t, err)
	assert.Equal(t, "handle-only", name)

	_, err = c.UserName(ctx, "U9")
	assert.Error(t, err)
}

func TestClient_SearchMessages(t *testing.T) {
	c := newTestClient(t, newFakeSlack(t))

	matches, err := c.SearchMessages(context.Background(), "deploy", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, SearchMatch{
		Text:      "deploy failed",
		User:      "bob",
		Channel:   "general",
		Timestamp: "1700000000.000100",
		Permalink: "https://acme.slack.com/archives/C1/p1",
	}, matches[0])
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	f := newFakeSlack(t)
	c, err := NewClient("xoxb-test", WithAPIURL(f.URL), WithRequestInterval(time.Hour))
	require.NoError(t, err)

	_, err = c.TestConnection(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.TestConnection(ctx)
	assert.Error(t, err)
}

func TestTimestamps(t *testing.T) {
	tm := time.Unix(1700000000, 123456000).UTC()
	assert.Equal(t, "1700000000.123456", FormatTS(tm))
	assert.Equal(t, tm, ParseTS("1700000000.123456"))
	assert.Equal(t, time.Unix(1700000000, 100_000_000).UTC(), ParseTS("1700000000.1"))
	assert.True(t, ParseTS("garbage").IsZero())
}
