package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/recall"
	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const export = `{"general": [
  {"user": "bob", "text": "the deploy failed on node 3", "ts": "1700000000.000100"},
  {"user": "alice", "text": "lunch at noon?", "ts": "1700000001.000100"}
]}`

// useMockProvider swaps the engine constructor for one with a mock provider.
func useMockProvider(t *testing.T) {
	t.Helper()
	orig := newEngine
	newEngine = func(cfg *config.Config, opts ...recall.EngineOption) (*recall.Engine, error) {
		return recall.NewEngine(cfg, append(opts, recall.WithProvider(mock.NewMockProvider()))...)
	}
	t.Cleanup(func() { newEngine = orig })
}

// run executes the app with a config file in a temp dir and returns stdout.
func run(t *testing.T, ctx context.Context, configYAML string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "recall.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o600))

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	full := append([]string{"recall", "--log-level", "error", "--config", cfgPath}, args...)
	err := app.RunContext(ctx, full)
	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		t.Run(level, func(t *testing.T) {
			app := newApp()
			app.Commands = nil
			app.Action = func(*cli.Context) error { return nil }
			assert.NoError(t, app.Run([]string{"recall", "--log-level", level}))
		})
	}

	app := newApp()
	err := app.Run([]string{"recall", "--log-level", "verbose", "stats"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCommandsRegistered(t *testing.T) {
	app := newApp()
	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.ElementsMatch(t, []string{
		"index", "ask", "sync", "channels", "test-connection",
		"slack-search", "serve", "reembed", "stats",
	}, names)
}

func TestIndexAskStats(t *testing.T) {
	useMockProvider(t)
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "db")
	path := writeFile(t, export)

	out, err := run(t, ctx, "", "--db", db, "index", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 chunks")

	out, err = run(t, ctx, "", "--db", db, "index", "--append", path, writeFile(t, "broken"))
	require.NoError(t, err)
	assert.Contains(t, out, "Skipped")
	assert.Contains(t, out, "Indexed 2 chunks from 1 of 2 files")

	out, err = run(t, ctx, "", "--db", db, "ask", "--top-k", "3", "what", "happened", "to", "the", "deploy?")
	require.NoError(t, err)
	assert.Contains(t, out, "deploy failed")
	assert.Contains(t, out, "Sources:")

	out, err = run(t, ctx, "", "--db", db, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:    4")
	assert.Contains(t, out, "Last sync:  never")

	_, err = run(t, ctx, "", "--db", db, "reembed")
	require.NoError(t, err)
}

func TestIndexEmptyExport(t *testing.T) {
	useMockProvider(t)
	out, err := run(t, context.Background(), "", "--db", filepath.Join(t.TempDir(), "db"), "index", writeFile(t, "[]"))
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to index")
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"index without files", []string{"index"}, "export file is required"},
		{"ask without question", []string{"ask", "  "}, "question is required"},
		{"search without query", []string{"slack-search"}, "search query is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, context.Background(), "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSlackCommandsRequireToken(t *testing.T) {
	useMockProvider(t)
	t.Setenv(config.EnvSlackToken, "")
	for _, cmd := range []string{"sync", "channels", "test-connection", "serve"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := run(t, context.Background(), "", "--db", filepath.Join(t.TempDir(), "db"), cmd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "SLACK_BOT_TOKEN")
		})
	}
}

func fakeSlack(t *testing.T) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth.test", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"ok": true, "team": "Acme", "team_id": "T1", "user": "recall", "user_id": "U0"})
	})
	mux.HandleFunc("/conversations.list", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"ok": true, "channels": []map[string]any{
			{"id": "C1", "name": "general", "is_member": true, "num_members": 4},
		}})
	})
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"ok": true, "messages": []map[string]any{
			{"type": "message", "user": "U1", "text": "release is tagged", "ts": "1700000100.000100"},
		}})
	})
	mux.HandleFunc("/users.info", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"ok": true, "user": map[string]any{"id": "U1", "name": "dana"}})
	})
	mux.HandleFunc("/search.messages", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"ok": true, "messages": map[string]any{
			"total": 1,
			"matches": []map[string]any{{
				"type": "message", "user": "U1", "username": "dana", "text": "release is tagged",
				"ts": "1700000100.000100", "permalink": "https://acme.slack.com/archives/C1/p1",
				"channel": map[string]any{"id": "C1", "name": "general"},
			}},
			"pagination": map[string]any{}, "paging": map[string]any{},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func slackYAML(srv *httptest.Server) string {
	return "slack:\n  token: xoxb-test\n  api_url: " + srv.URL + "\n  request_interval: 0s\n"
}

func TestSlackCommands(t *testing.T) {
	useMockProvider(t)
	srv := fakeSlack(t)
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "db")

	out, err := run(t, ctx, slackYAML(srv), "--db", db, "test-connection")
	require.NoError(t, err)
	assert.Contains(t, out, "Connected to Acme (T1) as recall (U0)")

	out, err = run(t, ctx, slackYAML(srv), "--db", db, "channels")
	require.NoError(t, err)
	assert.Contains(t, out, "C1\t#general\t4 members (member)")

	out, err = run(t, ctx, slackYAML(srv), "--db", db, "slack-search", "release")
	require.NoError(t, err)
	assert.Contains(t, out, "https://acme.slack.com/archives/C1/p1")
	assert.Contains(t, out, "1 matches")

	out, err = run(t, ctx, slackYAML(srv), "--db", db, "sync", "--hours-back", "6", "--channel", "general")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced 1 channels: 1 messages, 1 chunks")
}

func TestServeStopsOnCancel(t *testing.T) {
	useMockProvider(t)
	srv := fakeSlack(t)
	db := filepath.Join(t.TempDir(), "db")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := run(t, ctx, slackYAML(srv), "--db", db, "serve")
	require.NoError(t, err)

	out, err := run(t, context.Background(), slackYAML(srv), "--db", db, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:    1")
	assert.Contains(t, out, "24h window")
}
