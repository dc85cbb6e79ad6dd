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


package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/recall"
	"github.com/poiesic/recall/config"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/search"
	"github.com/urfave/cli/v2"
)

// newEngine is replaced in tests.
var newEngine = recall.NewEngine

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "recall",
		Usage: "Ask questions about your Slack history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   config.DefaultPath,
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index one or more Slack export files",
				ArgsUsage: "FILE...",
				Action:    indexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "append",
						Usage: "Keep existing records instead of replacing the collection",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from indexed messages",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of records to retrieve (0 uses search.top_k)",
					},
				},
			},
			{
				Name:   "sync",
				Usage:  "Pull recent Slack messages into the index",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "hours-back",
						Usage: "How many hours of history to sync (0 uses sync.hours_back)",
					},
					&cli.StringSliceFlag{
						Name:  "channel",
						Usage: "Channel name or ID to sync (repeatable)",
					},
				},
			},
			{
				Name:   "channels",
				Usage:  "List public Slack channels",
				Action: channelsCommand,
			},
			{
				Name:   "test-connection",
				Usage:  "Check the Slack token",
				Action: testConnectionCommand,
			},
			{
				Name:      "slack-search",
				Usage:     "Search Slack directly",
				ArgsUsage: "QUERY",
				Action:    slackSearchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "Maximum number of matches",
						Value: 20,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run scheduled syncs until interrupted",
				Action: serveCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all records with the configured embedding model",
				Action: reembedCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show collection statistics",
				Action: statsCommand,
			},
		},
	}
}

func openEngine(c *cli.Context) (*recall.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	return newEngine(cfg)
}

func indexCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one export file is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := c.App.Writer
	if len(paths) == 1 {
		n, err := engine.IndexExport(c.Context, paths[0], c.Bool("append"))
		if errors.Is(err, core.ErrEmptyInput) {
			fmt.Fprintln(out, "Nothing to index: the export contains no messages.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Indexed %d chunks from %s\n", n, paths[0])
		return nil
	}

	result, err := engine.IndexExports(c.Context, paths)
	if err != nil {
		return err
	}
	for _, failed := range result.Failed {
		fmt.Fprintf(out, "Skipped %s: %v\n", failed.Path, failed.Err)
	}
	fmt.Fprintf(out, "Indexed %d chunks from %d of %d files\n",
		result.Chunks, result.Files-len(result.Failed), result.Files)
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Ask(c.Context, question, c.Int("top-k"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintln(out, result.Answer)
	if len(result.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
	}
	for i, src := range result.Sources {
		fmt.Fprintf(out, "%d. [%.3f] #%v %v: %s\n", i+1, src.Similarity(),
			src.Metadata[core.KeyChannel], src.Metadata[core.KeyUser], search.Preview(src.Text))
	}
	return nil
}

func syncCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Sync(c.Context, c.Int("hours-back"), c.StringSlice("channel"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Synced %d channels: %d messages, %d chunks\n",
		result.ChannelsSynced, result.MessagesCollected, result.ChunksCreated)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  failed: %s\n", e)
	}
	return nil
}

func channelsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	client, err := engine.Slack()
	if err != nil {
		return err
	}
	channels, err := client.ListChannels(c.Context)
	if err != nil {
		return err
	}

	out := c.App.Writer
	for _, ch := range channels {
		member := ""
		if ch.IsMember {
			member = " (member)"
		}
		fmt.Fprintf(out, "%s\t#%s\t%d members%s\n", ch.ID, ch.Name, ch.NumMembers, member)
	}
	fmt.Fprintf(out, "%d channels\n", len(channels))
	return nil
}

func testConnectionCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	client, err := engine.Slack()
	if err != nil {
		return err
	}
	id, err := client.TestConnection(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Connected to %s (%s) as %s (%s)\n", id.Team, id.TeamID, id.User, id.UserID)
	return nil
}

func slackSearchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a search query is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	client, err := engine.Slack()
	if err != nil {
		return err
	}
	matches, err := client.SearchMessages(c.Context, query, c.Int("count"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	for _, m := range matches {
		fmt.Fprintf(out, "#%s %s: %s\n  %s\n", m.Channel, m.User, search.Preview(m.Text), m.Permalink)
	}
	fmt.Fprintf(out, "%d matches\n", len(matches))
	return nil
}

func serveCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	scheduler, err := engine.NewScheduler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			slog.Warn("scheduler stop", "err", err)
		}
	}()

	<-ctx.Done()
	st := scheduler.Status()
	slog.Info("shutting down", "last_sync", st.LastSyncTime, "last_error", st.LastError)
	return nil
}

func reembedCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	_, err = engine.Reembed(c.Context, c.App.ErrWriter)
	return err
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(c.Context)
	if err != nil {
		return err
	}
	printStats(c.App.Writer, stats)
	return nil
}

func printStats(out io.Writer, stats *recall.Stats) {
	fmt.Fprintf(out, "Collection: %s\n", stats.Collection)
	fmt.Fprintf(out, "Records:    %d\n", stats.Records)
	fmt.Fprintf(out, "Dimension:  %d\n", stats.Dimension)
	fmt.Fprintf(out, "Created:    %s\n", stats.CreatedAt.Format(time.RFC3339))
	if stats.LastSync == nil {
		fmt.Fprintln(out, "Last sync:  never")
		return
	}
	cp := stats.LastSync
	fmt.Fprintf(out, "Last sync:  %s (%dh window, %d channels, %d chunks, %d errors)\n",
		cp.SyncedAt.Format(time.RFC3339), cp.HoursBack, cp.ChannelsSynced, cp.ChunksCreated, cp.ErrorCount)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

