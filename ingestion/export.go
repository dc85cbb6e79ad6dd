package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/core"
)

// exportMessage is the subset of a Slack export message that is indexed.
type exportMessage struct {
	User     flexString `json:"user"`
	Text     flexString `json:"text"`
	Ts       flexString `json:"ts"`
	ThreadTs flexString `json:"thread_ts"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Parse decodes a Slack export.
//
// Two layouts are accepted: a JSON array of messages (a single channel, no
// channel name) or a JSON object mapping channel names to message arrays.
// Object entries whose value is not an array are ignored. Messages without
// text are skipped; the rest are normalized with Normalize.
func Parse(raw []byte) ([]core.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrUnsupportedExport)
	}

	switch trimmed[0] {
	case '[':
		var list []exportMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return toMessages(list, ""), nil
	case '{':
		return parseChannels(trimmed)
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrUnsupportedExport)
	}
}

// parseChannels walks the object token by token so channels keep file order.
func parseChannels(raw []byte) ([]core.Message, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var messages []core.Message
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		channel, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected key %v", ErrUnsupportedExport, tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		value = bytes.TrimSpace(value)
		if len(value) == 0 || value[0] != '[' {
			continue
		}

		var list []exportMessage
		if err := json.Unmarshal(value, &list); err != nil {
			return nil, fmt.Errorf("channel %q: %w", channel, err)
		}
		messages = append(messages, toMessages(list, channel)...)
	}
	return messages, nil
}

func toMessages(list []exportMessage, channel string) []core.Message {
	messages := make([]core.Message, 0, len(list))
	for _, m := range list {
		if m.Text == "" {
			continue
		}
		messages = append(messages, core.Message{
			Author:    string(m.User),
			Text:      Normalize(string(m.Text)),
			Timestamp: string(m.Ts),
			Channel:   channel,
			ThreadID:  string(m.ThreadTs),
		})
	}
	return messages
}

// ParseFile reads and parses the export at path.
func ParseFile(path string) ([]core.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	messages, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return messages, nil
}

// FileResult is the outcome of parsing one file.
type FileResult struct {
	Path     string
	Messages []core.Message
	Err      error
}

// ParseFiles parses paths concurrently on a worker pool of poolSize goroutines.
// Results are returned in the order of paths; a failed file carries its error
// and does not affect the others.
func ParseFiles(ctx context.Context, paths []string, poolSize int) ([]FileResult, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	results := make([]FileResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		results[i].Path = path
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i].Messages, results[i].Err = ParseFile(path)
		})
		if submitErr != nil {
			wg.Done()
			results[i].Err = submitErr
		}
	}
	wg.Wait()
	return results, ctx.Err()
}

// FindExportFiles returns every .json file under root, skipping hidden files,
// in lexical order.
func FindExportFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".json") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("found export files", "root", root, "count", len(paths))
	return paths, nil
}
