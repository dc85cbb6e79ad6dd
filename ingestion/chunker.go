package ingestion

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/recall/core"
)

// Mode selects how messages are grouped into chunks.
type Mode int

const (
	// ModeSingle makes every message its own chunk.
	ModeSingle Mode = iota
	// ModeWindowed groups consecutive messages under a word budget.
	ModeWindowed
)

// DefaultMaxTokens is the window budget used when none is configured.
const DefaultMaxTokens = 1000

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeWindowed:
		return "windowed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return ModeSingle, nil
	case "windowed":
		return ModeWindowed, nil
	default:
		return ModeSingle, fmt.Errorf("%w: %q", ErrUnknownChunkingMode, s)
	}
}

// Chunker groups messages into retrieval units.
type Chunker struct {
	mode      Mode
	maxTokens int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithMode sets the chunking policy.
func WithMode(mode Mode) ChunkerOption {
	return func(c *Chunker) {
		c.mode = mode
	}
}

// WithMaxTokens sets the per-window word budget for ModeWindowed.
// Values below 1 are ignored.
func WithMaxTokens(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewChunker creates a chunker. Default is ModeSingle with DefaultMaxTokens.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		mode:      ModeSingle,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the configured policy.
func (c *Chunker) Mode() Mode {
	return c.mode
}

// Chunk converts messages into chunks. Messages with empty text are dropped
// first; output order follows input order.
func (c *Chunker) Chunk(messages []core.Message) []core.Chunk {
	filtered := make([]core.Message, 0, len(messages))
	for _, m := range messages {
		if !m.IsEmpty() {
			filtered = append(filtered, m)
		}
	}
	if c.mode == ModeWindowed {
		return c.windowed(filtered)
	}
	return single(filtered)
}

func single(messages []core.Message) []core.Chunk {
	chunks := make([]core.Chunk, 0, len(messages))
	for _, m := range messages {
		md := core.Metadata{
			core.KeyMessageCount: int64(1),
			core.KeyTimestamp:    m.Timestamp,
			core.KeyUser:         orUnknown(m.Author),
			core.KeyChannel:      orUnknown(m.Channel),
		}
		if m.ThreadID != "" {
			md[core.KeyThreadTS] = m.ThreadID
		}
		chunks = append(chunks, core.Chunk{Text: m.Line(), Metadata: md})
	}
	return chunks
}

func (c *Chunker) windowed(messages []core.Message) []core.Chunk {
	var chunks []core.Chunk
	var window []core.Message
	tokens := 0

	for _, m := range messages {
		n := wordCount(m.Text)
		if len(window) > 0 && tokens+n > c.maxTokens {
			chunks = append(chunks, windowChunk(window))
			window = nil
			tokens = 0
		}
		window = append(window, m)
		tokens += n
	}
	if len(window) > 0 {
		chunks = append(chunks, windowChunk(window))
	}
	return chunks
}

func windowChunk(window []core.Message) core.Chunk {
	lines := make([]string, len(window))
	timestamps := make([]string, len(window))
	var users []string
	for i, m := range window {
		lines[i] = m.Line()
		timestamps[i] = m.Timestamp
		author := orUnknown(m.Author)
		if !slices.Contains(users, author) {
			users = append(users, author)
		}
	}

	first, last := window[0], window[len(window)-1]
	md := core.Metadata{
		core.KeyMessageCount:   int64(len(window)),
		core.KeyTimestamp:      first.Timestamp,
		core.KeyFirstTimestamp: first.Timestamp,
		core.KeyLastTimestamp:  last.Timestamp,
		core.KeyTimestamps:     strings.Join(timestamps, ","),
		core.KeyUsers:          strings.Join(users, ","),
		core.KeyChannel:        orUnknown(first.Channel),
	}
	if first.ThreadID != "" {
		md[core.KeyThreadTS] = first.ThreadID
	}
	return core.Chunk{Text: strings.Join(lines, "\n"), Metadata: md}
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func orUnknown(s string) string {
	if s == "" {
		return core.Unknown
	}
	return s
}
