package core

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// Metadata keys shared by the chunker, the sync engine and the vector store.
const (
	KeyMessageCount     = "message_count"
	KeyTimestamp        = "timestamp"
	KeyFirstTimestamp   = "first_timestamp"
	KeyLastTimestamp    = "last_timestamp"
	KeyTimestamps       = "timestamps"
	KeyUser             = "user"
	KeyUsers            = "users"
	KeyChannel          = "channel"
	KeyThreadTS         = "thread_ts"
	KeySource           = "source"
	KeySyncTime         = "sync_time"
	KeyHoursBack        = "hours_back"
	KeySourceFilesCount = "source_files_count"
	KeyContentHash      = "content_hash"
)

const (
	// SourceLiveSync tags records written by the live sync engine.
	SourceLiveSync = "live_sync"

	// Unknown is used when a message has no author or channel.
	Unknown = "Unknown"
)

// Fingerprint returns a deterministic 64-bit BLAKE2b hash of text.
// Identical text always produces the identical fingerprint.
func Fingerprint(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// FingerprintHex returns Fingerprint(text) as a fixed-width hex string.
func FingerprintHex(text string) string {
	return fmt.Sprintf("%016x", Fingerprint(text))
}

// Message is a single chat message as parsed from an export or fetched from
// a live source. Empty strings mean the field is absent.
type Message struct {
	Author    string
	Text      string
	Timestamp string // opaque, sortable
	Channel   string
	ThreadID  string
}

// Line renders the message the way it appears in chunk text.
func (m Message) Line() string {
	if m.Author != "" {
		return m.Author + ": " + m.Text
	}
	return m.Text
}

// IsEmpty reports whether the message carries no text.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == ""
}

// Chunk is a retrieval unit: text plus provenance metadata.
type Chunk struct {
	Text     string
	Metadata Metadata
}

// IndexedRecord is a chunk after embedding, as held by the vector store.
// One record per chunk; the ID is generated by the writer.
type IndexedRecord struct {
	ID        uuid.UUID
	Embedding []float32
	Document  string
	Metadata  Metadata
}

// NewIndexedRecord builds a record for chunk with a fresh random ID.
func NewIndexedRecord(chunk Chunk, embedding []float32) *IndexedRecord {
	return &IndexedRecord{
		ID:        uuid.New(),
		Embedding: embedding,
		Document:  chunk.Text,
		Metadata:  chunk.Metadata.Clone(),
	}
}

// ScoredRecord is a record returned from a nearest-neighbour query.
// Distance is cosine distance; lower is closer.
type ScoredRecord struct {
	Record   *IndexedRecord
	Distance float32
}

// Source is a single supporting document in a SearchResult.
type Source struct {
	Text     string
	Metadata Metadata
	Distance float32
}

// Similarity converts the cosine distance into a similarity score for display.
func (s Source) Similarity() float32 {
	return 1 - s.Distance
}

// SearchResult is the answer to one question. It is never persisted.
type SearchResult struct {
	Answer  string
	Sources []Source
	Query   string
}

// SyncResult summarises one run of the live sync engine.
type SyncResult struct {
	ChannelsSynced    int
	MessagesCollected int
	ChunksCreated     int
	Errors            []string
}

// Err returns an ErrPartialSync error describing failed channels, or nil
// when every channel succeeded.
func (r *SyncResult) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d channel(s) failed: %s", ErrPartialSync, len(r.Errors), strings.Join(r.Errors, "; "))
}
