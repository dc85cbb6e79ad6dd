package core

import (
	"errors"
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Fingerprint(tt.content) != Fingerprint(tt.content) {
				t.Errorf("Fingerprint() produced different values for the same content")
			}
		})
	}
}

func TestFingerprint_Different(t *testing.T) {
	if Fingerprint("content1") == Fingerprint("content2") {
		t.Errorf("Fingerprint() produced the same value for different content")
	}
}

func TestFingerprintHex(t *testing.T) {
	got := FingerprintHex("hello")
	if len(got) != 16 {
		t.Errorf("FingerprintHex() length = %d, want 16", len(got))
	}
}

func TestMessage_Line(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{name: "with author", msg: Message{Author: "bob", Text: "deploy failed"}, want: "bob: deploy failed"},
		{name: "without author", msg: Message{Text: "deploy failed"}, want: "deploy failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Line(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewIndexedRecord(t *testing.T) {
	chunk := Chunk{Text: "bob: hi", Metadata: Metadata{KeyUser: "bob"}}
	rec := NewIndexedRecord(chunk, []float32{1, 0})

	if rec.Document != chunk.Text {
		t.Errorf("Document = %q, want %q", rec.Document, chunk.Text)
	}
	rec.Metadata[KeyUser] = "alice"
	if chunk.Metadata[KeyUser] != "bob" {
		t.Errorf("record metadata must not alias chunk metadata")
	}

	other := NewIndexedRecord(chunk, []float32{1, 0})
	if rec.ID == other.ID {
		t.Errorf("NewIndexedRecord() reused an ID")
	}
}

func TestSource_Similarity(t *testing.T) {
	s := Source{Distance: 0.25}
	if got := s.Similarity(); got != 0.75 {
		t.Errorf("Similarity() = %v, want 0.75", got)
	}
}

func TestSyncResult_Err(t *testing.T) {
	var nilResult *SyncResult
	if nilResult.Err() != nil {
		t.Errorf("nil result should have no error")
	}

	ok := &SyncResult{ChannelsSynced: 2}
	if ok.Err() != nil {
		t.Errorf("result without errors should have no error")
	}

	partial := &SyncResult{ChannelsSynced: 1, Errors: []string{"random: boom"}}
	err := partial.Err()
	if !errors.Is(err, ErrPartialSync) {
		t.Fatalf("Err() = %v, want ErrPartialSync", err)
	}
	if !strings.Contains(err.Error(), "random: boom") {
		t.Errorf("Err() should list failed channels, got %q", err.Error())
	}
}
