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


package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/recall/core"
)

const recordFormatVersion byte = 1

// Metadata value tags.
const (
	tagString byte = iota + 1
	tagInt
	tagFloat
	tagBool
)

// CollectionInfo describes a vector collection.
type CollectionInfo struct {
	Name      string
	Space     string // distance space, always "cosine"
	Dimension int    // 0 until the first record is written
	CreatedAt time.Time
}

// SyncCheckpoint records the most recent sync of one hours-back window.
type SyncCheckpoint struct {
	HoursBack         int
	SyncedAt          time.Time
	ChannelsSynced    int
	MessagesCollected int
	ChunksCreated     int
	ErrorCount        int
}

// MarshalRecord serializes an IndexedRecord to bytes.
// Metadata keys are written in sorted order so equal records encode identically.
func MarshalRecord(record *core.IndexedRecord) ([]byte, error) {
	md, err := core.NormalizeMetadata(record.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	keys := sortedKeys(md)

	size := 1 + len(record.ID)
	size += ord.String.Size(record.Document)
	size += varint.Int.Size(len(record.Embedding))
	for _, f := range record.Embedding {
		size += raw.Float32.Size(f)
	}
	size += varint.Int.Size(len(keys))
	for _, k := range keys {
		size += ord.String.Size(k) + 1 + valueSize(md[k])
	}

	buf := make([]byte, size)
	buf[0] = recordFormatVersion
	n := 1
	n += copy(buf[n:], record.ID[:])
	n += ord.String.Marshal(record.Document, buf[n:])
	n += varint.Int.Marshal(len(record.Embedding), buf[n:])
	for _, f := range record.Embedding {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	n += varint.Int.Marshal(len(keys), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += marshalValue(md[k], buf[n:])
	}
	return buf[:n], nil
}

// UnmarshalRecord deserializes an IndexedRecord from bytes.
func UnmarshalRecord(data []byte) (*core.IndexedRecord, error) {
	if len(data) < 1+len(uuid.UUID{}) {
		return nil, ErrTruncatedData
	}
	if data[0] != recordFormatVersion {
		return nil, fmt.Errorf("%w: unknown record version %d", ErrSerializationFailed, data[0])
	}
	n := 1
	record := &core.IndexedRecord{}
	n += copy(record.ID[:], data[n:])

	doc, m, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: document: %w", ErrSerializationFailed, err)
	}
	record.Document = doc
	n += m

	dim, m, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: embedding length: %w", ErrSerializationFailed, err)
	}
	n += m
	if dim < 0 || dim > len(data) {
		return nil, ErrTruncatedData
	}
	record.Embedding = make([]float32, dim)
	for i := range record.Embedding {
		f, m, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: embedding: %w", ErrSerializationFailed, err)
		}
		record.Embedding[i] = f
		n += m
	}

	count, m, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: metadata length: %w", ErrSerializationFailed, err)
	}
	n += m
	if count < 0 || count > len(data) {
		return nil, ErrTruncatedData
	}
	record.Metadata = make(core.Metadata, count)
	for range count {
		key, m, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: metadata key: %w", ErrSerializationFailed, err)
		}
		n += m
		value, m, err := unmarshalValue(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: metadata %q: %w", ErrSerializationFailed, key, err)
		}
		n += m
		record.Metadata[key] = value
	}
	return record, nil
}

// MarshalCollectionInfo serializes collection metadata to bytes.
func MarshalCollectionInfo(info *CollectionInfo) []byte {
	created := info.CreatedAt.UnixMicro()
	size := ord.String.Size(info.Name) + ord.String.Size(info.Space) +
		varint.Int.Size(info.Dimension) + varint.Int64.Size(created)
	buf := make([]byte, size)
	n := ord.String.Marshal(info.Name, buf)
	n += ord.String.Marshal(info.Space, buf[n:])
	n += varint.Int.Marshal(info.Dimension, buf[n:])
	varint.Int64.Marshal(created, buf[n:])
	return buf
}

// UnmarshalCollectionInfo deserializes collection metadata from bytes.
func UnmarshalCollectionInfo(data []byte) (*CollectionInfo, error) {
	info := &CollectionInfo{}
	name, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	space, m, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	n += m
	dim, m, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	n += m
	created, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	info.Name = name
	info.Space = space
	info.Dimension = dim
	info.CreatedAt = time.UnixMicro(created).UTC()
	return info, nil
}

// MarshalCheckpoint serializes a sync checkpoint to bytes.
func MarshalCheckpoint(cp *SyncCheckpoint) []byte {
	synced := cp.SyncedAt.UnixMicro()
	ints := []int{cp.HoursBack, cp.ChannelsSynced, cp.MessagesCollected, cp.ChunksCreated, cp.ErrorCount}
	size := varint.Int64.Size(synced)
	for _, v := range ints {
		size += varint.Int.Size(v)
	}
	buf := make([]byte, size)
	n := varint.Int64.Marshal(synced, buf)
	for _, v := range ints {
		n += varint.Int.Marshal(v, buf[n:])
	}
	return buf
}

// UnmarshalCheckpoint deserializes a sync checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*SyncCheckpoint, error) {
	synced, n, err := varint.Int64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	cp := &SyncCheckpoint{SyncedAt: time.UnixMicro(synced).UTC()}
	for _, field := range []*int{&cp.HoursBack, &cp.ChannelsSynced, &cp.MessagesCollected, &cp.ChunksCreated, &cp.ErrorCount} {
		v, m, err := varint.Int.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		}
		*field = v
		n += m
	}
	return cp, nil
}

func sortedKeys(md core.Metadata) []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// valueSize expects a normalized value.
func valueSize(v any) int {
	switch x := v.(type) {
	case string:
		return ord.String.Size(x)
	case int64:
		return varint.Int64.Size(x)
	case float64:
		return raw.Float64.Size(x)
	case bool:
		return ord.Bool.Size(x)
	}
	return 0
}

// marshalValue writes the tag byte followed by the value.
func marshalValue(v any, bs []byte) int {
	switch x := v.(type) {
	case string:
		bs[0] = tagString
		return 1 + ord.String.Marshal(x, bs[1:])
	case int64:
		bs[0] = tagInt
		return 1 + varint.Int64.Marshal(x, bs[1:])
	case float64:
		bs[0] = tagFloat
		return 1 + raw.Float64.Marshal(x, bs[1:])
	case bool:
		bs[0] = tagBool
		return 1 + ord.Bool.Marshal(x, bs[1:])
	}
	return 0
}

func unmarshalValue(bs []byte) (any, int, error) {
	if len(bs) == 0 {
		return nil, 0, ErrTruncatedData
	}
	var (
		v   any
		n   int
		err error
	)
	switch bs[0] {
	case tagString:
		v, n, err = ord.String.Unmarshal(bs[1:])
	case tagInt:
		v, n, err = varint.Int64.Unmarshal(bs[1:])
	case tagFloat:
		v, n, err = raw.Float64.Unmarshal(bs[1:])
	case tagBool:
		v, n, err = ord.Bool.Unmarshal(bs[1:])
	default:
		return nil, 0, fmt.Errorf("unknown value tag %d", bs[0])
	}
	return v, n + 1, err
}
