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


package reembed

import (
	"context"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

const (
	// DefaultBatchSize is the default number of records to process in each batch
	DefaultBatchSize = 100
)

// RecordIterator iterates over all records of a collection in batches.
type RecordIterator struct {
	store     storage.VectorStore
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records per batch (defaults to DefaultBatchSize when <= 0)
func NewRecordIterator(store storage.VectorStore, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		store:     store,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of records.
// The collection is read completely before the first call so fn may write to
// the store. Iteration stops on the first error from fn.
// Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.IndexedRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var records []*core.IndexedRecord
	err := it.store.Scan(ctx, storage.Where{}, func(record *core.IndexedRecord) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return err
	}

	for i := 0; i < len(records); i += it.batchSize {
		end := min(i+it.batchSize, len(records))

		if err := fn(records[i:end]); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
