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


package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/storage"
)

// CheckpointRepository implements storage.CheckpointStore for BadgerDB.
// Checkpoints are scoped to a collection name so several collections can
// share one backend.
type CheckpointRepository struct {
	backend    *Backend
	collection string
}

var _ storage.CheckpointStore = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend, collection string) (*CheckpointRepository, error) {
	if backend == nil {
		return nil, errors.New("badger backend required")
	}
	if collection == "" {
		return nil, storage.ErrCollectionNameRequired
	}
	if strings.Contains(collection, ":") {
		return nil, fmt.Errorf("collection name %q must not contain ':'", collection)
	}
	return &CheckpointRepository{
		backend:    backend,
		collection: collection,
	}, nil
}

// SaveCheckpoint persists the checkpoint for its window.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *storage.SyncCheckpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCheckpointKey(r.collection, checkpoint.HoursBack)
		if err := tx.Set(key, storage.MarshalCheckpoint(checkpoint)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint retrieves the checkpoint for a window.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, hoursBack int) (*storage.SyncCheckpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var checkpoint *storage.SyncCheckpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(r.collection, hoursBack))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
			return unmarshalErr
		})
	}, false)

	return checkpoint, err
}
