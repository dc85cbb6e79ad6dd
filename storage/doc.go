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


// Package storage provides the vector store abstraction for recall.
//
// The VectorStore interface owns one named collection of IndexedRecords and
// exposes the four operations the rest of the system relies on: upsert,
// delete by metadata filter, nearest-neighbour query, and lazy collection
// creation. No other package holds a raw database handle.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the VectorStore interface:
//
//	store, err := badger.NewCollection(backend, "slack_messages")  // storage.VectorStore
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Filters
//
// Where is a metadata equality filter. An empty Where matches everything,
// which is how a full replace clears the collection:
//
//	n, err := store.DeleteWhere(ctx, storage.Where{"source": "live_sync", "hours_back": 24})
//
// # Encoding
//
// Records are encoded with mus-go serializers (see serialization.go). The
// encoding is private to this module; only the logical record shape in the
// core package is part of the contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. They perform no
// caller-visible locking: a query issued during a sync may observe the
// collection after a delete and before the matching insert.
package storage
