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


package core

import "errors"

// Error taxonomy shared across packages.
var (
	// ErrTransientProvider indicates an embedding or chat call kept failing
	// after the retry policy was exhausted.
	ErrTransientProvider = errors.New("provider request failed")

	// ErrSourceAuth indicates the live-source credential is invalid or revoked.
	ErrSourceAuth = errors.New("live source authentication failed")

	// ErrPartialSync indicates some channels failed during a sync run.
	ErrPartialSync = errors.New("partial sync failure")

	// ErrEmptyInput indicates no messages or chunks were produced.
	ErrEmptyInput = errors.New("no messages to index")

	// ErrConfiguration indicates no usable backend or credential is configured.
	ErrConfiguration = errors.New("configuration error")
)

// Domain validation errors
var (
	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidRecord indicates an IndexedRecord failed validation.
	ErrInvalidRecord = errors.New("invalid indexed record")

	// ErrEmptyContent indicates the text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingEmbedding indicates a record has no embedding vector.
	ErrMissingEmbedding = errors.New("embedding cannot be empty")

	// ErrMissingID indicates a record has the zero UUID.
	ErrMissingID = errors.New("record id cannot be zero")

	// ErrInvalidMetadataValue indicates a metadata value is not a scalar.
	ErrInvalidMetadataValue = errors.New("metadata value must be a scalar")
)
