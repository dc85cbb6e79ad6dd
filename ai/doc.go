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


// Package ai provides abstractions for the AI services used by recall.
//
// Two capabilities are modelled: turning text into vectors (Embedder) and
// turning a prompt into an answer (ChatModel). Concrete backends live in
// sub-packages and are selected once, at construction, from Config:
//
//   - ai/openai: hosted OpenAI API or any OpenAI-compatible server
//   - ai/ollama: local models served by Ollama
//   - ai/anthropic: Anthropic chat (no embeddings)
//   - ai/mock: test doubles
//
// Call sites depend only on the interfaces, never on which backend produced
// a vector. Vectors from different backends are not comparable; a collection
// must be re-embedded (see package reembed) after switching.
//
// # Decorators
//
// BatchEmbedder enforces the request discipline every backend gets: fixed
// size batches issued sequentially, paced by a rate limiter, each retried
// through Retry with a Backoff policy. CachingEmbedder sits in front of it
// and skips texts whose fingerprint was embedded before.
//
//	embedder, _ := ai.NewBatchEmbedder(backend,
//	    ai.WithBatchSizeLimit(10),
//	    ai.WithRetryPolicy(3, ai.DefaultBackoff()),
//	)
//
// # Constructor Return Type Pattern
//
// Backend constructors (openai.NewEmbedder, anthropic.NewChatModel, ...)
// return interface types. Decorators and mocks return concrete types so tests
// can inspect them.
package ai
