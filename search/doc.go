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


// Package search answers questions from the indexed conversations.
//
// The Pipeline type implements retrieval-augmented answering:
//   - Embed the question as a single-element batch
//   - Query the vector store for the nearest records by cosine distance
//   - Generate an answer from the top five documents (see package answer)
//
// Distances are passed through uninterpreted; Similarity converts one into a
// display score. A Monitor can observe each stage.
package search
