// Package answer produces natural-language answers from retrieved chunks.
//
// A Generator first asks the configured chat model, if any. When there is no
// model or the call fails, it falls back to an extractive answer built from
// the context lines that share the most words with the question, so an
// answer is always produced.
package answer
