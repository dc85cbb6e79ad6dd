// Package ingestion turns Slack transcripts into stored records.
//
// The flow is Parse (export JSON to messages, with Normalize applied to each
// message text), Chunker (messages to chunks, one per message or word-bounded
// windows) and Indexer (embed chunks and upsert them into a vector store).
//
// File parsing can run concurrently on a worker pool (ParseFiles). Embedding
// and storage calls are issued sequentially.
package ingestion
