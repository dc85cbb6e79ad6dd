// Package reembed re-embeds every record of a collection with the currently
// configured embedder, for example after switching embedding models.
//
// Records keep their IDs, documents and metadata; only the embedding is
// replaced. Work proceeds in batches, each a single embedder call (the embedder
// owns retries), and progress is written to an io.Writer.
package reembed
