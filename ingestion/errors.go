package ingestion

import "errors"

var (
	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrUnknownChunkingMode is returned for an unrecognised chunking mode name.
	ErrUnknownChunkingMode = errors.New("unknown chunking mode")

	// ErrUnsupportedExport is returned when export JSON is neither a message
	// list nor a channel-to-messages object.
	ErrUnsupportedExport = errors.New("unsupported export format")
)
