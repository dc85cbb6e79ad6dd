package livesync

import "errors"

var (
	// ErrSourceRequired is returned when a live source is not provided.
	ErrSourceRequired = errors.New("live source required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrRunnerRequired is returned when a scheduler has nothing to run.
	ErrRunnerRequired = errors.New("sync runner required")

	// ErrInvalidWindow is returned when hours back is not positive.
	ErrInvalidWindow = errors.New("hours back must be positive")

	// ErrInvalidCron is returned for an unparsable cron expression.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrStopTimeout is returned when the scheduler loop does not exit within
	// the join timeout. The loop still exits once its current sync finishes.
	ErrStopTimeout = errors.New("scheduler did not stop in time")
)
