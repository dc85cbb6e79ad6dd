// Package livesync keeps the vector store current with recent Slack traffic.
//
// Engine.Sync reads the last N hours from a Source, chunks and embeds the
// messages, then replaces the previous generation written for the same N.
// Records from file indexing and from syncs with other windows are left alone.
//
// Scheduler runs Sync on an interval or cron expression in the background,
// with jitter, a cooldown after failures, and a bounded Stop.
package livesync
