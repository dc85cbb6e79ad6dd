package livesource

import "errors"

var (
	// ErrTokenRequired is returned when no bot token is configured.
	ErrTokenRequired = errors.New("no Slack token configured (set SLACK_BOT_TOKEN)")

	// ErrChannelRequired is returned when a channel ID is empty.
	ErrChannelRequired = errors.New("channel ID required")
)
