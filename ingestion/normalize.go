package ingestion

import (
	"regexp"
	"strings"
)

var (
	userMentionPattern    = regexp.MustCompile(`<@[A-Z0-9]+>`)
	channelMentionPattern = regexp.MustCompile(`<#[A-Z0-9]+\|([^>]+)>`)
	labeledLinkPattern    = regexp.MustCompile(`<(http[^|>]+)\|([^>]+)>`)
	bareLinkPattern       = regexp.MustCompile(`<(http[^>]+)>`)
)

// UserMarker replaces user mention tokens.
const UserMarker = "@user"

// Normalize strips Slack markup from raw message text.
//
// User mentions become "@user", channel mentions become "#name", labeled links
// become their label and bare links become the URL. Surrounding whitespace is
// trimmed. Markup that does not match passes through unchanged.
//
// Rewrites repeat until the text stops changing, so nested markup such as
// "<<http://x>>" is fully reduced and Normalize(Normalize(s)) == Normalize(s).
// Every rewrite consumes one '<', which bounds the loop.
func Normalize(raw string) string {
	text := raw
	for {
		next := normalizeOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return strings.TrimSpace(text)
}

func normalizeOnce(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}
	text = userMentionPattern.ReplaceAllLiteralString(text, UserMarker)
	text = channelMentionPattern.ReplaceAllString(text, "#$1")
	text = labeledLinkPattern.ReplaceAllString(text, "$2")
	text = bareLinkPattern.ReplaceAllString(text, "$1")
	return text
}
