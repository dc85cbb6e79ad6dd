// Package livesource reads conversations from a live Slack workspace.
//
// Client wraps the Slack Web API: credential check, channel listing, joining,
// history with pagination, user lookup and workspace search. Calls are paced
// by a rate limiter, and credential failures are reported as
// core.ErrSourceAuth so callers can stop instead of retrying.
package livesource
