package livesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// Slack error codes that mean the credential itself is unusable.
var authErrorCodes = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"token_revoked":    true,
	"token_expired":    true,
	"account_inactive": true,
}

const (
	// DefaultPageSize is the page size for list and history calls.
	DefaultPageSize = 200

	// DefaultRequestInterval spaces Slack Web API calls.
	DefaultRequestInterval = 1200 * time.Millisecond
)

// Client is a thin, rate-limited wrapper over the Slack Web API.
type Client struct {
	api      *slack.Client
	limiter  *rate.Limiter
	pageSize int
	logger   *slog.Logger
}

type clientOptions struct {
	apiURL     string
	httpClient *http.Client
	interval   time.Duration
	pageSize   int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

// WithAPIURL points the client at a different Web API root, e.g. a test server.
func WithAPIURL(url string) Option {
	return func(o *clientOptions) {
		o.apiURL = url
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithRequestInterval sets the minimum spacing between API calls. Zero disables pacing.
func WithRequestInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		o.interval = d
	}
}

// WithPageSize sets the page size for paginated calls.
func WithPageSize(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates a client authenticating with token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, ErrTokenRequired)
	}
	o := &clientOptions{
		interval: DefaultRequestInterval,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	var slackOpts []slack.Option
	if o.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(strings.TrimSuffix(o.apiURL, "/")+"/"))
	}
	if o.httpClient != nil {
		slackOpts = append(slackOpts, slack.OptionHTTPClient(o.httpClient))
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if o.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(o.interval), 1)
	}

	return &Client{
		api:      slack.New(token, slackOpts...),
		limiter:  limiter,
		pageSize: o.pageSize,
		logger:   o.logger.With("component", "slack"),
	}, nil
}

// TestConnection verifies the credential. An unusable credential is
// reported as core.ErrSourceAuth.
func (c *Client) TestConnection(ctx context.Context) (*Identity, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return &Identity{
		Team:   resp.Team,
		TeamID: resp.TeamID,
		User:   resp.User,
		UserID: resp.UserID,
		BotID:  resp.BotID,
	}, nil
}

// ListChannels returns every public channel visible to the credential.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	cursor := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{"public_channel"},
			ExcludeArchived: true,
			Limit:           c.pageSize,
			Cursor:          cursor,
		})
		if err != nil {
			return nil, classify(err)
		}
		for _, ch := range page {
			channels = append(channels, Channel{
				ID:         ch.ID,
				Name:       ch.Name,
				IsPrivate:  ch.IsPrivate,
				IsMember:   ch.IsMember,
				NumMembers: ch.NumMembers,
			})
		}
		if next == "" {
			break
		}
		cursor = next
	}
	c.logger.Debug("listed channels", "count", len(channels))
	return channels, nil
}

// JoinChannel adds the bot to a public channel. Already being a member is
// not an error.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return ErrChannelRequired
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, warning, _, err := c.api.JoinConversationContext(ctx, channelID)
	if err != nil {
		if errorCode(err) == "already_in_channel" {
			return nil
		}
		return classify(err)
	}
	if warning != "" {
		c.logger.Debug("join warning", "channel", channelID, "warning", warning)
	}
	return nil
}

// FetchMessages returns the channel's top-level history newer than oldest,
// following pagination up to limit messages (0 means no limit).
func (c *Client) FetchMessages(ctx context.Context, channelID string, oldest time.Time, limit int) ([]Message, error) {
	if channelID == "" {
		return nil, ErrChannelRequired
	}

	var messages []Message
	cursor := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Oldest:    FormatTS(oldest),
			Limit:     c.pageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, classify(err)
		}
		for _, m := range resp.Messages {
			messages = append(messages, Message{
				User:     m.User,
				Text:     m.Text,
				TS:       m.Timestamp,
				ThreadTS: m.ThreadTimestamp,
				SubType:  m.SubType,
			})
			if limit > 0 && len(messages) >= limit {
				return messages, nil
			}
		}
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}
	return messages, nil
}

// UserName resolves a user ID to the best available display name:
// real name, then profile display name, then handle.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", classify(err)
	}
	for _, name := range []string{user.RealName, user.Profile.RealName, user.Profile.DisplayName, user.Name} {
		if name != "" {
			return name, nil
		}
	}
	return userID, nil
}

// SearchMessages runs the workspace search, newest first. It requires a user
// token with search:read; bot tokens are rejected by Slack.
func (c *Client) SearchMessages(ctx context.Context, query string, count int) ([]SearchMatch, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := slack.NewSearchParameters()
	params.Sort = "timestamp"
	params.SortDirection = "desc"
	if count > 0 {
		params.Count = count
	}

	resp, err := c.api.SearchMessagesContext(ctx, query, params)
	if err != nil {
		return nil, classify(err)
	}
	matches := make([]SearchMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		user := m.Username
		if user == "" {
			user = m.User
		}
		matches = append(matches, SearchMatch{
			Text:      m.Text,
			User:      user,
			Channel:   m.Channel.Name,
			Timestamp: m.Timestamp,
			Permalink: m.Permalink,
		})
	}
	return matches, nil
}

// FormatTS renders t as a Slack timestamp ("seconds.micros").
func FormatTS(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}

// ParseTS converts a Slack timestamp into a time. Invalid input yields the zero time.
func ParseTS(ts string) time.Time {
	secs, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if frac != "" {
		frac = (frac + "000000")[:6]
		micros, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(s, micros*1000).UTC()
}

func errorCode(err error) string {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err
	}
	return ""
}

// classify marks credential failures with core.ErrSourceAuth.
func classify(err error) error {
	if authErrorCodes[errorCode(err)] {
		return fmt.Errorf("%w: %w", core.ErrSourceAuth, err)
	}
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Errorf("slack rate limited, retry after %s: %w", rl.RetryAfter, err)
	}
	return err
}
