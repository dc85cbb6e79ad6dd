package livesync

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/recall/core"
)

// userNames memoizes user ID to display name lookups for one sync run.
// Failed lookups are remembered as the raw ID.
type userNames struct {
	source Source
	cache  *lru.Cache[string, string]
	logger *slog.Logger
}

func newUserNames(source Source, size int, logger *slog.Logger) (*userNames, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &userNames{source: source, cache: cache, logger: logger}, nil
}

func (u *userNames) resolve(ctx context.Context, userID string) string {
	if userID == "" {
		return core.Unknown
	}
	if name, ok := u.cache.Get(userID); ok {
		return name
	}
	name, err := u.source.UserName(ctx, userID)
	if err != nil || name == "" {
		u.logger.Debug("user lookup failed, using ID", "user", userID, "err", err)
		name = userID
	}
	u.cache.Add(userID, name)
	return name
}
