package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"unera/internal/middleware"
)

const (
	FeedKeyPrefix = "feed:ranked:%d"
	FeedKeyGlob   = "feed:ranked:*"
)

// FeedTTL is the fallback lifetime of a ranked feed when none is configured.
const FeedTTL = time.Minute

// FeedKey is the key of the ranked post ids for viewerID. Anonymous
// viewers share viewer id 0.
func FeedKey(viewerID uint) string {
	return fmt.Sprintf(FeedKeyPrefix, viewerID)
}

// InvalidateFeed drops the cached ranking of one viewer.
func InvalidateFeed(ctx context.Context, viewerID uint) {
	if client != nil {
		client.Del(ctx, FeedKey(viewerID))
	}
}

// InvalidateAllFeeds drops every cached ranked feed and returns how many
// keys were removed.
func InvalidateAllFeeds(ctx context.Context) int {
	if client == nil {
		return 0
	}
	removed := 0
	iter := client.Scan(ctx, 0, FeedKeyGlob, 100).Iterator()
	for iter.Next(ctx) {
		if n, err := client.Del(ctx, iter.Val()).Result(); err == nil {
			removed += int(n)
		}
	}
	if err := iter.Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "feed cache scan failed", slog.String("error", err.Error()))
	}
	return removed
}
