package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"unera/internal/middleware"
	"unera/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside loads key into dest from Redis, or calls fetch to fill dest and
// stores the JSON encoding of dest under key for ttl. Redis failures are
// logged and degrade to calling fetch; errors from fetch are returned as is
// and nothing is cached.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}
	ns := namespace(key)

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		jerr := json.Unmarshal(raw, dest)
		if jerr == nil {
			observability.CacheRequests.WithLabelValues(ns, "hit").Inc()
			return nil
		}
		middleware.Logger.WarnContext(ctx, "discarding undecodable cache entry",
			slog.String("key", key),
			slog.String("error", jerr.Error()))
		observability.CacheRequests.WithLabelValues(ns, "miss").Inc()
	case errors.Is(err, redis.Nil):
		observability.CacheRequests.WithLabelValues(ns, "miss").Inc()
	default:
		observability.CacheRequests.WithLabelValues(ns, "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache encode failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil
	}
	if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return nil
}

func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Store writes the JSON encoding of value under key for ttl. It is a no-op
// without Redis.
func Store(ctx context.Context, key string, value any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, payload, ttl).Err()
}
