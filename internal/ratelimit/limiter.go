// Package ratelimit provides Redis-backed fixed-window rate limiting using
// INCR + EXPIRE.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"marketchat/backend/internal/obs"

	"github.com/redis/go-redis/v9"
)

// Rule defines a rate limiting policy: the key prefix, the maximum count in
// the window and the window duration.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// MessageRule limits live chat sends per user.
func MessageRule(limit int, window time.Duration) Rule {
	return Rule{Key: "rl:chat:msg:", Limit: limit, Window: window}
}

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client redis.Cmdable
	log    *slog.Logger
}

func NewLimiter(client redis.Cmdable, logger *slog.Logger) *Limiter {
	return &Limiter{client: client, log: obs.Or(logger).With("component", "ratelimit")}
}

// Allow increments the identifier's counter and reports whether it is still
// within rule. Redis errors fail open: the request is allowed and the error
// returned for logging.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	if rule.Limit <= 0 {
		return true, nil
	}
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("redis INCR failed, allowing", "key", key, "err", err)
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			l.log.Warn("redis EXPIRE failed, allowing", "key", key, "err", err)
			// A key without TTL would block the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}
