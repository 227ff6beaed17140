package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// package-level Redis client used for the token blacklist (optional)
var blacklistClient *redis.Client

// SetBlacklistClient configures the Redis client used for blacklist
// operations. Safe to call with nil to disable blacklist features.
func SetBlacklistClient(c *redis.Client) {
	blacklistClient = c
}

// BlacklistToken stores the given access token in the Redis blacklist with
// a TTL. Without a configured client this is a no-op.
func BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	if blacklistClient == nil {
		return nil
	}
	return blacklistClient.Set(ctx, "blacklist:token:"+token, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether the token was revoked. Without a
// configured client it always reports false.
func IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if blacklistClient == nil {
		return false, nil
	}
	exists, err := blacklistClient.Exists(ctx, "blacklist:token:"+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
