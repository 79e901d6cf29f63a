package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// tokenKeyPrefix namespaces verified-token entries in Redis.
	tokenKeyPrefix = "auth:verified:"
	// defaultCacheTTL caps how long a verification result is trusted when no
	// cap is configured.
	defaultCacheTTL = 5 * time.Minute
)

// RedisTokenCache remembers which raw tokens have already been verified and
// which user they belong to. Entries expire with the token, capped at maxTTL
// so revocations are picked up within minutes.
type RedisTokenCache struct {
	Client *redis.Client
	maxTTL time.Duration
}

func NewRedisTokenCache(client *redis.Client, maxTTL time.Duration) *RedisTokenCache {
	if maxTTL <= 0 {
		maxTTL = defaultCacheTTL
	}
	return &RedisTokenCache{Client: client, maxTTL: maxTTL}
}

// Tokens are hashed before use as keys so raw credentials never land in Redis.
func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}

// ttlFor clamps the cache lifetime to [0, maxTTL]. Zero means the token is
// already expired and must not be cached.
func (c *RedisTokenCache) ttlFor(expiry time.Time) time.Duration {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return 0
	}
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	return ttl
}

// Lookup returns the cached user ID for a verified token. A miss, an expired
// entry and a Redis error all report ok=false; the caller falls back to full
// verification.
func (c *RedisTokenCache) Lookup(ctx context.Context, rawToken string) (string, bool) {
	if c == nil || c.Client == nil {
		return "", false
	}

	userID, err := c.Client.Get(ctx, tokenKey(rawToken)).Result()
	if err != nil || userID == "" {
		return "", false
	}
	return userID, true
}

// Store caches a verification result until the token expires, capped at the
// configured maximum.
func (c *RedisTokenCache) Store(ctx context.Context, rawToken, userID string, expiry time.Time) error {
	if c == nil || c.Client == nil {
		return nil
	}

	ttl := c.ttlFor(expiry)
	if ttl <= 0 {
		return nil
	}

	return c.Client.Set(ctx, tokenKey(rawToken), userID, ttl).Err()
}
