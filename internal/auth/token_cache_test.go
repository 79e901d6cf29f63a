package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenCacheTTLClamp(t *testing.T) {
	cache := NewRedisTokenCache(nil, time.Minute)

	assert.Equal(t, time.Duration(0), cache.ttlFor(time.Now().Add(-time.Second)))
	assert.Equal(t, time.Minute, cache.ttlFor(time.Now().Add(time.Hour)))

	short := cache.ttlFor(time.Now().Add(10 * time.Second))
	assert.InDelta(t, float64(10*time.Second), float64(short), float64(time.Second))
}

func TestTokenCacheDefaultsCapWhenUnset(t *testing.T) {
	cache := NewRedisTokenCache(nil, 0)
	assert.Equal(t, defaultCacheTTL, cache.maxTTL)
}

func TestTokenKeyHidesRawToken(t *testing.T) {
	key := tokenKey("eyJhbGciOiJIUzI1NiJ9.secret.payload")
	assert.True(t, strings.HasPrefix(key, tokenKeyPrefix))
	assert.NotContains(t, key, "secret")
}
