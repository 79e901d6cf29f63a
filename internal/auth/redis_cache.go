package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"bistro-rush/internal/logger"
)

// InitializeTokenCache connects to Redis and verifies the connection before
// handing the client to the verified-token cache.
func InitializeTokenCache(redisAddr string, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Error("AUTH", fmt.Sprintf("failed to connect to Redis at %s: %v", redisAddr, err))
		return nil, err
	}

	log.Info("AUTH", fmt.Sprintf("connected to Redis at %s for token caching", redisAddr))
	return redisClient, nil
}
