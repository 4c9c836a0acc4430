// Package cache holds the registry's Redis client, used for server-side
// sessions and login rate-limit counters. Without an address an embedded
// miniredis instance is started, which suits a single-instance deployment.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/medreg/patient-registry/logger"
	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	miniRedis  *miniredis.Miniredis
	isEmbedded bool
)

// InitRedis connects to the Redis server at redisAddr, or starts an embedded
// one when redisAddr is empty.
func InitRedis(redisAddr, password string) error {
	if client != nil {
		return nil
	}
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start embedded Redis: %w", err)
		}
		miniRedis = mr
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		isEmbedded = true
		logger.Info("Embedded Redis started on", mr.Addr())
		return nil
	}

	c := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}
	client = c
	isEmbedded = false
	logger.Info("Connected to external Redis at", redisAddr)
	return nil
}

// GetClient returns the Redis client, or nil before InitRedis.
func GetClient() *redis.Client {
	return client
}

func IsEmbedded() bool {
	return isEmbedded
}

// Close closes the client and stops the embedded server if one is running.
func Close() error {
	var err error
	if client != nil {
		err = client.Close()
		client = nil
	}
	if miniRedis != nil {
		miniRedis.Close()
		miniRedis = nil
	}
	return err
}

// Incr increments the counter at key and starts its expiry window on the
// first increment.
func Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if client == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}
	n, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}
