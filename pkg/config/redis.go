package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis connects to Redis. It returns a nil client when REDIS_URL is
// unset; callers treat that as "rate limiting disabled".
func InitRedis(ctx context.Context, url string, logger *zap.Logger) (*redis.Client, error) {
	if url == "" {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
		return nil, nil
	}

	opts := &redis.Options{Addr: url}
	if strings.Contains(url, "://") {
		var err error
		if opts, err = redis.ParseURL(url); err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connected", zap.String("addr", opts.Addr))
	return client, nil
}
