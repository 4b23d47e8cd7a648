package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CheckRateLimit counts one hit against resource for id and reports whether
// the caller is still within limit for the current window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return true, err
		}
	}
	return cnt <= int64(limit), nil
}

// RateLimit allows limit requests per window and client IP on the routes it
// wraps. Without redis, or when redis fails, requests are let through.
func RateLimit(rdb *redis.Client, logger *zap.Logger, resource string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}

			allowed, err := CheckRateLimit(c.Request().Context(), rdb, resource, c.RealIP(), limit, window)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("resource", resource), zap.Error(err))
				return next(c)
			}
			if !allowed {
				return models.NewTooManyRequestsError("Too many requests, please try again later")
			}
			return next(c)
		}
	}
}
