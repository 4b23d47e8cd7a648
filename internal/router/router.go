package router

import (
	"net/http"
	"time"

	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/validators"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Logger        *zap.Logger
	Tokens        *auth.TokenManager
	Runner        query.Runner
	Users         *services.UserService
	Posts         *services.PostService
	Comments      *services.CommentService
	Notifications *services.NotificationService

	// Redis backs the login rate limiter; nil disables it.
	Redis           *redis.Client
	RateLimit       int
	RateLimitWindow time.Duration

	TokenTTL     time.Duration
	SecureCookie bool
}

// SetupMiddleware configures global Echo middleware, the validator and the
// error handler.
func SetupMiddleware(e *echo.Echo, logger *zap.Logger, origins []string, metrics *middleware.Metrics) {
	e.HTTPErrorHandler = handlers.NewErrorHandler(logger)
	e.Validator = validators.NewValidator()

	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.RequestIDWithConfig(eMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(eMiddleware.RequestLoggerWithConfig(eMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v eMiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(eMiddleware.CORSWithConfig(eMiddleware.CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: len(origins) > 0 && origins[0] != "*",
	}))
	if metrics != nil {
		e.Use(metrics.Middleware())
	}
	logger.Info("Global middleware configured")
}

// SetupRoutes configures all application routes
func SetupRoutes(e *echo.Echo, d Deps) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Unprotected routes for authentication ---
	public := e.Group("/api")
	limit := middleware.RateLimit(d.Redis, d.Logger, "auth", d.RateLimit, d.RateLimitWindow)
	handlers.NewAuthHandler(d.Users, d.TokenTTL, d.SecureCookie).RegisterAuthRoutes(public, limit)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api", middleware.JWTAuthMiddleware(d.Tokens, d.Users))

	handlers.NewUserHandler(d.Users, d.Runner).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(d.Users).RegisterFollowRoutes(api)
	handlers.NewPostHandler(d.Posts, d.Runner).RegisterPostRoutes(api)
	handlers.NewLikeHandler(d.Posts).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(d.Comments, d.Runner).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(d.Notifications, d.Users).RegisterNotificationRoutes(api)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Route not found")
	})
	d.Logger.Info("All routes configured", zap.Int("routes", len(e.Routes())))
}
