package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/router"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/firebase"
	"github.com/anonto42/nano-social/backend/pkg/geocoder"
	"github.com/anonto42/nano-social/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Sugar().Fatalf("failed to load configuration: %s", err.Error())
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	if err := repositories.EnsureIndexes(ctx, db.Database); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}

	rdb, err := config.InitRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	geo, err := geocoder.New(cfg.GeocoderProvider, cfg.GeocoderAPIKey)
	if err != nil {
		logger.Fatal("Failed to initialize geocoder", zap.Error(err))
	}

	// --- Repositories ---
	userRepo := repositories.NewMongoUserRepository(db.Database)
	postRepo := repositories.NewMongoPostRepository(db.Database)
	commentRepo := repositories.NewMongoCommentRepository(db.Database)
	tx := repositories.NewMongoTransactor(db.Mongo, cfg.MongoTransactions)

	var notificationRepo repositories.NotificationRepository
	if db.Postgres != nil {
		notificationRepo = repositories.NewPostgresNotificationRepository(db.Postgres)
	}

	// --- Services ---
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpire)
	photos := storage.NewOsPhotoStore(cfg.FileUploadPath, cfg.MaxFileUpload)
	notifications := services.NewNotificationService(logger, notificationRepo)
	users := services.NewUserService(logger, userRepo, tx, tokens, geo, photos, notifications)
	posts := services.NewPostService(logger, postRepo, commentRepo, tx, notifications)
	comments := services.NewCommentService(logger, commentRepo, postRepo, notifications)

	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
		users.WithFirebase(app.AuthClient)
		logger.Info("Firebase sign in enabled")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Static("/uploads", cfg.FileUploadPath)

	router.SetupMiddleware(e, logger, cfg.Origins(), middleware.NewMetrics(prometheus.DefaultRegisterer))
	router.SetupRoutes(e, router.Deps{
		Logger:          logger,
		Tokens:          tokens,
		Runner:          query.NewMongoRunner(db.Database),
		Users:           users,
		Posts:           posts,
		Comments:        comments,
		Notifications:   notifications,
		Redis:           rdb,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
		TokenTTL:        cfg.JWTExpire,
		SecureCookie:    cfg.IsProduction(),
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
