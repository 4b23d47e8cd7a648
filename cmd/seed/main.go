// Command seed fills the development database with fake data.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/seed"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"go.uber.org/zap"
)

func main() {
	users := flag.Int("users", 25, "Number of users to create")
	posts := flag.Int("posts", 3, "Posts per user")
	comments := flag.Int("comments", 2, "Comments per post")
	follows := flag.Int("follows", 5, "Users each user follows")
	likes := flag.Int("likes", 4, "Likes per post")
	clean := flag.Bool("clean", false, "Drop users, posts and comments before seeding")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		logger.Fatal("Refusing to seed a production database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := config.InitDB(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	if *clean {
		for _, name := range []string{"users", "posts", "comments"} {
			if err := db.Database.Collection(name).Drop(ctx); err != nil {
				logger.Fatal("Failed to drop collection", zap.String("collection", name), zap.Error(err))
			}
		}
		logger.Info("Collections dropped")
	}
	if err := repositories.EnsureIndexes(ctx, db.Database); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}

	seeder := seed.NewSeeder(
		repositories.NewMongoUserRepository(db.Database),
		repositories.NewMongoPostRepository(db.Database),
		repositories.NewMongoCommentRepository(db.Database),
	)
	sum, err := seeder.Run(ctx, seed.Options{
		Users:           *users,
		PostsPerUser:    *posts,
		CommentsPerPost: *comments,
		FollowsPerUser:  *follows,
		LikesPerPost:    *likes,
	})
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}

	logger.Info("Seeding complete",
		zap.Int("users", len(sum.Users)),
		zap.Int("posts", len(sum.Posts)),
		zap.Int("comments", sum.Comments),
		zap.Int("follows", sum.Follows),
		zap.Int("likes", sum.Likes),
		zap.String("password", seed.Password))
}
