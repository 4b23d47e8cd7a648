package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PostService handles posts, likes and the follow feed.
type PostService struct {
	logger   *zap.Logger
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	tx       repositories.Transactor
	notifier Notifier
}

// NewPostService creates a new PostService
func NewPostService(
	logger *zap.Logger,
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	tx repositories.Transactor,
	notifier Notifier,
) *PostService {
	return &PostService{logger: logger, posts: posts, comments: comments, tx: tx, notifier: notifier}
}

func postNotFound(id string) string {
	return fmt.Sprintf("No post with id of %s", id)
}

// ListFeed returns the posts of the caller and of everyone they follow, newest first.
func (s *PostService) ListFeed(ctx context.Context, caller *models.User) ([]models.PostView, error) {
	authors := make([]primitive.ObjectID, 0, len(caller.Following)+1)
	authors = append(authors, caller.ID)
	authors = append(authors, caller.Following...)

	posts, err := s.posts.GetExpandedPostsByUsers(ctx, authors)
	if err != nil {
		return nil, storeFailure("list feed", err, "")
	}
	return posts, nil
}

// GetPost returns one post with its author and comments.
func (s *PostService) GetPost(ctx context.Context, hexID string) (*models.PostView, error) {
	id, err := parseID(hexID, postNotFound(hexID))
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetExpandedPost(ctx, id)
	if err != nil {
		return nil, storeFailure("find post", err, postNotFound(hexID))
	}
	return post, nil
}

// CreatePost publishes a post for the caller.
func (s *PostService) CreatePost(ctx context.Context, callerID primitive.ObjectID, req models.PostRequest) (*models.PostView, error) {
	post := &models.Post{User: callerID, Description: strings.TrimSpace(req.Description)}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, storeFailure("create post", err, "")
	}
	return s.GetPost(ctx, post.ID.Hex())
}

// UpdatePost replaces the description of one of the caller's posts.
func (s *PostService) UpdatePost(ctx context.Context, callerID primitive.ObjectID, hexID string, req models.PostRequest) (*models.PostView, error) {
	post, err := s.ownedPost(ctx, callerID, hexID, "Not authorized to update this post")
	if err != nil {
		return nil, err
	}
	if err := s.posts.UpdateDescription(ctx, post.ID, strings.TrimSpace(req.Description)); err != nil {
		return nil, storeFailure("update post", err, postNotFound(hexID))
	}
	return s.GetPost(ctx, hexID)
}

// DeletePost removes one of the caller's posts together with its comments.
// Comments go first so a failure never leaves comments without a post.
func (s *PostService) DeletePost(ctx context.Context, callerID primitive.ObjectID, hexID string) error {
	post, err := s.ownedPost(ctx, callerID, hexID, "Not authorized to delete this post")
	if err != nil {
		return err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		removed, err := s.comments.DeleteCommentsByPost(ctx, post.ID)
		if err != nil {
			return err
		}
		s.logger.Debug("removed post comments", zap.String("post", hexID), zap.Int64("comments", removed))
		return s.posts.DeletePost(ctx, post.ID)
	})
	if err != nil {
		return storeFailure("delete post", err, postNotFound(hexID))
	}

	// Sweep comments created while the post was being removed.
	if removed, err := s.comments.DeleteCommentsByPost(ctx, post.ID); err != nil {
		s.logger.Error("failed to sweep comments of deleted post", zap.String("post", hexID), zap.Error(err))
	} else if removed > 0 {
		s.logger.Debug("swept late post comments", zap.String("post", hexID), zap.Int64("comments", removed))
	}
	return nil
}

// ToggleLike likes the post, or unlikes it when the caller already does.
func (s *PostService) ToggleLike(ctx context.Context, callerID primitive.ObjectID, hexID string) (*models.PostView, error) {
	id, err := parseID(hexID, postNotFound(hexID))
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, storeFailure("find post", err, postNotFound(hexID))
	}

	like := !post.IsLikedBy(callerID)
	if err := s.posts.UpdateLike(ctx, id, callerID, like); err != nil {
		return nil, storeFailure("toggle like", err, postNotFound(hexID))
	}

	if like && post.User != callerID {
		s.notifier.Notify(ctx, &models.Notification{
			Type:        models.NotificationLike,
			ActorID:     callerID.Hex(),
			RecipientID: post.User.Hex(),
			TargetID:    hexID,
			Message:     "liked your post",
		})
	}
	return s.GetPost(ctx, hexID)
}

func (s *PostService) ownedPost(ctx context.Context, callerID primitive.ObjectID, hexID, forbidden string) (*models.Post, error) {
	id, err := parseID(hexID, postNotFound(hexID))
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, storeFailure("find post", err, postNotFound(hexID))
	}
	if err := ensureOwner(post.User, callerID, forbidden); err != nil {
		return nil, err
	}
	return post, nil
}
