package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CommentService handles comments on posts.
type CommentService struct {
	logger   *zap.Logger
	comments repositories.CommentRepository
	posts    repositories.PostRepository
	notifier Notifier
}

// NewCommentService creates a new CommentService
func NewCommentService(
	logger *zap.Logger,
	comments repositories.CommentRepository,
	posts repositories.PostRepository,
	notifier Notifier,
) *CommentService {
	return &CommentService{logger: logger, comments: comments, posts: posts, notifier: notifier}
}

func commentNotFound(id string) string {
	return fmt.Sprintf("No comment with id of %s", id)
}

// ListByPost returns the comments of a post with their authors.
func (s *CommentService) ListByPost(ctx context.Context, postHex string) ([]models.CommentView, error) {
	post, err := s.findPost(ctx, postHex)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.GetExpandedCommentsByPost(ctx, post.ID)
	if err != nil {
		return nil, storeFailure("list comments", err, "")
	}
	return comments, nil
}

// CreateComment adds the caller's comment to a post.
func (s *CommentService) CreateComment(ctx context.Context, callerID primitive.ObjectID, postHex string, req models.CommentRequest) (*models.CommentView, error) {
	post, err := s.findPost(ctx, postHex)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{User: callerID, Post: post.ID, Text: strings.TrimSpace(req.Text)}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, storeFailure("create comment", err, "")
	}

	// The post may have been deleted after the lookup above; PostService.DeletePost
	// sweeps comments again after removing the post, so only a comment written
	// after that needs undoing here.
	if _, err := s.posts.GetPostByID(ctx, post.ID); err != nil {
		if rmErr := s.comments.DeleteComment(ctx, comment.ID); rmErr != nil && !errors.Is(rmErr, models.ErrNotFound) {
			s.logger.Error("failed to remove comment on deleted post",
				zap.String("comment", comment.ID.Hex()), zap.Error(rmErr))
		}
		return nil, storeFailure("find post", err, postNotFound(postHex))
	}

	if post.User != callerID {
		s.notifier.Notify(ctx, &models.Notification{
			Type:        models.NotificationComment,
			ActorID:     callerID.Hex(),
			RecipientID: post.User.Hex(),
			TargetID:    post.ID.Hex(),
			Message:     "commented on your post",
		})
	}
	return s.expanded(ctx, comment.ID)
}

// UpdateComment replaces the text of one of the caller's comments.
func (s *CommentService) UpdateComment(ctx context.Context, callerID primitive.ObjectID, hexID string, req models.CommentRequest) (*models.CommentView, error) {
	comment, err := s.ownedComment(ctx, callerID, hexID, "Not authorized to update this comment")
	if err != nil {
		return nil, err
	}
	if err := s.comments.UpdateText(ctx, comment.ID, strings.TrimSpace(req.Text)); err != nil {
		return nil, storeFailure("update comment", err, commentNotFound(hexID))
	}
	return s.expanded(ctx, comment.ID)
}

// DeleteComment removes one of the caller's comments.
func (s *CommentService) DeleteComment(ctx context.Context, callerID primitive.ObjectID, hexID string) error {
	comment, err := s.ownedComment(ctx, callerID, hexID, "Not authorized to delete this comment")
	if err != nil {
		return err
	}
	if err := s.comments.DeleteComment(ctx, comment.ID); err != nil {
		return storeFailure("delete comment", err, commentNotFound(hexID))
	}
	return nil
}

func (s *CommentService) findPost(ctx context.Context, postHex string) (*models.Post, error) {
	id, err := parseID(postHex, postNotFound(postHex))
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, storeFailure("find post", err, postNotFound(postHex))
	}
	return post, nil
}

func (s *CommentService) ownedComment(ctx context.Context, callerID primitive.ObjectID, hexID, forbidden string) (*models.Comment, error) {
	id, err := parseID(hexID, commentNotFound(hexID))
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return nil, storeFailure("find comment", err, commentNotFound(hexID))
	}
	if err := ensureOwner(comment.User, callerID, forbidden); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) expanded(ctx context.Context, id primitive.ObjectID) (*models.CommentView, error) {
	comment, err := s.comments.GetExpandedComment(ctx, id)
	if err != nil {
		return nil, storeFailure("find comment", err, commentNotFound(id.Hex()))
	}
	return comment, nil
}
