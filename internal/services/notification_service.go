package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NotificationService stores and serves notifications. Without a repository
// every call is a no-op and reads come back empty.
type NotificationService struct {
	logger *zap.Logger
	repo   repositories.NotificationRepository
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService; repo may be nil.
func NewNotificationService(logger *zap.Logger, repo repositories.NotificationRepository) *NotificationService {
	return &NotificationService{logger: logger, repo: repo, now: time.Now}
}

// Enabled reports whether notifications are persisted.
func (s *NotificationService) Enabled() bool {
	return s.repo != nil
}

// Notify records n. Failures are logged and swallowed.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) {
	if s.repo == nil {
		return
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("failed to record notification",
			zap.String("type", n.Type),
			zap.String("recipient", n.RecipientID),
			zap.Error(err))
	}
}

// List returns one page of the recipient's notifications, newest first, and the total.
func (s *NotificationService) List(ctx context.Context, recipient primitive.ObjectID, page, limit int) ([]models.Notification, int64, error) {
	if s.repo == nil {
		return []models.Notification{}, 0, nil
	}
	notifications, total, err := s.repo.GetByRecipientID(ctx, recipient.Hex(), page, limit)
	if err != nil {
		return nil, 0, storeFailure("list notifications", err, "")
	}
	return notifications, total, nil
}

// Grouped buckets the recipient's notifications by age.
func (s *NotificationService) Grouped(ctx context.Context, recipient primitive.ObjectID) (*models.GroupedNotifications, error) {
	if s.repo == nil {
		return &models.GroupedNotifications{
			Today:     []models.Notification{},
			Yesterday: []models.Notification{},
			ThisWeek:  []models.Notification{},
			Older:     []models.Notification{},
		}, nil
	}
	g, err := s.repo.GetGrouped(ctx, recipient.Hex(), s.now())
	if err != nil {
		return nil, storeFailure("group notifications", err, "")
	}
	return g, nil
}

// UnreadCount counts the recipient's unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	count, err := s.repo.GetUnreadCount(ctx, recipient.Hex())
	if err != nil {
		return 0, storeFailure("count unread", err, "")
	}
	return count, nil
}

// MarkRead marks one of the recipient's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, recipient primitive.ObjectID, rawID string) error {
	notFound := fmt.Sprintf("No notification with id of %s", rawID)
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || s.repo == nil {
		return models.NewNotFoundError(notFound)
	}
	if err := s.repo.MarkAsRead(ctx, uint(id), recipient.Hex()); err != nil {
		return storeFailure("mark read", err, notFound)
	}
	return nil
}

// MarkAllRead marks every notification of the recipient as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.MarkAllAsRead(ctx, recipient.Hex()); err != nil {
		return storeFailure("mark all read", err, "")
	}
	return nil
}
