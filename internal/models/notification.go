package models

import "time"

const (
	NotificationFollow  = "follow"
	NotificationLike    = "like"
	NotificationComment = "comment"
)

// Notification represents a user notification (PostgreSQL).
// User and post references are MongoDB ObjectIDs in hex form.
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Type        string    `json:"type" gorm:"size:20;index"` // follow, like, comment
	ActorID     string    `json:"actorId" gorm:"size:24;index"`
	RecipientID string    `json:"recipientId" gorm:"size:24;index"`
	TargetID    string    `json:"targetId" gorm:"size:24"` // user or post ID
	Message     string    `json:"message"`
	IsRead      bool      `json:"isRead" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
}

// GroupedNotifications buckets a recipient's notifications by age.
type GroupedNotifications struct {
	Today     []Notification `json:"today"`
	Yesterday []Notification `json:"yesterday"`
	ThisWeek  []Notification `json:"thisWeek"`
	Older     []Notification `json:"older"`
}
