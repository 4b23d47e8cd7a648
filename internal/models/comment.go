package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment represents a comment on a post
type Comment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	User      primitive.ObjectID `json:"user" bson:"user"` // author
	Post      primitive.ObjectID `json:"post" bson:"post"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// CommentRequest defines the request body for creating or updating a comment
type CommentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=1000"`
}

// CommentView is a comment with its author expanded.
type CommentView struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	User      *UserSummary       `json:"user" bson:"user,omitempty"`
	Post      primitive.ObjectID `json:"post" bson:"post"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
