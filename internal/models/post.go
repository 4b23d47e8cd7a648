package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB.
// Comments are not stored on the post; they are joined at read time.
type Post struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	User        primitive.ObjectID   `json:"user" bson:"user"`
	Description string               `json:"description" bson:"description"`
	Likes       []primitive.ObjectID `json:"likes" bson:"likes"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
}

// IsLikedBy reports whether id is in the post's likes.
func (p *Post) IsLikedBy(id primitive.ObjectID) bool {
	return containsID(p.Likes, id)
}

// PostRequest defines the request body for creating or updating a post
type PostRequest struct {
	Description string `json:"description" validate:"required,max=5000"`
}

// UserSummary is the author shape embedded in expanded posts and comments.
type UserSummary struct {
	ID     primitive.ObjectID `json:"id" bson:"_id"`
	Name   string             `json:"name" bson:"name"`
	Avatar string             `json:"avatar" bson:"avatar"`
}

// PostView is a post with its author and comments expanded.
type PostView struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id"`
	User        *UserSummary         `json:"user" bson:"user,omitempty"`
	Description string               `json:"description" bson:"description"`
	Likes       []primitive.ObjectID `json:"likes" bson:"likes"`
	Comments    []CommentView        `json:"comments" bson:"comments"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
}
