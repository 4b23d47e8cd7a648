package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultAvatar = "no-photo.jpg"
	DefaultCover  = "no-cover.jpg"

	// Relationship arrays kept on every user document.
	FieldFollowers = "followers"
	FieldFollowing = "following"
)

// User is a member of the network stored in the users collection.
// Followers and Following mirror each other across documents: if A follows B,
// B is in A.Following and A is in B.Followers.
type User struct {
	ID        primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Email     string               `json:"email" bson:"email"`
	Password  string               `json:"-" bson:"password"` // bcrypt hash, never serialized
	Name      string               `json:"name" bson:"name"`
	Gender    string               `json:"gender" bson:"gender"`
	Birthday  *time.Time           `json:"birthday,omitempty" bson:"birthday,omitempty"`
	JobTitle  string               `json:"jobTitle,omitempty" bson:"jobTitle,omitempty"`
	Address   string               `json:"address" bson:"address"`
	Location  *Location            `json:"location,omitempty" bson:"location,omitempty"`
	Website   string               `json:"website,omitempty" bson:"website,omitempty"`
	Avatar    string               `json:"avatar" bson:"avatar"`
	Cover     string               `json:"cover" bson:"cover"`
	Followers []primitive.ObjectID `json:"followers" bson:"followers"`
	Following []primitive.ObjectID `json:"following" bson:"following"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
}

// IsFollowedBy reports whether id is in the user's followers.
func (u *User) IsFollowedBy(id primitive.ObjectID) bool {
	return containsID(u.Followers, id)
}

// IsFollowing reports whether the user follows id.
func (u *User) IsFollowing(id primitive.ObjectID) bool {
	return containsID(u.Following, id)
}

// Location is a GeoJSON point enriched with the geocoded address parts.
type Location struct {
	Type             string    `json:"type" bson:"type"`
	Coordinates      []float64 `json:"coordinates" bson:"coordinates"` // [lng, lat]
	FormattedAddress string    `json:"formattedAddress,omitempty" bson:"formattedAddress,omitempty"`
	Street           string    `json:"street,omitempty" bson:"street,omitempty"`
	City             string    `json:"city,omitempty" bson:"city,omitempty"`
	State            string    `json:"state,omitempty" bson:"state,omitempty"`
	Zipcode          string    `json:"zipcode,omitempty" bson:"zipcode,omitempty"`
	Country          string    `json:"country,omitempty" bson:"country,omitempty"`
}

// NewPoint returns a GeoJSON point. Note the GeoJSON order: longitude first.
func NewPoint(lng, lat float64) *Location {
	return &Location{Type: "Point", Coordinates: []float64{lng, lat}}
}

// RegisterRequest defines the request body for creating an account
type RegisterRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	Name     string     `json:"name" validate:"required,max=50"`
	Gender   string     `json:"gender" validate:"required,oneof=male female"`
	Address  string     `json:"address" validate:"required"`
	Birthday *time.Time `json:"birthday,omitempty"`
	JobTitle string     `json:"jobTitle,omitempty" validate:"omitempty,max=100"`
	Website  string     `json:"website,omitempty" validate:"omitempty,http_url"`
}

// LoginRequest defines the request body for signing in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FirebaseLoginRequest defines the request body for Firebase sign in
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// UpdateUserRequest defines the request body for updating the caller's profile.
// Nil fields are left untouched.
type UpdateUserRequest struct {
	Name     *string    `json:"name,omitempty" validate:"omitempty,max=50"`
	Email    *string    `json:"email,omitempty" validate:"omitempty,email"`
	Gender   *string    `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	Birthday *time.Time `json:"birthday,omitempty"`
	JobTitle *string    `json:"jobTitle,omitempty" validate:"omitempty,max=100"`
	Address  *string    `json:"address,omitempty"`
	Website  *string    `json:"website,omitempty" validate:"omitempty,http_url"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
