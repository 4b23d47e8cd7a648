package repositories

import (
	"github.com/anonto42/nano-social/backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
)

// AuthorJoin expands a user reference to the public author fields.
var AuthorJoin = query.Join{Field: "user", From: usersCollection, Select: []string{"name", "avatar"}}

// CommentsJoin attaches the comments of a post, oldest first, each with its author.
var CommentsJoin = query.Join{
	Field:        "_id",
	From:         commentsCollection,
	ForeignField: "post",
	As:           "comments",
	Many:         true,
	Sort:         bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
	Joins:        []query.Join{AuthorJoin},
}

// UserSpec drives advanced results over users. Passwords never leave the store.
var UserSpec = query.Spec{
	Collection: usersCollection,
	Schema: query.Schema{
		"name":             query.String,
		"email":            query.String,
		"gender":           query.String,
		"jobTitle":         query.String,
		"address":          query.String,
		"website":          query.String,
		"avatar":           query.String,
		"cover":            query.String,
		"birthday":         query.Date,
		"createdAt":        query.Date,
		"location.city":    query.String,
		"location.state":   query.String,
		"location.zipcode": query.String,
		"location.country": query.String,
	},
	Omit: []string{"password"},
}

// PostSpec drives advanced results over posts.
var PostSpec = query.Spec{
	Collection: postsCollection,
	Schema: query.Schema{
		"user":        query.ObjectID,
		"description": query.String,
		"likes":       query.ObjectID,
		"createdAt":   query.Date,
	},
	Joins: []query.Join{AuthorJoin, CommentsJoin},
}

// CommentSpec drives advanced results over comments.
var CommentSpec = query.Spec{
	Collection: commentsCollection,
	Schema: query.Schema{
		"user":      query.ObjectID,
		"post":      query.ObjectID,
		"text":      query.String,
		"createdAt": query.Date,
	},
	Joins: []query.Join{{Field: "user", From: usersCollection, Omit: []string{"password"}}},
}
