package repositories

import (
	"context"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetExpandedPost(ctx context.Context, id primitive.ObjectID) (*models.PostView, error)
	GetExpandedPostsByUsers(ctx context.Context, users []primitive.ObjectID) ([]models.PostView, error)
	UpdateDescription(ctx context.Context, id primitive.ObjectID, description string) error
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	UpdateLike(ctx context.Context, id, user primitive.ObjectID, add bool) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection(postsCollection)}
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now().UTC()
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return storeError("insert post", err)
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return nil, storeError("find post", err)
	}
	return &post, nil
}

// GetExpandedPost retrieves a post with its author and comments
func (r *MongoPostRepository) GetExpandedPost(ctx context.Context, id primitive.ObjectID) (*models.PostView, error) {
	var posts []models.PostView
	if err := query.Expand(ctx, r.collection, bson.M{"_id": id}, nil, &posts, AuthorJoin, CommentsJoin); err != nil {
		return nil, storeError("expand post", err)
	}
	if len(posts) == 0 {
		return nil, models.ErrNotFound
	}
	return &posts[0], nil
}

// GetExpandedPostsByUsers retrieves the posts written by any of users, newest first
func (r *MongoPostRepository) GetExpandedPostsByUsers(ctx context.Context, users []primitive.ObjectID) ([]models.PostView, error) {
	posts := []models.PostView{}
	filter := bson.M{"user": bson.M{"$in": users}}
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	if err := query.Expand(ctx, r.collection, filter, sort, &posts, AuthorJoin, CommentsJoin); err != nil {
		return nil, storeError("expand posts", err)
	}
	return posts, nil
}

// UpdateDescription replaces the text of a post
func (r *MongoPostRepository) UpdateDescription(ctx context.Context, id primitive.ObjectID, description string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"description": description}})
	if err != nil {
		return storeError("update post", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("delete post", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateLike adds user to (or removes it from) the post's likes
func (r *MongoPostRepository) UpdateLike(ctx context.Context, id, user primitive.ObjectID, add bool) error {
	op := "$pull"
	if add {
		op = "$addToSet"
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{op: bson.M{"likes": user}})
	if err != nil {
		return storeError("update likes", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
