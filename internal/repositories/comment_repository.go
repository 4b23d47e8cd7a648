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

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	GetExpandedComment(ctx context.Context, id primitive.ObjectID) (*models.CommentView, error)
	GetExpandedCommentsByPost(ctx context.Context, postID primitive.ObjectID) ([]models.CommentView, error)
	UpdateText(ctx context.Context, id primitive.ObjectID, text string) error
	DeleteComment(ctx context.Context, id primitive.ObjectID) error
	DeleteCommentsByPost(ctx context.Context, postID primitive.ObjectID) (int64, error)
}

// MongoCommentRepository implements CommentRepository for MongoDB
type MongoCommentRepository struct {
	collection *mongo.Collection
}

// NewMongoCommentRepository creates a new MongoCommentRepository
func NewMongoCommentRepository(db *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{collection: db.Collection(commentsCollection)}
}

// CreateComment creates a new comment in MongoDB
func (r *MongoCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, comment)
	return storeError("insert comment", err)
}

// GetCommentByID retrieves a comment by ID from MongoDB
func (r *MongoCommentRepository) GetCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return nil, storeError("find comment", err)
	}
	return &comment, nil
}

// GetExpandedComment retrieves a comment with its author
func (r *MongoCommentRepository) GetExpandedComment(ctx context.Context, id primitive.ObjectID) (*models.CommentView, error) {
	var comments []models.CommentView
	if err := query.Expand(ctx, r.collection, bson.M{"_id": id}, nil, &comments, AuthorJoin); err != nil {
		return nil, storeError("expand comment", err)
	}
	if len(comments) == 0 {
		return nil, models.ErrNotFound
	}
	return &comments[0], nil
}

// GetExpandedCommentsByPost retrieves the comments of a post, oldest first
func (r *MongoCommentRepository) GetExpandedCommentsByPost(ctx context.Context, postID primitive.ObjectID) ([]models.CommentView, error) {
	comments := []models.CommentView{}
	sort := bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	if err := query.Expand(ctx, r.collection, bson.M{"post": postID}, sort, &comments, AuthorJoin); err != nil {
		return nil, storeError("expand comments", err)
	}
	return comments, nil
}

// UpdateText replaces the text of a comment
func (r *MongoCommentRepository) UpdateText(ctx context.Context, id primitive.ObjectID, text string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"text": text}})
	if err != nil {
		return storeError("update comment", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteComment deletes a comment by ID from MongoDB
func (r *MongoCommentRepository) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("delete comment", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteCommentsByPost deletes every comment of a post
func (r *MongoCommentRepository) DeleteCommentsByPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"post": postID})
	if err != nil {
		return 0, storeError("delete comments", err)
	}
	return res.DeletedCount, nil
}
