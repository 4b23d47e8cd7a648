package repositories

import (
	"context"
	"regexp"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	SearchUsers(ctx context.Context, term string, exclude primitive.ObjectID) ([]models.User, error)
	GetUsersWithinRadius(ctx context.Context, lng, lat, radius float64, exclude primitive.ObjectID) ([]models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M, unset ...string) (*models.User, error)
	UpdateRelation(ctx context.Context, id primitive.ObjectID, field string, other primitive.ObjectID, add bool) error
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection(usersCollection)}
}

// CreateUser inserts a new user. A taken email yields models.ErrDuplicate.
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now().UTC()
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, user)
	return storeError("insert user", err)
}

// GetUserByID retrieves a user by ID from MongoDB
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByEmail retrieves a user by email from MongoDB
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetUsersByIDs retrieves the users whose IDs are listed, newest first
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// SearchUsers finds users whose name contains term, ignoring case.
// term is matched literally.
func (r *MongoUserRepository) SearchUsers(ctx context.Context, term string, exclude primitive.ObjectID) ([]models.User, error) {
	return r.find(ctx, bson.M{
		"name": primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"},
		"_id":  bson.M{"$ne": exclude},
	})
}

// GetUsersWithinRadius finds users located inside the sphere centred on
// [lng, lat]; radius is in radians.
func (r *MongoUserRepository) GetUsersWithinRadius(ctx context.Context, lng, lat, radius float64, exclude primitive.ObjectID) ([]models.User, error) {
	return r.find(ctx, bson.M{
		"location": bson.M{"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{lng, lat}, radius},
		}},
		"_id": bson.M{"$ne": exclude},
	})
}

// UpdateUser sets fields on the user, removes the unset ones and returns the
// updated document
func (r *MongoUserRepository) UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M, unset ...string) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	update := bson.M{}
	if len(fields) > 0 {
		update["$set"] = fields
	}
	if len(unset) > 0 {
		removed := bson.M{}
		for _, f := range unset {
			removed[f] = ""
		}
		update["$unset"] = removed
	}

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if err != nil {
		return nil, storeError("update user", err)
	}
	return &user, nil
}

// UpdateRelation adds other to (or removes it from) one of the user's
// relationship arrays. Adding is idempotent.
func (r *MongoUserRepository) UpdateRelation(ctx context.Context, id primitive.ObjectID, field string, other primitive.ObjectID, add bool) error {
	op := "$pull"
	if add {
		op = "$addToSet"
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{op: bson.M{field: other}})
	if err != nil {
		return storeError("update "+field, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, storeError("find user", err)
	}
	return &user, nil
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError("find users", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, storeError("decode users", err)
	}
	return users, nil
}
