package repositories

import (
	"context"
	"net/url"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

// writeResult is the server reply to update and delete commands.
func writeResult(matched int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: matched}, bson.E{Key: "nModified", Value: matched})
}

// stages returns the first key of every stage of an aggregate command.
func stages(t *testing.T, cmd bson.Raw) []string {
	t.Helper()
	values, err := cmd.Lookup("pipeline").Array().Values()
	require.NoError(t, err)

	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, v.Document().Index(0).Key())
	}
	return names
}

func TestMongoRunner_Run(t *testing.T) {
	mt := newMock(t)

	mt.Run("one page with total", func(mt *mtest.T) {
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		ns := mt.DB.Name() + "." + postsCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int64(3)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: first}, {Key: "description", Value: "one"}, {Key: "comments", Value: bson.A{}}},
				bson.D{{Key: "_id", Value: second}, {Key: "description", Value: "two"}, {Key: "comments", Value: bson.A{}}},
			),
		)

		values, err := url.ParseQuery("select=description&limit=2&page=1")
		require.NoError(mt, err)
		res, err := query.NewMongoRunner(mt.DB).Run(context.Background(), values, PostSpec)
		require.NoError(mt, err)

		assert.True(mt, res.Success)
		assert.Equal(mt, 2, res.Count)
		assert.LessOrEqual(mt, res.Count, 2)
		assert.Equal(mt, int64(3), res.Total)
		assert.Equal(mt, &query.PageRef{Page: 2, Limit: 2}, res.Pagination.Next)
		assert.Nil(mt, res.Pagination.Prev)
		require.Len(mt, res.Data, 2)
		assert.Equal(mt, first, res.Data[0]["id"])
		assert.Equal(mt, "one", res.Data[0]["description"])
		assert.NotContains(mt, res.Data[0], "_id")

		count := mt.GetStartedEvent()
		require.NotNil(mt, count)
		assert.Equal(mt, "aggregate", count.CommandName)
		assert.Equal(mt, []string{"$match", "$group"}, stages(mt.T, count.Command))

		read := mt.GetStartedEvent()
		require.NotNil(mt, read)
		assert.Equal(mt, postsCollection, read.Command.Lookup("aggregate").StringValue())
		assert.Equal(mt, []string{"$match", "$sort", "$skip", "$limit", "$project", "$lookup"}, stages(mt.T, read.Command))

		pipeline, err := read.Command.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		assert.Equal(mt, int64(0), pipeline[2].Document().Lookup("$skip").Int64())
		assert.Equal(mt, int64(2), pipeline[3].Document().Lookup("$limit").Int64())
	})

	mt.Run("count failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad"}))

		_, err := query.NewMongoRunner(mt.DB).Run(context.Background(), url.Values{}, PostSpec)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "count posts")
	})
}

func TestMongoUserRepository(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error collection: users index: email_1",
		}))

		err := NewMongoUserRepository(mt.DB).CreateUser(ctx, &models.User{Email: "ann@example.com"})
		assert.ErrorIs(mt, err, models.ErrDuplicate)
	})

	mt.Run("missing user", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewMongoUserRepository(mt.DB).GetUserByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("relation on missing user", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(0))

		err := NewMongoUserRepository(mt.DB).UpdateRelation(ctx, primitive.NewObjectID(), models.FieldFollowing, primitive.NewObjectID(), true)
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("relation added", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(1))
		other := primitive.NewObjectID()

		err := NewMongoUserRepository(mt.DB).UpdateRelation(ctx, primitive.NewObjectID(), models.FieldFollowers, other, true)
		require.NoError(mt, err)

		update := mt.GetStartedEvent().Command.Lookup("updates").Array().Index(0).Value().Document().Lookup("u").Document()
		assert.Equal(mt, other, update.Lookup("$addToSet", models.FieldFollowers).ObjectID())
	})

	mt.Run("update unsets location", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id}, {Key: "address", Value: "New York"},
		}}))

		user, err := NewMongoUserRepository(mt.DB).UpdateUser(ctx, id, bson.M{"address": "New York"}, "location")
		require.NoError(mt, err)
		assert.Equal(mt, "New York", user.Address)
		assert.Nil(mt, user.Location)

		update := mt.GetStartedEvent().Command.Lookup("update").Document()
		assert.Equal(mt, "New York", update.Lookup("$set", "address").StringValue())
		_, err = update.LookupErr("$unset", "location")
		assert.NoError(mt, err)
	})
}

func TestMongoPostRepository(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("like on missing post", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(0))

		err := NewMongoPostRepository(mt.DB).UpdateLike(ctx, primitive.NewObjectID(), primitive.NewObjectID(), true)
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("unlike", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(1))
		user := primitive.NewObjectID()

		require.NoError(mt, NewMongoPostRepository(mt.DB).UpdateLike(ctx, primitive.NewObjectID(), user, false))

		update := mt.GetStartedEvent().Command.Lookup("updates").Array().Index(0).Value().Document().Lookup("u").Document()
		assert.Equal(mt, user, update.Lookup("$pull", "likes").ObjectID())
	})

	mt.Run("delete missing post", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(0))

		err := NewMongoPostRepository(mt.DB).DeletePost(ctx, primitive.NewObjectID())
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("delete post", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(1))

		assert.NoError(mt, NewMongoPostRepository(mt.DB).DeletePost(ctx, primitive.NewObjectID()))
	})

	mt.Run("expanded post", func(mt *mtest.T) {
		id, author := primitive.NewObjectID(), primitive.NewObjectID()
		ns := mt.DB.Name() + "." + postsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "description", Value: "hello"},
			{Key: "user", Value: bson.D{{Key: "_id", Value: author}, {Key: "name", Value: "Ann"}}},
			{Key: "likes", Value: bson.A{}},
			{Key: "comments", Value: bson.A{}},
		}))

		post, err := NewMongoPostRepository(mt.DB).GetExpandedPost(ctx, id)
		require.NoError(mt, err)
		assert.Equal(mt, "hello", post.Description)
		require.NotNil(mt, post.User)
		assert.Equal(mt, "Ann", post.User.Name)
	})
}

func TestMongoCommentRepository(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("update missing comment", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(0))

		err := NewMongoCommentRepository(mt.DB).UpdateText(ctx, primitive.NewObjectID(), "edited")
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("update comment", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(1))

		assert.NoError(mt, NewMongoCommentRepository(mt.DB).UpdateText(ctx, primitive.NewObjectID(), "edited"))
	})

	mt.Run("delete comments of post", func(mt *mtest.T) {
		mt.AddMockResponses(writeResult(3))

		n, err := NewMongoCommentRepository(mt.DB).DeleteCommentsByPost(ctx, primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	mt.Run("comments of post oldest first", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + commentsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		comments, err := NewMongoCommentRepository(mt.DB).GetExpandedCommentsByPost(ctx, primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Empty(mt, comments)

		read := mt.GetStartedEvent()
		require.NotNil(mt, read)
		assert.Equal(mt, []string{"$match", "$sort", "$lookup", "$unwind"}, stages(mt.T, read.Command))
	})
}
