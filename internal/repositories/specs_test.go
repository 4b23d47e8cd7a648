package repositories

import (
	"net/url"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestUserSpecNeverReturnsPassword(t *testing.T) {
	for _, raw := range []string{"", "select=name,password"} {
		values, err := url.ParseQuery(raw)
		require.NoError(t, err)
		opts, err := query.Parse(values, UserSpec)
		require.NoError(t, err)

		for _, e := range opts.Projection {
			if e.Key == "password" {
				assert.Equal(t, 0, e.Value, raw)
			}
		}
	}
}

func TestPostSpecFiltersByAuthor(t *testing.T) {
	values := url.Values{"user": {"5d7a514b5d2c12c7449be042"}, "description": {"hello"}}
	opts, err := query.Parse(values, PostSpec)
	require.NoError(t, err)

	assert.Len(t, opts.Filter, 2)
	assert.Equal(t, "hello", opts.Filter["description"])
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, opts.Sort)
}

func TestCommentsJoinOrdersOldestFirst(t *testing.T) {
	stages := query.Lookups([]query.Join{CommentsJoin})
	require.Len(t, stages, 1)

	lookup := stages[0][0].Value.(bson.D)
	var sub mongo.Pipeline
	for _, e := range lookup {
		if e.Key == "pipeline" {
			sub = e.Value.(mongo.Pipeline)
		}
	}
	require.GreaterOrEqual(t, len(sub), 2)
	assert.Equal(t, "$match", sub[0][0].Key)
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}}, sub[1])
}
