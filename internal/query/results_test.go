package query

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPaginate(t *testing.T) {
	p := Paginate(1, 25, 0)
	assert.Nil(t, p.Next)
	assert.Nil(t, p.Prev)

	p = Paginate(1, 10, 11)
	assert.Equal(t, &PageRef{Page: 2, Limit: 10}, p.Next)
	assert.Nil(t, p.Prev)

	p = Paginate(2, 10, 20)
	assert.Nil(t, p.Next)
	assert.Equal(t, &PageRef{Page: 1, Limit: 10}, p.Prev)

	for page := 1; page <= 5; page++ {
		for total := int64(0); total <= 30; total++ {
			p := Paginate(page, 7, total)
			assert.Equal(t, int64(page*7) < total, p.Next != nil)
			assert.Equal(t, page > 1, p.Prev != nil)
		}
	}
}

func TestPaginateHugePage(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		limit    int
		total    int64
		wantNext bool
	}{
		{"past the end", 368934881474191034, 25, 10, false},
		{"max page", math.MaxInt, 2, 10, false},
		{"max limit", 1, math.MaxInt, 10, false},
		{"max total", 2, 25, math.MaxInt64, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(tt.page, tt.limit, tt.total)
			assert.Equal(t, tt.wantNext, p.Next != nil)
			assert.Equal(t, tt.page > 1, p.Prev != nil)
		})
	}
}

func TestNewResultsNeverNilData(t *testing.T) {
	r := NewResults(nil, 1, 25, 0)
	assert.True(t, r.Success)
	assert.NotNil(t, r.Data)
	assert.Empty(t, r.Data)
}

func TestNewResultsCountsPageNotTotal(t *testing.T) {
	r := NewResults([]bson.M{{"name": "Ann"}, {"name": "Bob"}}, 2, 2, 7)
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, int64(7), r.Total)
	assert.Equal(t, &PageRef{Page: 3, Limit: 2}, r.Pagination.Next)
	assert.Equal(t, &PageRef{Page: 1, Limit: 2}, r.Pagination.Prev)
}

func TestNormalize(t *testing.T) {
	id := primitive.NewObjectID()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc := bson.M{
		"_id":       id,
		"createdAt": primitive.NewDateTimeFromTime(at),
		"user":      bson.D{{Key: "_id", Value: id}, {Key: "name", Value: "Ann"}},
		"comments":  bson.A{bson.M{"_id": id, "text": "hi"}},
	}

	assert.Equal(t, bson.M{
		"id":        id,
		"createdAt": at,
		"user":      bson.M{"id": id, "name": "Ann"},
		"comments":  []interface{}{bson.M{"id": id, "text": "hi"}},
	}, Normalize(doc))
}
