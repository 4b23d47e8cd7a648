// Package query turns URL query strings into paginated, filtered, sorted and
// join-expanded reads over a MongoDB collection.
package query

import (
	"context"
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// FieldType drives how a raw query-string value is cast before it reaches the store.
type FieldType int

const (
	String FieldType = iota
	Number
	Bool
	Date
	ObjectID
)

// Schema lists the fields that may be filtered and sorted on.
type Schema map[string]FieldType

// Spec describes a collection for the advanced results reader.
type Spec struct {
	Collection string
	Schema     Schema
	// Omit fields are never returned nor selectable.
	Omit  []string
	Joins []Join
}

// Join expands a reference into the referenced document(s) at read time.
//
// A join whose As differs from Field is a reverse (virtual) join, e.g. the
// comments of a post: Field "_id", ForeignField "post", As "comments".
type Join struct {
	Field        string
	From         string
	ForeignField string
	As           string
	Many         bool
	// Sort orders the joined documents of a Many join.
	Sort         bson.D
	Select       []string
	Omit         []string
	Joins        []Join
}

func (j Join) as() string {
	if j.As != "" {
		return j.As
	}
	return j.Field
}

func (j Join) foreign() string {
	if j.ForeignField != "" {
		return j.ForeignField
	}
	return "_id"
}

func (j Join) isVirtual() bool {
	return j.as() != j.Field
}

// Runner executes an advanced results read.
type Runner interface {
	Run(ctx context.Context, values url.Values, spec Spec) (*Results, error)
}

// MongoRunner implements Runner over a MongoDB database
type MongoRunner struct {
	db *mongo.Database
}

// NewMongoRunner creates a new MongoRunner
func NewMongoRunner(db *mongo.Database) *MongoRunner {
	return &MongoRunner{db: db}
}

// Run parses values against spec and returns one page of results.
// The reported total is the number of documents matching the filter.
func (r *MongoRunner) Run(ctx context.Context, values url.Values, spec Spec) (*Results, error) {
	opts, err := Parse(values, spec)
	if err != nil {
		return nil, err
	}

	coll := r.db.Collection(spec.Collection)
	total, err := coll.CountDocuments(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", spec.Collection, err)
	}

	cursor, err := coll.Aggregate(ctx, opts.Pipeline(spec))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", spec.Collection, err)
	}
	docs, err := DecodeAll(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", spec.Collection, err)
	}

	return NewResults(docs, opts.Page, opts.Limit, total), nil
}

// Expand decodes the documents of coll matching filter, with joins applied,
// into results (a pointer to a slice).
func Expand(ctx context.Context, coll *mongo.Collection, filter interface{}, sort bson.D, results interface{}, joins ...Join) error {
	p := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	if len(sort) > 0 {
		p = append(p, bson.D{{Key: "$sort", Value: sort}})
	}
	p = append(p, Lookups(joins)...)

	cursor, err := coll.Aggregate(ctx, p)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}

// DecodeAll drains cursor into normalized documents.
func DecodeAll(ctx context.Context, cursor *mongo.Cursor) ([]bson.M, error) {
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]bson.M, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, Normalize(d))
	}
	return docs, nil
}
