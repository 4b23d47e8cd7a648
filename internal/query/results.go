package query

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageRef points at a neighbouring page.
type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination holds the neighbouring pages, when they exist.
type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

// Results is the advanced results envelope sent to clients.
type Results struct {
	Success    bool       `json:"success"`
	Count      int        `json:"count"`
	Total      int64      `json:"total"`
	Pagination Pagination `json:"pagination"`
	Data       []bson.M   `json:"data"`
}

// NewResults wraps one page of documents; total is the filtered document count.
func NewResults(docs []bson.M, page, limit int, total int64) *Results {
	if docs == nil {
		docs = []bson.M{}
	}
	return &Results{
		Success:    true,
		Count:      len(docs),
		Total:      total,
		Pagination: Paginate(page, limit, total),
		Data:       docs,
	}
}

// Paginate reports a next page iff more documents follow this one, and a
// previous page iff this is not the first.
func Paginate(page, limit int, total int64) Pagination {
	var p Pagination
	// page*limit < total, without overflowing
	if total > 0 && int64(page) <= (total-1)/int64(limit) {
		p.Next = &PageRef{Page: page + 1, Limit: limit}
	}
	if page > 1 {
		p.Prev = &PageRef{Page: page - 1, Limit: limit}
	}
	return p
}

// Normalize renames _id to id at every depth and turns store-specific values
// into plain JSON-friendly ones.
func Normalize(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k == "_id" {
			k = "id"
		}
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return Normalize(t)
	case map[string]interface{}:
		return Normalize(bson.M(t))
	case bson.D:
		m := make(bson.M, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return Normalize(m)
	case bson.A:
		return normalizeSlice(t)
	case []interface{}:
		return normalizeSlice(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

func normalizeSlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = normalizeValue(v)
	}
	return out
}
