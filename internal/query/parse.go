package query

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
)

// Reserved parameters control the read and are never used as filters.
var reserved = map[string]struct{}{
	"select":    {},
	"sort":      {},
	"page":      {},
	"limit":     {},
	"query":     {},
	"following": {},
	"followers": {},
	"id":        {},
}

var (
	fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
	operatorKey  = regexp.MustCompile(`^(.+)\[(gt|gte|lt|lte|in)\]$`)
	dateLayouts  = []string{time.RFC3339, "2006-01-02"}
)

// Options is a parsed advanced results request.
type Options struct {
	Filter     bson.M
	Projection bson.D
	Sort       bson.D
	Page       int
	Limit      int

	// nil when no select was requested
	selected map[string]bool
}

// Skip is the number of documents before the requested page. It saturates
// instead of overflowing for absurd page numbers.
func (o *Options) Skip() int {
	if o.Page-1 > math.MaxInt/o.Limit {
		return math.MaxInt
	}
	return (o.Page - 1) * o.Limit
}

// Parse builds Options from URL query values.
func Parse(values url.Values, spec Spec) (*Options, error) {
	filter, err := parseFilter(values, spec.Schema)
	if err != nil {
		return nil, err
	}

	opts := &Options{
		Filter: filter,
		Sort:   parseSort(values.Get("sort"), spec.Schema),
		Page:   positiveInt(values.Get("page"), DefaultPage),
		Limit:  positiveInt(values.Get("limit"), DefaultLimit),
	}
	opts.Projection, opts.selected = parseSelect(values.Get("select"), spec.Omit)
	return opts, nil
}

func parseFilter(values url.Values, schema Schema) (bson.M, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	equals := map[string]interface{}{}
	conds := map[string]bson.M{}
	for _, key := range keys {
		if _, ok := reserved[key]; ok {
			continue
		}
		field, op := key, ""
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			field, op = m[1], m[2]
		}
		typ, ok := schema[field]
		if !ok {
			continue
		}

		raw := values[key]
		switch {
		case op == "in" || (op == "" && len(raw) > 1):
			items := raw
			if op == "in" {
				items = splitList(raw)
			}
			vals, err := castAll(field, typ, items)
			if err != nil {
				return nil, err
			}
			addCond(conds, field, "$in", vals)
		case op == "":
			v, err := cast(field, typ, raw[0])
			if err != nil {
				return nil, err
			}
			equals[field] = v
		default:
			v, err := cast(field, typ, raw[len(raw)-1])
			if err != nil {
				return nil, err
			}
			addCond(conds, field, "$"+op, v)
		}
	}

	filter := bson.M{}
	for field, v := range equals {
		if c, ok := conds[field]; ok {
			c["$eq"] = v
			continue
		}
		filter[field] = v
	}
	for field, c := range conds {
		filter[field] = c
	}
	return filter, nil
}

func addCond(conds map[string]bson.M, field, op string, v interface{}) {
	if conds[field] == nil {
		conds[field] = bson.M{}
	}
	conds[field][op] = v
}

func castAll(field string, typ FieldType, raw []string) (bson.A, error) {
	vals := make(bson.A, 0, len(raw))
	for _, r := range raw {
		v, err := cast(field, typ, r)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func cast(field string, typ FieldType, raw string) (interface{}, error) {
	trimmed := strings.TrimSpace(raw)
	switch typ {
	case String:
		return raw, nil
	case Number:
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f, nil
		}
	case Bool:
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return b, nil
		}
	case Date:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, nil
			}
		}
	case ObjectID:
		if id, err := primitive.ObjectIDFromHex(trimmed); err == nil {
			return id, nil
		}
	}
	return nil, models.NewValidationError(fmt.Sprintf("Invalid value %q for field %s", raw, field))
}

func parseSelect(raw string, omit []string) (bson.D, map[string]bool) {
	fields := splitCSV(raw)
	if len(fields) == 0 {
		if len(omit) == 0 {
			return nil, nil
		}
		return exclusion(omit), nil
	}

	omitted := make(map[string]bool, len(omit))
	for _, f := range omit {
		omitted[f] = true
	}

	proj := bson.D{}
	selected := map[string]bool{}
	for _, f := range fields {
		if !fieldPattern.MatchString(f) || omitted[f] || selected[f] {
			continue
		}
		selected[f] = true
		proj = append(proj, bson.E{Key: f, Value: 1})
	}
	if len(proj) == 0 {
		proj = bson.D{{Key: "_id", Value: 1}}
	}
	return proj, selected
}

func parseSort(raw string, schema Schema) bson.D {
	out := bson.D{}
	seen := map[string]bool{}
	for _, f := range splitCSV(raw) {
		dir := 1
		switch {
		case strings.HasPrefix(f, "-"):
			dir, f = -1, f[1:]
		case strings.HasPrefix(f, "+"):
			f = f[1:]
		}
		if f == "" || seen[f] {
			continue
		}
		if _, ok := schema[f]; !ok && f != "_id" {
			continue
		}
		seen[f] = true
		out = append(out, bson.E{Key: f, Value: dir})
	}
	if len(out) == 0 {
		out = bson.D{{Key: "createdAt", Value: -1}}
	}
	// _id breaks ties so pages never overlap.
	if !seen["_id"] {
		out = append(out, bson.E{Key: "_id", Value: out[len(out)-1].Value})
	}
	return out
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitList(raw []string) []string {
	var out []string
	for _, r := range raw {
		out = append(out, splitCSV(r)...)
	}
	return out
}

func exclusion(fields []string) bson.D {
	proj := make(bson.D, 0, len(fields))
	for _, f := range fields {
		proj = append(proj, bson.E{Key: f, Value: 0})
	}
	return proj
}
