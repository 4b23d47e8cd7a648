package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Pipeline returns the aggregation stages for the requested page.
// Reference joins are expanded only when their field was selected (or no
// select was given); reverse joins are always expanded.
func (o *Options) Pipeline(spec Spec) mongo.Pipeline {
	p := mongo.Pipeline{
		{{Key: "$match", Value: o.Filter}},
		{{Key: "$sort", Value: o.Sort}},
		{{Key: "$skip", Value: int64(o.Skip())}},
		{{Key: "$limit", Value: int64(o.Limit)}},
	}
	if len(o.Projection) > 0 {
		p = append(p, bson.D{{Key: "$project", Value: o.Projection}})
	}
	return append(p, Lookups(o.joins(spec.Joins))...)
}

func (o *Options) joins(all []Join) []Join {
	if o.selected == nil {
		return all
	}
	var out []Join
	for _, j := range all {
		if j.isVirtual() || o.selected[j.Field] {
			out = append(out, j)
		}
	}
	return out
}

// Lookups renders joins as $lookup stages. Single references are unwound so
// the field holds a document (or is absent) instead of an array.
func Lookups(joins []Join) []bson.D {
	var stages []bson.D
	for _, j := range joins {
		stages = append(stages, j.stages()...)
	}
	return stages
}

func (j Join) stages() []bson.D {
	const ref = "$$ref"

	var cond bson.D
	if j.Many && !j.isVirtual() {
		cond = bson.D{{Key: "$in", Value: bson.A{
			"$" + j.foreign(),
			bson.D{{Key: "$ifNull", Value: bson.A{ref, bson.A{}}}},
		}}}
	} else {
		cond = bson.D{{Key: "$eq", Value: bson.A{"$" + j.foreign(), ref}}}
	}

	sub := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "$expr", Value: cond}}}}}
	if len(j.Sort) > 0 {
		sub = append(sub, bson.D{{Key: "$sort", Value: j.Sort}})
	}
	if proj := projection(j.Select, j.Omit); len(proj) > 0 {
		sub = append(sub, bson.D{{Key: "$project", Value: proj}})
	}
	sub = append(sub, Lookups(j.Joins)...)

	stages := []bson.D{{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: j.From},
		{Key: "let", Value: bson.D{{Key: "ref", Value: "$" + j.Field}}},
		{Key: "pipeline", Value: sub},
		{Key: "as", Value: j.as()},
	}}}}
	if !j.Many {
		stages = append(stages, bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + j.as()},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}})
	}
	return stages
}

func projection(include, omit []string) bson.D {
	if len(include) > 0 {
		proj := make(bson.D, 0, len(include))
		for _, f := range include {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		return proj
	}
	if len(omit) > 0 {
		return exclusion(omit)
	}
	return nil
}
