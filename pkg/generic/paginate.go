package generic

import (
	"context"
	"fmt"

	"sensorhub/pkg/timer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// PageResult is one page of a filtered collection plus the size of the whole
// filtered set.
type PageResult[T any] struct {
	Items []T
	Total int64
}

// PagePipeline builds a single aggregation that returns both the requested
// slice and the total count, so both are read from the same snapshot.
// _id breaks ties in the sort so pages never overlap.
func PagePipeline(filter bson.M, sortKey string, direction int, skip, limit int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$facet", Value: bson.D{
			{Key: "items", Value: bson.A{
				bson.D{{Key: "$sort", Value: bson.D{{Key: sortKey, Value: direction}, {Key: "_id", Value: direction}}}},
				bson.D{{Key: "$skip", Value: skip}},
				bson.D{{Key: "$limit", Value: limit}},
			}},
			{Key: "total", Value: bson.A{
				bson.D{{Key: "$count", Value: "count"}},
			}},
		}}},
	}
}

type facetResult[T any] struct {
	Items []T `bson:"items"`
	Total []struct {
		Count int64 `bson:"count"`
	} `bson:"total"`
}

// Paginate runs PagePipeline against the repository's collection.
func (r *MongoBaseRepository[T]) Paginate(ctx context.Context, filter bson.M, includeDeleted bool, sortKey string, direction int, skip, limit int64) (*PageResult[T], error) {
	sw := timer.NewStopwatch(r.Log, "paginate "+r.Collection.Name())
	pipeline := PagePipeline(ScopeFilter(filter, includeDeleted), sortKey, direction, skip, limit)
	cur, err := r.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("paginate %s: %w", r.Collection.Name(), err)
	}
	defer cur.Close(ctx)
	sw.Lap("aggregate")

	var out []facetResult[T]
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s page: %w", r.Collection.Name(), err)
	}
	sw.Lap("decode")

	page := &PageResult[T]{Items: []T{}}
	if len(out) == 0 {
		return page, nil
	}
	if out[0].Items != nil {
		page.Items = out[0].Items
	}
	if len(out[0].Total) > 0 {
		page.Total = out[0].Total[0].Count
	}
	return page, nil
}
