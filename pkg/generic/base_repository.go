package generic

import (
	"context"
	"errors"
	"fmt"

	"sensorhub/pkg/timer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeletedField is the soft-delete marker shared by every collection.
const DeletedField = "deletedEpoch"

// ScopeFilter returns a copy of filter restricted to live documents unless
// includeDeleted is set. Every read in this package goes through it.
func ScopeFilter(filter bson.M, includeDeleted bool) bson.M {
	scoped := make(bson.M, len(filter)+1)
	for k, v := range filter {
		scoped[k] = v
	}
	if !includeDeleted {
		scoped[DeletedField] = bson.M{"$exists": false}
	}
	return scoped
}

// MongoBaseRepository holds the CRUD primitives shared by the concrete
// repositories. T is a pointer type such as *model.Organisation.
type MongoBaseRepository[T Entity] struct {
	Collection *mongo.Collection
	// Log receives step timings of multi-stage reads. May be nil.
	Log timer.Logger
}

// NewBaseRepository creates a new base repository over collection.
func NewBaseRepository[T Entity](collection *mongo.Collection, log timer.Logger) *MongoBaseRepository[T] {
	return &MongoBaseRepository[T]{Collection: collection, Log: log}
}

// Insert stores entity, assigning an id when it has none.
func (r *MongoBaseRepository[T]) Insert(ctx context.Context, entity T) (T, error) {
	if entity.GetID().IsZero() {
		entity.SetID(primitive.NewObjectID())
	}
	if _, err := r.Collection.InsertOne(ctx, entity); err != nil {
		var zero T
		return zero, fmt.Errorf("insert into %s: %w", r.Collection.Name(), err)
	}
	return entity, nil
}

// FindOne returns the first match, or the zero value when nothing matches.
func (r *MongoBaseRepository[T]) FindOne(ctx context.Context, filter bson.M, includeDeleted bool, opts ...*options.FindOneOptions) (T, error) {
	var entity T
	err := r.Collection.FindOne(ctx, ScopeFilter(filter, includeDeleted), opts...).Decode(&entity)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, nil
		}
		return zero, fmt.Errorf("find in %s: %w", r.Collection.Name(), err)
	}
	return entity, nil
}

// FindByID is FindOne on _id.
func (r *MongoBaseRepository[T]) FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (T, error) {
	return r.FindOne(ctx, bson.M{"_id": id}, includeDeleted)
}

// Find returns all matches.
func (r *MongoBaseRepository[T]) Find(ctx context.Context, filter bson.M, includeDeleted bool, opts ...*options.FindOptions) ([]T, error) {
	cur, err := r.Collection.Find(ctx, ScopeFilter(filter, includeDeleted), opts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", r.Collection.Name(), err)
	}
	defer cur.Close(ctx)

	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Collection.Name(), err)
	}
	return out, nil
}

// Count counts matches.
func (r *MongoBaseRepository[T]) Count(ctx context.Context, filter bson.M, includeDeleted bool) (int64, error) {
	n, err := r.Collection.CountDocuments(ctx, ScopeFilter(filter, includeDeleted))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.Collection.Name(), err)
	}
	return n, nil
}

// UpdateOne applies update to the first live match and reports whether a
// document matched.
func (r *MongoBaseRepository[T]) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (bool, error) {
	res, err := r.Collection.UpdateOne(ctx, ScopeFilter(filter, false), update)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", r.Collection.Name(), err)
	}
	return res.MatchedCount > 0, nil
}

// UpdateMany applies update to every live match.
func (r *MongoBaseRepository[T]) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	res, err := r.Collection.UpdateMany(ctx, ScopeFilter(filter, false), update)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", r.Collection.Name(), err)
	}
	return res.ModifiedCount, nil
}

// SoftDelete marks a live document deleted. It reports false when no live
// document had the id.
func (r *MongoBaseRepository[T]) SoftDelete(ctx context.Context, id primitive.ObjectID, at int64) (bool, error) {
	return r.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		DeletedField:   at,
		"updatedEpoch": at,
	}})
}
