package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the query paths rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email")},
		},
		OrganisationsCollection: {
			{Keys: bson.D{{Key: "users.userId", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetName("members_name")},
		},
		MeasurementPointsCollection: {
			{Keys: bson.D{{Key: "organisationId", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetName("organisation_name")},
			{Keys: bson.D{{Key: "sensors.sensorId", Value: 1}}, Options: options.Index().SetName("sensor_id")},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", coll, err)
		}
	}
	return nil
}
