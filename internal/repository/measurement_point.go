package repository

import (
	"context"

	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/pkg/generic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// IMeasurementPointRepository defines measurement point persistence. The
// embedded sensors array is always written as a whole, in one update of the
// owning document.
type IMeasurementPointRepository interface {
	Create(ctx context.Context, mp *model.MeasurementPoint) (*model.MeasurementPoint, error)
	FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*model.MeasurementPoint, error)
	// FindBySensorID searches live measurement points for a live sensor.
	FindBySensorID(ctx context.Context, sensorID string) (*model.MeasurementPoint, error)
	ListByOrganisation(ctx context.Context, orgID primitive.ObjectID, pi model.PageInfo, order model.SortOrder) (*model.Page[*model.MeasurementPoint], error)
	Update(ctx context.Context, id primitive.ObjectID, upd MeasurementPointUpdate) (bool, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at int64) (bool, error)
}

type MeasurementPointRepository struct {
	base *generic.MongoBaseRepository[*model.MeasurementPoint]
}

// NewMeasurementPointRepository creates a new Mongo-backed measurement point repository.
func NewMeasurementPointRepository(db *mongo.Database, log *logging.Logger) IMeasurementPointRepository {
	return &MeasurementPointRepository{
		base: generic.NewBaseRepository[*model.MeasurementPoint](db.Collection(MeasurementPointsCollection), log),
	}
}

func (r *MeasurementPointRepository) Create(ctx context.Context, mp *model.MeasurementPoint) (*model.MeasurementPoint, error) {
	if mp.Sensors == nil {
		mp.Sensors = []model.Sensor{}
	}
	return r.base.Insert(ctx, mp)
}

func (r *MeasurementPointRepository) FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*model.MeasurementPoint, error) {
	return r.base.FindByID(ctx, id, includeDeleted)
}

func (r *MeasurementPointRepository) FindBySensorID(ctx context.Context, sensorID string) (*model.MeasurementPoint, error) {
	return r.base.FindOne(ctx, bson.M{
		"sensors": bson.M{"$elemMatch": bson.M{
			"sensorId":          sensorID,
			generic.DeletedField: bson.M{"$exists": false},
		}},
	}, false)
}

func (r *MeasurementPointRepository) ListByOrganisation(ctx context.Context, orgID primitive.ObjectID, pi model.PageInfo, order model.SortOrder) (*model.Page[*model.MeasurementPoint], error) {
	res, err := r.base.Paginate(ctx, bson.M{"organisationId": orgID}, false, "name", order.Direction(), pi.Skip(), int64(pi.PageSize))
	if err != nil {
		return nil, err
	}
	return toPage(res, pi), nil
}

func (r *MeasurementPointRepository) Update(ctx context.Context, id primitive.ObjectID, upd MeasurementPointUpdate) (bool, error) {
	set := bson.M{"updatedEpoch": upd.UpdatedEpoch}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Sensors != nil {
		set["sensors"] = upd.Sensors
	}
	if upd.DeviceTokenHash != nil {
		set["deviceTokenHash"] = *upd.DeviceTokenHash
	}
	filter := bson.M{"_id": id}
	if upd.IfUpdatedEpoch != nil {
		if *upd.IfUpdatedEpoch == 0 {
			filter["updatedEpoch"] = bson.M{"$in": bson.A{int64(0), nil}}
		} else {
			filter["updatedEpoch"] = *upd.IfUpdatedEpoch
		}
	}
	return r.base.UpdateOne(ctx, filter, bson.M{"$set": set})
}

func (r *MeasurementPointRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, at int64) (bool, error) {
	return r.base.SoftDelete(ctx, id, at)
}
