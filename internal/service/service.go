// Package service holds the business operations of the API. Every operation
// takes the principal it accepts explicitly; authorization and validation
// happen before any write.
package service

import (
	"context"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/config"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/internal/notify"
	"sensorhub/internal/repository"
	"sensorhub/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// parseID parses a path or body id. field names the offending input.
func parseID(id, field string) (primitive.ObjectID, error) {
	oid, err := util.ParseObjectID(id)
	if err != nil {
		return primitive.NilObjectID, apperr.InvalidFields("invalid id", map[string]string{field: "must be a 24 character hex id"})
	}
	return oid, nil
}

func normalizePage(q model.ListQuery) (model.PageInfo, model.SortOrder) {
	pi := q.PageInfo.Normalize(config.DefaultPageSize, config.MaxPageSize)
	order := q.Order
	if order == "" {
		order = model.SortAsc
	}
	return pi, order
}

// pointAccess loads measurement points and checks the caller's rights on
// their owning organisation.
type pointAccess struct {
	points   repository.IMeasurementPointRepository
	resolver *auth.Resolver
}

// load returns the live measurement point or NotFound.
func (a pointAccess) load(ctx context.Context, id primitive.ObjectID) (*model.MeasurementPoint, error) {
	mp, err := a.points.FindByID(ctx, id, false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading measurement point")
	}
	if mp == nil {
		return nil, apperr.NotFoundf("measurement point not found")
	}
	return mp, nil
}

// loadAsAdmin loads the measurement point and requires org-admin rights on
// the organisation stored in it, never on one supplied by the caller.
func (a pointAccess) loadAsAdmin(ctx context.Context, caller *auth.UserPrincipal, id primitive.ObjectID) (*model.MeasurementPoint, error) {
	mp, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := a.resolver.HasAdminAccessToOrg(ctx, caller.ID, mp.OrganisationID); err != nil {
		return nil, err
	}
	return mp, nil
}

// loadAsMember loads the measurement point and requires membership in its
// organisation. Non-members get notFound.
func (a pointAccess) loadAsMember(ctx context.Context, caller *auth.UserPrincipal, id primitive.ObjectID, notFound error) (*model.MeasurementPoint, error) {
	mp, err := a.load(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, notFound
		}
		return nil, err
	}
	if err := a.checkMember(ctx, caller, mp, notFound); err != nil {
		return nil, err
	}
	return mp, nil
}

func (a pointAccess) checkMember(ctx context.Context, caller *auth.UserPrincipal, mp *model.MeasurementPoint, notFound error) error {
	if _, err := a.resolver.RequireMember(ctx, caller.ID, mp.OrganisationID); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return notFound
		}
		return err
	}
	return nil
}

// save persists the sensor array of mp as one document update. The stored
// updatedEpoch always moves forward so guarded writes can detect it. A guarded
// write that lost to a concurrent one fails with Conflict.
func (a pointAccess) save(ctx context.Context, mp *model.MeasurementPoint, upd repository.MeasurementPointUpdate) error {
	upd.UpdatedEpoch = model.NextStamp(upd.UpdatedEpoch, mp.UpdatedEpoch)
	ok, err := a.points.Update(ctx, mp.ID, upd)
	if err != nil {
		return apperr.Wrap(err, "updating measurement point")
	}
	if !ok {
		if upd.IfUpdatedEpoch == nil {
			return apperr.NotFoundf("measurement point not found")
		}
		if _, err := a.load(ctx, mp.ID); err != nil {
			return err
		}
		return apperr.New(apperr.Conflict, "measurement point changed concurrently, retry with fresh data")
	}
	mp.UpdatedEpoch = upd.UpdatedEpoch
	return nil
}

// configPush announces effective sensor configs to devices.
type configPush struct {
	publisher notify.ConfigPublisher
	log       *logging.Logger
}

// push publishes the config of sensor. Failures are logged only.
func (p configPush) push(ctx context.Context, mp *model.MeasurementPoint, sensor model.Sensor) {
	if err := p.publisher.PublishConfig(ctx, mp.ID, sensor.SensorID, sensor.Config); err != nil {
		p.log.Warn("config push failed", "measurement_point_id", mp.ID.Hex(), "sensor_id", sensor.SensorID, "error", err)
	}
}
