package service

import (
	"context"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/internal/notify"
	"sensorhub/internal/repository"
	"sensorhub/pkg/timer"
	"sensorhub/pkg/util"

	"github.com/google/uuid"
)

// MeasurementPointService manages measurement points and their embedded
// sensor list as one aggregate.
type MeasurementPointService struct {
	pointAccess
	configPush
	log   *logging.Logger
	now   func() int64
	newID func() string
}

// NewMeasurementPointService creates a new measurement point service
func NewMeasurementPointService(points repository.IMeasurementPointRepository, resolver *auth.Resolver, publisher notify.ConfigPublisher, log *logging.Logger) *MeasurementPointService {
	log = log.With("component", "measurement-points")
	return &MeasurementPointService{
		pointAccess: pointAccess{points: points, resolver: resolver},
		configPush:  configPush{publisher: publisher, log: log},
		log:         log,
		now:         model.NowEpoch,
		newID:       uuid.NewString,
	}
}

// Create adds an empty measurement point to an organisation the caller
// administers. The plaintext device token is only returned here.
func (s *MeasurementPointService) Create(ctx context.Context, caller *auth.UserPrincipal, req model.CreateMeasurementPointRequest) (*model.CreatedMeasurementPoint, error) {
	defer timer.Track(s.log, "MeasurementPointService.Create")()

	orgID, err := parseID(req.OrganisationID, "organisationId")
	if err != nil {
		return nil, err
	}
	if _, err := s.resolver.HasAdminAccessToOrg(ctx, caller.ID, orgID); err != nil {
		return nil, err
	}

	name := util.CleanName(req.Name)
	if name == "" {
		return nil, apperr.InvalidFields("invalid measurement point", map[string]string{"name": "is required"})
	}

	token, err := util.GenerateDeviceToken()
	if err != nil {
		return nil, apperr.Wrap(err, "generating device token")
	}

	now := s.now()
	mp := &model.MeasurementPoint{
		OrganisationID:  orgID,
		Name:            name,
		Description:     req.Description,
		CreatorID:       caller.ID,
		DeviceTokenHash: util.HashDeviceToken(token),
		Sensors:         []model.Sensor{},
		Lifecycle:       model.Lifecycle{CreatedEpoch: now, UpdatedEpoch: now},
	}
	if _, err := s.points.Create(ctx, mp); err != nil {
		return nil, apperr.Wrap(err, "creating measurement point")
	}

	s.log.Info("measurement point created", "id", mp.ID.Hex(), "organisation_id", orgID.Hex(), "user_id", caller.ID.Hex())
	return &model.CreatedMeasurementPoint{MeasurementPoint: mp.View(), DeviceToken: token}, nil
}

// Get returns a live measurement point to a member of its organisation.
// Non-members get NotFound.
func (s *MeasurementPointService) Get(ctx context.Context, caller *auth.UserPrincipal, id string) (*model.MeasurementPoint, error) {
	mpID, err := parseID(id, "id")
	if err != nil {
		return nil, err
	}
	mp, err := s.loadAsMember(ctx, caller, mpID, apperr.NotFoundf("measurement point not found"))
	if err != nil {
		return nil, err
	}
	return mp.View(), nil
}

// List returns one page of the organisation's live measurement points
// sorted by name.
func (s *MeasurementPointService) List(ctx context.Context, caller *auth.UserPrincipal, organisationID string, q model.ListQuery) (*model.Page[*model.MeasurementPoint], error) {
	defer timer.Track(s.log, "MeasurementPointService.List")()

	orgID, err := parseID(organisationID, "organisationId")
	if err != nil {
		return nil, err
	}
	if _, err := s.resolver.RequireMember(ctx, caller.ID, orgID); err != nil {
		return nil, err
	}

	pi, order := normalizePage(q)
	page, err := s.points.ListByOrganisation(ctx, orgID, pi, order)
	if err != nil {
		return nil, apperr.Wrap(err, "listing measurement points")
	}
	for i, mp := range page.Items {
		page.Items[i] = mp.View()
	}
	return page, nil
}

// Update changes metadata and, when a sensor list is supplied, merges it
// into the stored one. Rights are checked on the stored organisation. A
// request that changes nothing is not written.
func (s *MeasurementPointService) Update(ctx context.Context, caller *auth.UserPrincipal, id string, req model.UpdateMeasurementPointRequest) (*model.MeasurementPoint, error) {
	defer timer.Track(s.log, "MeasurementPointService.Update")()

	mpID, err := parseID(id, "id")
	if err != nil {
		return nil, err
	}
	mp, err := s.loadAsAdmin(ctx, caller, mpID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	read := mp.UpdatedEpoch
	upd := repository.MeasurementPointUpdate{UpdatedEpoch: now, IfUpdatedEpoch: &read}
	changed := false

	if name := util.CleanNamePtr(req.Name); name != nil {
		if *name == "" {
			return nil, apperr.InvalidFields("invalid measurement point", map[string]string{"name": "is required"})
		}
		if *name != mp.Name {
			upd.Name, mp.Name, changed = name, *name, true
		}
	}
	if req.Description != nil && *req.Description != mp.Description {
		upd.Description, mp.Description, changed = req.Description, *req.Description, true
	}

	var pushed []model.Sensor
	if req.Sensors != nil {
		incoming := make([]model.SensorInput, len(*req.Sensors))
		for i, in := range *req.Sensors {
			in.Name = util.CleanName(in.Name)
			incoming[i] = in
		}
		merged, err := mergeSensors(mp.Sensors, incoming, now, s.newID)
		if err != nil {
			return nil, err
		}
		if merged.changed {
			upd.Sensors, mp.Sensors, changed = merged.sensors, merged.sensors, true
			pushed = merged.pushed
		}
	}

	if !changed {
		return mp.View(), nil
	}
	if err := s.save(ctx, mp, upd); err != nil {
		return nil, err
	}

	for _, sensor := range pushed {
		s.push(ctx, mp, sensor)
	}
	s.log.Info("measurement point updated", "id", mp.ID.Hex(), "user_id", caller.ID.Hex())
	return mp.View(), nil
}

// Delete soft-deletes a measurement point. organisationID must match the
// stored one; a mismatch is reported as NotFound.
func (s *MeasurementPointService) Delete(ctx context.Context, caller *auth.UserPrincipal, id, organisationID string) (*model.MeasurementPoint, error) {
	mpID, err := parseID(id, "id")
	if err != nil {
		return nil, err
	}
	orgID, err := parseID(organisationID, "organisationId")
	if err != nil {
		return nil, err
	}

	mp, err := s.load(ctx, mpID)
	if err != nil {
		return nil, err
	}
	if mp.OrganisationID != orgID {
		return nil, apperr.NotFoundf("measurement point not found")
	}
	if _, err := s.resolver.HasAdminAccessToOrg(ctx, caller.ID, mp.OrganisationID); err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.points.SoftDelete(ctx, mpID, now)
	if err != nil {
		return nil, apperr.Wrap(err, "deleting measurement point")
	}
	if !ok {
		return nil, apperr.NotFoundf("measurement point not found")
	}
	mp.MarkDeleted(now)
	mp.UpdatedEpoch = now

	s.log.Info("measurement point deleted", "id", mp.ID.Hex(), "user_id", caller.ID.Hex())
	return mp.View(), nil
}

// RotateDeviceToken issues a new device token; the previous one stops
// working immediately.
func (s *MeasurementPointService) RotateDeviceToken(ctx context.Context, caller *auth.UserPrincipal, id string) (*model.CreatedMeasurementPoint, error) {
	mpID, err := parseID(id, "id")
	if err != nil {
		return nil, err
	}
	mp, err := s.loadAsAdmin(ctx, caller, mpID)
	if err != nil {
		return nil, err
	}

	token, err := util.GenerateDeviceToken()
	if err != nil {
		return nil, apperr.Wrap(err, "generating device token")
	}
	hash := util.HashDeviceToken(token)
	if err := s.save(ctx, mp, repository.MeasurementPointUpdate{DeviceTokenHash: &hash, UpdatedEpoch: s.now()}); err != nil {
		return nil, err
	}
	mp.DeviceTokenHash = hash

	s.log.Info("device token rotated", "id", mp.ID.Hex(), "user_id", caller.ID.Hex())
	return &model.CreatedMeasurementPoint{MeasurementPoint: mp.View(), DeviceToken: token}, nil
}
