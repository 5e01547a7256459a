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

// SensorService manages single sensors inside a measurement point. Admin
// operations take a user principal; the config endpoints used by field
// hardware take a device principal.
type SensorService struct {
	pointAccess
	configPush
	log   *logging.Logger
	now   func() int64
	newID func() string
}

// NewSensorService creates a new sensor service
func NewSensorService(points repository.IMeasurementPointRepository, resolver *auth.Resolver, publisher notify.ConfigPublisher, log *logging.Logger) *SensorService {
	log = log.With("component", "sensors")
	return &SensorService{
		pointAccess: pointAccess{points: points, resolver: resolver},
		configPush:  configPush{publisher: publisher, log: log},
		log:         log,
		now:         model.NowEpoch,
		newID:       uuid.NewString,
	}
}

func errSensorNotFound() error {
	return apperr.NotFoundf("sensor not found")
}

// AddSensor appends a new sensor. The sensor and its config are both
// stamped with the current time.
func (s *SensorService) AddSensor(ctx context.Context, caller *auth.UserPrincipal, mpID string, req model.AddSensorRequest) (*model.MeasurementPoint, error) {
	defer timer.Track(s.log, "SensorService.AddSensor")()

	id, err := parseID(mpID, "id")
	if err != nil {
		return nil, err
	}
	name := util.CleanName(req.Name)
	if fields := validateSensorInput("", name, req.Quantity, req.Config); fields != nil {
		return nil, apperr.InvalidFields("invalid sensor", fields)
	}

	mp, err := s.loadAsAdmin(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sensor := newSensor(s.newID(), name, req.Quantity, req.Config, now)
	mp.Sensors = append(mp.Sensors, sensor)
	if err := s.save(ctx, mp, repository.MeasurementPointUpdate{Sensors: mp.Sensors, UpdatedEpoch: now}); err != nil {
		return nil, err
	}

	s.push(ctx, mp, sensor)
	s.log.Info("sensor added", "measurement_point_id", mp.ID.Hex(), "sensor_id", sensor.SensorID, "user_id", caller.ID.Hex())
	return mp.View(), nil
}

// UpdateSensor replaces the supplied fields of a live sensor. A supplied
// config always replaces the stored one and gets a fresh version stamp.
func (s *SensorService) UpdateSensor(ctx context.Context, caller *auth.UserPrincipal, mpID, sensorID string, req model.UpdateSensorRequest) (*model.MeasurementPoint, error) {
	defer timer.Track(s.log, "SensorService.UpdateSensor")()

	id, err := parseID(mpID, "id")
	if err != nil {
		return nil, err
	}
	name := util.CleanNamePtr(req.Name)
	fields := map[string]string{}
	if name != nil && *name == "" {
		fields["name"] = "is required"
	}
	if req.Quantity != nil && !req.Quantity.IsValid() {
		fields["quantity"] = "must be temperature or acceleration"
	}
	if req.Config != nil {
		for k, v := range req.Config.Validate() {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidFields("invalid sensor", fields)
	}

	mp, err := s.loadAsAdmin(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	i := mp.FindSensor(sensorID)
	if i < 0 {
		return nil, errSensorNotFound()
	}

	now := s.now()
	sensor := &mp.Sensors[i]
	if name != nil {
		sensor.Name = *name
	}
	if req.Quantity != nil {
		sensor.Quantity = *req.Quantity
	}
	if req.Config != nil {
		cfg := *req.Config
		cfg.CreatedEpoch = model.NextStamp(now, sensor.Config.CreatedEpoch)
		sensor.Config = cfg
	}
	sensor.UpdatedEpoch = now

	if err := s.save(ctx, mp, repository.MeasurementPointUpdate{Sensors: mp.Sensors, UpdatedEpoch: now}); err != nil {
		return nil, err
	}
	if req.Config != nil {
		s.push(ctx, mp, *sensor)
	}
	s.log.Info("sensor updated", "measurement_point_id", mp.ID.Hex(), "sensor_id", sensorID, "user_id", caller.ID.Hex())
	return mp.View(), nil
}

// DeleteSensor soft-deletes a sensor in place; its slot stays in the array.
func (s *SensorService) DeleteSensor(ctx context.Context, caller *auth.UserPrincipal, mpID, sensorID string) (*model.MeasurementPoint, error) {
	id, err := parseID(mpID, "id")
	if err != nil {
		return nil, err
	}
	mp, err := s.loadAsAdmin(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	i := mp.FindSensor(sensorID)
	if i < 0 {
		return nil, errSensorNotFound()
	}

	now := s.now()
	mp.Sensors[i].MarkDeleted(now)
	mp.Sensors[i].UpdatedEpoch = now
	if err := s.save(ctx, mp, repository.MeasurementPointUpdate{Sensors: mp.Sensors, UpdatedEpoch: now}); err != nil {
		return nil, err
	}

	s.log.Info("sensor deleted", "measurement_point_id", mp.ID.Hex(), "sensor_id", sensorID, "user_id", caller.ID.Hex())
	return mp.View(), nil
}

// GetSensor looks a live sensor up, within one measurement point when mpID
// is set or across all live measurement points otherwise. Callers outside
// the owning organisation get NotFound.
func (s *SensorService) GetSensor(ctx context.Context, caller *auth.UserPrincipal, mpID, sensorID string) (*model.LocatedSensor, error) {
	var mp *model.MeasurementPoint
	if mpID != "" {
		id, err := parseID(mpID, "id")
		if err != nil {
			return nil, err
		}
		if mp, err = s.loadAsMember(ctx, caller, id, errSensorNotFound()); err != nil {
			return nil, err
		}
	} else {
		found, err := s.points.FindBySensorID(ctx, sensorID)
		if err != nil {
			return nil, apperr.Wrap(err, "finding sensor")
		}
		if found == nil {
			return nil, errSensorNotFound()
		}
		if err := s.checkMember(ctx, caller, found, errSensorNotFound()); err != nil {
			return nil, err
		}
		mp = found
	}

	i := mp.FindSensor(sensorID)
	if i < 0 {
		return nil, errSensorNotFound()
	}
	return &model.LocatedSensor{MeasurementPointID: mp.ID, Sensor: mp.Sensors[i]}, nil
}

// GetConfig returns the config of a sensor to the device bound to its
// measurement point.
func (s *SensorService) GetConfig(ctx context.Context, device *auth.DevicePrincipal, mpID, sensorID string) (*model.SensorConfig, error) {
	mp, i, err := s.loadForDevice(ctx, device, mpID, sensorID)
	if err != nil {
		return nil, err
	}
	cfg := mp.Sensors[i].Config
	return &cfg, nil
}

// UpdateConfig overwrites the config of a sensor on behalf of its device
// and stamps it with a fresh version.
func (s *SensorService) UpdateConfig(ctx context.Context, device *auth.DevicePrincipal, mpID, sensorID string, cfg model.SensorConfig) (*model.SensorConfig, error) {
	defer timer.Track(s.log, "SensorService.UpdateConfig")()

	if fields := cfg.Validate(); fields != nil {
		return nil, apperr.InvalidFields("invalid config", fields)
	}
	mp, i, err := s.loadForDevice(ctx, device, mpID, sensorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cfg.CreatedEpoch = model.NextStamp(now, mp.Sensors[i].Config.CreatedEpoch)
	mp.Sensors[i].Config = cfg
	mp.Sensors[i].UpdatedEpoch = now
	if err := s.save(ctx, mp, repository.MeasurementPointUpdate{Sensors: mp.Sensors, UpdatedEpoch: now}); err != nil {
		return nil, err
	}

	s.log.Info("config updated by device", "measurement_point_id", mp.ID.Hex(), "sensor_id", sensorID)
	return &cfg, nil
}

// loadForDevice resolves the addressed sensor for a device. Any mismatch is
// NotFound.
func (s *SensorService) loadForDevice(ctx context.Context, device *auth.DevicePrincipal, mpID, sensorID string) (*model.MeasurementPoint, int, error) {
	id, err := util.ParseObjectID(mpID)
	if err != nil || !device.Owns(id) {
		return nil, -1, apperr.NotFoundf("measurement point not found")
	}
	mp, err := s.load(ctx, id)
	if err != nil {
		return nil, -1, err
	}
	i := mp.FindSensor(sensorID)
	if i < 0 {
		return nil, -1, errSensorNotFound()
	}
	return mp, i, nil
}
