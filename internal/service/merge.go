package service

import (
	"fmt"
	"maps"

	"sensorhub/internal/apperr"
	"sensorhub/internal/model"
)

// sensorMerge is the outcome of applying a bulk sensor list to a measurement
// point.
type sensorMerge struct {
	sensors []model.Sensor
	// pushed holds the sensors whose effective config changed.
	pushed  []model.Sensor
	changed bool
}

// validateSensorInput checks one incoming sensor. Field keys are prefixed so
// the caller can tell which element failed.
func validateSensorInput(prefix string, name string, quantity model.Quantity, cfg model.SensorConfig) map[string]string {
	fields := map[string]string{}
	if name == "" {
		fields[prefix+"name"] = "is required"
	}
	if !quantity.IsValid() {
		fields[prefix+"quantity"] = "must be temperature or acceleration"
	}
	for k, v := range cfg.Validate() {
		fields[prefix+k] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// mergeSensors applies a full incoming sensor list to the stored one.
//
// Incoming sensors with an id must name a live stored sensor; the config kept
// is the one with the larger createdEpoch, and no incoming stamp may exceed
// now. Sensors without an id are added.
// Live stored sensors missing from the list are soft-deleted. Deleted slots
// are carried over untouched. The whole list is rejected before any change if
// an id repeats, is unknown, or an element is invalid.
func mergeSensors(stored []model.Sensor, incoming []model.SensorInput, now int64, newID func() string) (*sensorMerge, error) {
	fields := map[string]string{}
	seen := make(map[string]int, len(incoming))
	for i, in := range incoming {
		prefix := fmt.Sprintf("sensors[%d].", i)
		maps.Copy(fields, validateSensorInput(prefix, in.Name, in.Quantity, in.Config))
		if in.Config.CreatedEpoch > now {
			fields[prefix+"config.createdEpoch"] = "must not be in the future"
		}
		if in.SensorID == "" {
			continue
		}
		if j, dup := seen[in.SensorID]; dup {
			fields[prefix+"sensorId"] = fmt.Sprintf("duplicates sensors[%d]", j)
			continue
		}
		seen[in.SensorID] = i
		if findLive(stored, in.SensorID) < 0 {
			fields[prefix+"sensorId"] = "unknown sensor"
		}
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidFields("invalid sensors", fields)
	}

	res := &sensorMerge{sensors: make([]model.Sensor, 0, len(stored)+len(incoming))}
	for _, s := range stored {
		if s.IsDeleted() {
			res.sensors = append(res.sensors, s)
			continue
		}
		i, ok := seen[s.SensorID]
		if !ok {
			s.MarkDeleted(now)
			s.UpdatedEpoch = now
			res.sensors = append(res.sensors, s)
			res.changed = true
			continue
		}

		in := incoming[i]
		next := s
		next.Name = in.Name
		next.Quantity = in.Quantity
		if in.Config.CreatedEpoch > s.Config.CreatedEpoch {
			next.Config = in.Config
		}
		configChanged := next.Config != s.Config
		if configChanged || next.Name != s.Name || next.Quantity != s.Quantity {
			next.UpdatedEpoch = now
			res.changed = true
		}
		if configChanged {
			res.pushed = append(res.pushed, next)
		}
		res.sensors = append(res.sensors, next)
	}

	for _, in := range incoming {
		if in.SensorID != "" {
			continue
		}
		s := newSensor(newID(), in.Name, in.Quantity, in.Config, now)
		res.sensors = append(res.sensors, s)
		res.pushed = append(res.pushed, s)
		res.changed = true
	}
	return res, nil
}

// newSensor stamps a new sensor and its config with now.
func newSensor(id, name string, quantity model.Quantity, cfg model.SensorConfig, now int64) model.Sensor {
	cfg.CreatedEpoch = now
	return model.Sensor{
		SensorID:  id,
		Name:      name,
		Quantity:  quantity,
		Config:    cfg,
		Lifecycle: model.Lifecycle{CreatedEpoch: now},
	}
}

func findLive(sensors []model.Sensor, id string) int {
	mp := model.MeasurementPoint{Sensors: sensors}
	return mp.FindSensor(id)
}
