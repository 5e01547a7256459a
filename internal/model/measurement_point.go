package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Quantity is the physical quantity a sensor measures.
type Quantity string

const (
	QuantityTemperature  Quantity = "temperature"
	QuantityAcceleration Quantity = "acceleration"
)

// IsValid reports whether q is a known quantity.
func (q Quantity) IsValid() bool {
	return q == QuantityTemperature || q == QuantityAcceleration
}

type TemperatureLimits struct {
	Heating float64 `bson:"heating" json:"heating"`
	Cooling float64 `bson:"cooling" json:"cooling" binding:"gtfield=Heating"`
}

// SensorConfig is the operating configuration pushed to a device.
// CreatedEpoch is a version stamp used to arbitrate between concurrent
// writers, not a display timestamp.
type SensorConfig struct {
	SendIntervalSeconds    int               `bson:"sendIntervalSeconds" json:"sendIntervalSeconds" binding:"required,gt=0,gtfield=MeasureIntervalSeconds"`
	MeasureIntervalSeconds int               `bson:"measureIntervalSeconds" json:"measureIntervalSeconds" binding:"required,gt=0"`
	TemperatureLimits      TemperatureLimits `bson:"temperatureLimits" json:"temperatureLimits"`
	CreatedEpoch           int64             `bson:"createdEpoch" json:"createdEpoch"`
}

// Validate checks the config invariants. The returned map is keyed by field.
func (c SensorConfig) Validate() map[string]string {
	fields := map[string]string{}
	if c.MeasureIntervalSeconds <= 0 {
		fields["config.measureIntervalSeconds"] = "must be positive"
	}
	if c.SendIntervalSeconds <= 0 {
		fields["config.sendIntervalSeconds"] = "must be positive"
	}
	if c.MeasureIntervalSeconds >= c.SendIntervalSeconds {
		fields["config.measureIntervalSeconds"] = "must be less than sendIntervalSeconds"
	}
	if c.TemperatureLimits.Heating >= c.TemperatureLimits.Cooling {
		fields["config.temperatureLimits"] = "heating must be less than cooling"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Sensor is embedded in a measurement point and never stored on its own.
type Sensor struct {
	SensorID string       `bson:"sensorId" json:"sensorId"`
	Name     string       `bson:"name" json:"name"`
	Quantity Quantity     `bson:"quantity" json:"quantity"`
	Config   SensorConfig `bson:"config" json:"config"`

	Lifecycle `bson:",inline"`
}

type MeasurementPoint struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganisationID  primitive.ObjectID `bson:"organisationId" json:"organisationId"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatorID       primitive.ObjectID `bson:"creatorId" json:"creatorId"`
	DeviceTokenHash string             `bson:"deviceTokenHash" json:"-"`
	Sensors         []Sensor           `bson:"sensors" json:"sensors"`

	Lifecycle `bson:",inline"`
}

func (m *MeasurementPoint) GetID() primitive.ObjectID   { return m.ID }
func (m *MeasurementPoint) SetID(id primitive.ObjectID) { m.ID = id }

// FindSensor returns the index of the non-deleted sensor with the given id,
// or -1.
func (m *MeasurementPoint) FindSensor(sensorID string) int {
	for i := range m.Sensors {
		if m.Sensors[i].SensorID == sensorID && !m.Sensors[i].IsDeleted() {
			return i
		}
	}
	return -1
}

// View returns a copy of m without soft-deleted sensors, for read paths.
func (m *MeasurementPoint) View() *MeasurementPoint {
	v := *m
	v.Sensors = make([]Sensor, 0, len(m.Sensors))
	for _, s := range m.Sensors {
		if !s.IsDeleted() {
			v.Sensors = append(v.Sensors, s)
		}
	}
	return &v
}

// CreatedMeasurementPoint is returned once on creation or token rotation; it
// is the only time the plaintext device token leaves the server.
type CreatedMeasurementPoint struct {
	*MeasurementPoint
	DeviceToken string `json:"deviceToken"`
}

type CreateMeasurementPointRequest struct {
	OrganisationID string `json:"organisationId" binding:"required,len=24,hexadecimal"`
	Name           string `json:"name" binding:"required,min=1,max=100"`
	Description    string `json:"description" binding:"max=1000"`
}

// SensorInput is one element of a bulk sensor update. An empty SensorID
// adds a new sensor.
type SensorInput struct {
	SensorID string       `json:"sensorId"`
	Name     string       `json:"name" binding:"required,min=1,max=100"`
	Quantity Quantity     `json:"quantity" binding:"required,oneof=temperature acceleration"`
	Config   SensorConfig `json:"config"`
}

type UpdateMeasurementPointRequest struct {
	Name        *string        `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string        `json:"description" binding:"omitempty,max=1000"`
	Sensors     *[]SensorInput `json:"sensors" binding:"omitempty,dive"`
}

type DeleteMeasurementPointRequest struct {
	OrganisationID string `json:"organisationId" form:"organisationId" binding:"required,len=24,hexadecimal"`
}

type AddSensorRequest struct {
	Name     string       `json:"name" binding:"required,min=1,max=100"`
	Quantity Quantity     `json:"quantity" binding:"required,oneof=temperature acceleration"`
	Config   SensorConfig `json:"config"`
}

type UpdateSensorRequest struct {
	Name     *string       `json:"name" binding:"omitempty,min=1,max=100"`
	Quantity *Quantity     `json:"quantity" binding:"omitempty,oneof=temperature acceleration"`
	Config   *SensorConfig `json:"config" binding:"omitempty"`
}

// LocatedSensor is a sensor together with the measurement point holding it.
type LocatedSensor struct {
	MeasurementPointID primitive.ObjectID `json:"measurementPointId"`
	Sensor
}
