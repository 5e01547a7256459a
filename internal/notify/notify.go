// Package notify pushes effective sensor configurations to devices over MQTT.
//
// Each sensor has one retained topic:
//
//	<prefix>/measurement-points/<mpId>/sensors/<sensorId>/config
//
// A device that subscribes after a change still receives the latest config.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sensorhub/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConfigPublisher announces config changes. Implementations must be safe for
// concurrent use.
type ConfigPublisher interface {
	PublishConfig(ctx context.Context, mpID primitive.ObjectID, sensorID string, cfg model.SensorConfig) error
	Close()
}

// ConfigMessage is the retained payload.
type ConfigMessage struct {
	MeasurementPointID string             `json:"measurementPointId"`
	SensorID           string             `json:"sensorId"`
	Config             model.SensorConfig `json:"config"`
}

// ConfigTopic returns the retained topic for one sensor.
func ConfigTopic(prefix, mpID, sensorID string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	return fmt.Sprintf("%s/measurement-points/%s/sensors/%s/config", prefix, mpID, sensorID)
}

func encodeConfig(mpID primitive.ObjectID, sensorID string, cfg model.SensorConfig) ([]byte, error) {
	payload, err := json.Marshal(ConfigMessage{
		MeasurementPointID: mpID.Hex(),
		SensorID:           sensorID,
		Config:             cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding config message: %w", err)
	}
	return payload, nil
}

// Noop discards every message. Used when MQTT is disabled.
type Noop struct{}

func (Noop) PublishConfig(context.Context, primitive.ObjectID, string, model.SensorConfig) error {
	return nil
}

func (Noop) Close() {}
