package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sensorhub/internal/config"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
)

var (
	ErrNotConnected  = errors.New("mqtt: not connected")
	ErrPublishFailed = errors.New("mqtt: publish failed")
)

// broker is the subset of the paho client used here.
type broker interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes retained config messages through paho.
type MQTTPublisher struct {
	client broker
	prefix string
	qos    byte
	log    *logging.Logger
}

// NewMQTTPublisher connects to the configured broker. Reconnection after the
// initial connect is handled by paho.
func NewMQTTPublisher(cfg config.MQTTConfig, log *logging.Logger) (*MQTTPublisher, error) {
	log = log.With("component", "mqtt")

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		log.Info("connected", "broker", cfg.Broker)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect timeout after %v", defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	return newMQTTPublisher(client, cfg.TopicPrefix, byte(cfg.QoS), log), nil //nolint:gosec // qos validated by config
}

func newMQTTPublisher(client broker, prefix string, qos byte, log *logging.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, log: log}
}

// PublishConfig publishes cfg as the retained config of the sensor.
func (p *MQTTPublisher) PublishConfig(ctx context.Context, mpID primitive.ObjectID, sensorID string, cfg model.SensorConfig) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := encodeConfig(mpID, sensorID, cfg)
	if err != nil {
		return err
	}

	topic := ConfigTopic(p.prefix, mpID.Hex(), sensorID)
	token := p.client.Publish(topic, p.qos, true, payload)

	timeout := time.NewTimer(defaultPublishTimeout)
	defer timeout.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timeout.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	p.log.Debug("config published", "topic", topic)
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(defaultDisconnectQuiesce)
}
