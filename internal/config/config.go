package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

// Store selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // mongo or memory
}

// MongoDB configuration
type MongoConfig struct {
	URI               string `yaml:"uri"`
	Database          string `yaml:"database"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
}

// Token signing configuration
type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	JWTIssuer       string `yaml:"jwt_issuer"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// Seed application admin, created at start-up when no admin exists
type AdminConfig struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTT broker used to push sensor configs to devices
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// InfluxDB used to provision one bucket per organisation
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	RetentionDays int    `yaml:"retention_days"`
}

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// Default configuration values
const (
	DefaultServerPort        = "8080"
	DefaultServerHost        = ""
	DefaultStoreDriver       = "mongo"
	DefaultMongoURI          = "mongodb://localhost:27017/sensorhub"
	DefaultMongoDB           = "sensorhub"
	DefaultMongoTimeoutSec   = 10
	DefaultJWTIssuer         = "sensorhub"
	DefaultTokenTTLMinutes   = 60 * 24
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultLogOutput         = "stdout"
	DefaultMQTTBroker        = "tcp://localhost:1883"
	DefaultMQTTClientID      = "sensorhub"
	DefaultMQTTQoS           = 1
	DefaultMQTTTopicPrefix   = "sensorhub"
	DefaultInfluxURL         = "http://localhost:8086"
	DefaultInfluxRetention   = 365
	DefaultAdminFirstName    = "App"
	DefaultAdminLastName     = "Admin"
	MinJWTSecretLength       = 32
	StoreDriverMongo         = "mongo"
	StoreDriverMemory        = "memory"
	DefaultConfigFileEnvName = "SENSORHUB_CONFIG"
	// Pagination defaults
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// New returns a new Config with default values, overridden by environment
// variables.
func New() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// Load reads the YAML file at path (if any) and applies environment overrides
// on top. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: DefaultServerPort, Host: DefaultServerHost},
		Store:  StoreConfig{Driver: DefaultStoreDriver},
		Mongo: MongoConfig{
			URI:               DefaultMongoURI,
			Database:          DefaultMongoDB,
			ConnectTimeoutSec: DefaultMongoTimeoutSec,
		},
		Auth: AuthConfig{
			JWTIssuer:       DefaultJWTIssuer,
			TokenTTLMinutes: DefaultTokenTTLMinutes,
		},
		Admin: AdminConfig{
			FirstName: DefaultAdminFirstName,
			LastName:  DefaultAdminLastName,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
		MQTT: MQTTConfig{
			Broker:      DefaultMQTTBroker,
			ClientID:    DefaultMQTTClientID,
			QoS:         DefaultMQTTQoS,
			TopicPrefix: DefaultMQTTTopicPrefix,
		},
		InfluxDB: InfluxDBConfig{
			URL:           DefaultInfluxURL,
			RetentionDays: DefaultInfluxRetention,
		},
	}
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGO_DB", c.Mongo.Database)
	c.Mongo.ConnectTimeoutSec = getEnvInt("MONGO_CONNECT_TIMEOUT_SEC", c.Mongo.ConnectTimeoutSec)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTIssuer = getEnv("JWT_ISSUER", c.Auth.JWTIssuer)
	c.Auth.TokenTTLMinutes = getEnvInt("TOKEN_TTL_MINUTES", c.Auth.TokenTTLMinutes)
	c.Admin.Email = getEnv("ADMIN_EMAIL", c.Admin.Email)
	c.Admin.Password = getEnv("ADMIN_PASSWORD", c.Admin.Password)
	c.Admin.FirstName = getEnv("ADMIN_FIRST_NAME", c.Admin.FirstName)
	c.Admin.LastName = getEnv("ADMIN_LAST_NAME", c.Admin.LastName)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
	c.MQTT.Enabled = getEnvBool("MQTT_ENABLED", c.MQTT.Enabled)
	c.MQTT.Broker = getEnv("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.QoS = getEnvInt("MQTT_QOS", c.MQTT.QoS)
	c.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", c.MQTT.TopicPrefix)
	c.InfluxDB.Enabled = getEnvBool("INFLUXDB_ENABLED", c.InfluxDB.Enabled)
	c.InfluxDB.URL = getEnv("INFLUXDB_URL", c.InfluxDB.URL)
	c.InfluxDB.Token = getEnv("INFLUXDB_TOKEN", c.InfluxDB.Token)
	c.InfluxDB.Org = getEnv("INFLUXDB_ORG", c.InfluxDB.Org)
	c.InfluxDB.RetentionDays = getEnvInt("INFLUXDB_RETENTION_DAYS", c.InfluxDB.RetentionDays)
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d characters", MinJWTSecretLength))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("auth.token_ttl_minutes must be positive"))
	}
	switch c.Store.Driver {
	case StoreDriverMongo, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of mongo, memory", c.Store.Driver))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d out of range 0-2", c.MQTT.QoS))
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.Token == "" || c.InfluxDB.Org == "") {
		errs = append(errs, errors.New("influxdb.token and influxdb.org are required when influxdb is enabled"))
	}
	return errors.Join(errs...)
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
