package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sensorhub/internal/auth"
	"sensorhub/internal/bucket"
	"sensorhub/internal/config"
	"sensorhub/internal/handler"
	"sensorhub/internal/logging"
	"sensorhub/internal/middleware"
	"sensorhub/internal/notify"
	"sensorhub/internal/repository"
	"sensorhub/internal/repository/memory"
	"sensorhub/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	cfg         *config.Config
	log         *logging.Logger
	router      *gin.Engine
	mongo       *mongo.Client
	publisher   notify.ConfigPublisher
	provisioner bucket.Provisioner
	services    *Services
}

// Repositories groups the store implementations.
type Repositories struct {
	Orgs   repository.IOrgRepository
	Users  repository.IUserRepository
	Points repository.IMeasurementPointRepository
}

// Services groups the business services.
type Services struct {
	Resolver *auth.Resolver
	Users    *service.UserService
	Orgs     *service.OrgService
	Points   *service.MeasurementPointService
	Sensors  *service.SensorService
}

// Handlers groups the HTTP handlers.
type Handlers struct {
	Auth             *handler.AuthHandler
	User             *handler.UserHandler
	Org              *handler.OrgHandler
	MeasurementPoint *handler.MeasurementPointHandler
	Sensor           *handler.SensorHandler
	System           *handler.SystemHandler
}

// New creates a new server instance. The store, the MQTT publisher and the
// bucket provisioner are selected by cfg.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}

	repos, err := s.openStore()
	if err != nil {
		return nil, err
	}

	s.publisher, err = newPublisher(cfg.MQTT, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.provisioner, err = newProvisioner(cfg.InfluxDB, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.services = InitServices(cfg, repos, s.publisher, s.provisioner, log)
	handlers := InitHandlers(s.services, s.ping)

	if err := PopulateInitialData(cfg, s.services, log); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to populate initial data: %w", err)
	}

	s.router = setupRouter(handlers, s.services, log)
	return s, nil
}

func (s *Server) openStore() (*Repositories, error) {
	if s.cfg.Store.Driver == config.StoreDriverMemory {
		s.log.Warn("using the in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &Repositories{Orgs: store.Orgs(), Users: store.Users(), Points: store.Points()}, nil
	}

	client, err := Connect(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	s.mongo = client
	db := client.Database(s.cfg.Mongo.Database)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(s.cfg))
	defer cancel()
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		s.Close()
		return nil, err
	}
	return InitRepositories(db, s.log), nil
}

func connectTimeout(cfg *config.Config) time.Duration {
	sec := cfg.Mongo.ConnectTimeoutSec
	if sec <= 0 {
		sec = config.DefaultMongoTimeoutSec
	}
	return time.Duration(sec) * time.Second
}

func Connect(cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg))
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func InitRepositories(db *mongo.Database, log *logging.Logger) *Repositories {
	return &Repositories{
		Orgs:   repository.NewOrgRepository(db, log),
		Users:  repository.NewUserRepository(db, log),
		Points: repository.NewMeasurementPointRepository(db, log),
	}
}

func InitServices(cfg *config.Config, repos *Repositories, publisher notify.ConfigPublisher, provisioner bucket.Provisioner, log *logging.Logger) *Services {
	resolver := auth.NewResolver(cfg.Auth, repos.Orgs, repos.Users, repos.Points, log)
	return &Services{
		Resolver: resolver,
		Users:    service.NewUserService(cfg, repos.Users, repos.Orgs, resolver, log),
		Orgs:     service.NewOrgService(repos.Orgs, repos.Users, resolver, provisioner, log),
		Points:   service.NewMeasurementPointService(repos.Points, resolver, publisher, log),
		Sensors:  service.NewSensorService(repos.Points, resolver, publisher, log),
	}
}

func InitHandlers(s *Services, ping func(context.Context) error) *Handlers {
	return &Handlers{
		Auth:             handler.NewAuthHandler(s.Users),
		User:             handler.NewUserHandler(s.Users),
		Org:              handler.NewOrgHandler(s.Orgs, s.Points),
		MeasurementPoint: handler.NewMeasurementPointHandler(s.Points),
		Sensor:           handler.NewSensorHandler(s.Sensors),
		System:           handler.NewSystemHandler(ping),
	}
}

// PopulateInitialData seeds the configured application admin when the store
// has none.
func PopulateInitialData(cfg *config.Config, s *Services, log *logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg))
	defer cancel()

	created, err := s.Users.EnsureAdmin(ctx, cfg.Admin)
	if err != nil {
		return err
	}
	if created {
		log.Info("seeded application admin", "email", cfg.Admin.Email)
	}
	return nil
}

func newPublisher(cfg config.MQTTConfig, log *logging.Logger) (notify.ConfigPublisher, error) {
	if !cfg.Enabled {
		return notify.Noop{}, nil
	}
	p, err := notify.NewMQTTPublisher(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return p, nil
}

func newProvisioner(cfg config.InfluxDBConfig, log *logging.Logger) (bucket.Provisioner, error) {
	if !cfg.Enabled {
		return bucket.Noop{}, nil
	}
	p, err := bucket.NewInfluxProvisioner(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to reach InfluxDB: %w", err)
	}
	return p, nil
}

// ping checks the Mongo connection; the memory store is always reachable.
func (s *Server) ping(ctx context.Context) error {
	if s.mongo == nil {
		return nil
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Services exposes the business services, for the CLI.
func (s *Server) Services() *Services {
	return s.services
}

// Close releases the broker, InfluxDB and MongoDB connections.
func (s *Server) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.provisioner != nil {
		s.provisioner.Close()
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.mongo.Disconnect(ctx)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "address", srv.Addr, "store", s.cfg.Store.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupRouter(h *Handlers, s *Services, log *logging.Logger) *gin.Engine {
	handler.ConfigureValidator()

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(middleware.RequestID(), middleware.Recovery(log), middleware.Logger(log))
	r.NoRoute(middleware.NoRoute)

	r.GET("/health", h.System.Health)
	r.GET("/version", h.System.Version)

	api := r.Group("/api")

	// Public routes
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	// Device routes authenticate with the measurement point's device token
	device := api.Group("/device/measurement-points/:id")
	device.Use(middleware.DeviceAuth(s.Resolver))
	device.GET("/sensors/:sensorId/config", h.Sensor.GetConfig)
	device.PUT("/sensors/:sensorId/config", h.Sensor.PutConfig)

	// Protected routes require a bearer token
	protected := api.Group("")
	protected.Use(middleware.UserAuth(s.Resolver))

	orgs := protected.Group("/organisations")
	{
		orgs.POST("", h.Org.Create)
		orgs.GET("", h.Org.List)
		orgs.GET("/:orgId", h.Org.Get)
		orgs.PATCH("/:orgId", h.Org.Update)
		orgs.DELETE("/:orgId", h.Org.Delete)
		orgs.GET("/:orgId/measurement-points", h.Org.ListMeasurementPoints)
	}

	points := protected.Group("/measurement-points")
	{
		points.POST("", h.MeasurementPoint.Create)
		points.GET("/:id", h.MeasurementPoint.Get)
		points.PATCH("/:id", h.MeasurementPoint.Update)
		points.DELETE("/:id", h.MeasurementPoint.Delete)
		points.POST("/:id/device-token", h.MeasurementPoint.RotateDeviceToken)

		points.POST("/:id/sensors", h.Sensor.Add)
		points.GET("/:id/sensors/:sensorId", h.Sensor.Get)
		points.PATCH("/:id/sensors/:sensorId", h.Sensor.Update)
		points.DELETE("/:id/sensors/:sensorId", h.Sensor.Delete)
	}

	protected.GET("/sensors/:sensorId", h.Sensor.Get)

	users := protected.Group("/users")
	{
		users.GET("/:id", h.User.Get)
		users.DELETE("/:id", h.User.Delete)
	}

	return r
}
