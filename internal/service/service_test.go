package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"sensorhub/internal/auth"
	"sensorhub/internal/bucket"
	"sensorhub/internal/config"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/internal/repository/memory"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type pushedConfig struct {
	mpID     primitive.ObjectID
	sensorID string
	cfg      model.SensorConfig
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []pushedConfig
	err  error
}

func (p *recordingPublisher) PublishConfig(_ context.Context, mpID primitive.ObjectID, sensorID string, cfg model.SensorConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, pushedConfig{mpID, sensorID, cfg})
	return p.err
}

func (p *recordingPublisher) Close() {}

// clock is a manually advanced epoch source.
type clock struct{ t int64 }

func (c *clock) now() int64 { return c.t }

type fixture struct {
	ctx       context.Context
	cfg       *config.Config
	store     *memory.Store
	clock     *clock
	publisher *recordingPublisher

	points  *MeasurementPointService
	sensors *SensorService
	users   *UserService
	orgs    *OrgService

	appAdmin *auth.UserPrincipal
	orgAdmin *auth.UserPrincipal
	member   *auth.UserPrincipal
	outsider *auth.UserPrincipal
	org      *model.Organisation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "sensorhub", TokenTTLMinutes: 5}}
	store := memory.NewStore()
	log := logging.Discard()
	resolver := auth.NewResolver(cfg.Auth, store.Orgs(), store.Users(), store.Points(), log)

	f := &fixture{
		ctx:       context.Background(),
		cfg:       cfg,
		store:     store,
		clock:     &clock{t: 1_000},
		publisher: &recordingPublisher{},
	}
	f.points = NewMeasurementPointService(store.Points(), resolver, f.publisher, log)
	f.sensors = NewSensorService(store.Points(), resolver, f.publisher, log)
	f.users = NewUserService(cfg, store.Users(), store.Orgs(), resolver, log)
	f.orgs = NewOrgService(store.Orgs(), store.Users(), resolver, bucket.Noop{}, log)

	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("sensor-%d", seq)
	}
	f.points.now, f.points.newID = f.clock.now, newID
	f.sensors.now, f.sensors.newID = f.clock.now, newID
	f.users.now = f.clock.now
	f.orgs.now = f.clock.now

	f.appAdmin = f.addUser(t, "root@x.io", model.RoleAdmin)
	f.orgAdmin = f.addUser(t, "admin@x.io", model.RoleMember)
	f.member = f.addUser(t, "member@x.io", model.RoleMember)
	f.outsider = f.addUser(t, "outsider@x.io", model.RoleMember)

	org, err := store.Orgs().Create(f.ctx, &model.Organisation{Name: "O1", Users: []model.OrgUser{
		{UserID: f.orgAdmin.ID, Policy: model.PolicyAdmin},
		{UserID: f.member.ID, Policy: model.PolicyMember},
	}})
	if err != nil {
		t.Fatalf("creating organisation: %v", err)
	}
	f.org = org
	return f
}

func (f *fixture) addUser(t *testing.T, email string, role model.Role) *auth.UserPrincipal {
	t.Helper()
	u, err := f.store.Users().Create(f.ctx, &model.User{Email: email, Role: role, FirstName: "T", LastName: "U"})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return &auth.UserPrincipal{ID: u.ID, Role: role}
}

// createPoint creates a measurement point in the fixture organisation.
func (f *fixture) createPoint(t *testing.T, name string) *model.CreatedMeasurementPoint {
	t.Helper()
	mp, err := f.points.Create(f.ctx, f.orgAdmin, model.CreateMeasurementPointRequest{
		OrganisationID: f.org.ID.Hex(),
		Name:           name,
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", name, err)
	}
	return mp
}

func validConfig() model.SensorConfig {
	return model.SensorConfig{
		SendIntervalSeconds:    3600,
		MeasureIntervalSeconds: 300,
		TemperatureLimits:      model.TemperatureLimits{Heating: 15, Cooling: 24},
	}
}

// addSensor adds a temperature sensor and returns its id.
func (f *fixture) addSensor(t *testing.T, mpID primitive.ObjectID, name string) string {
	t.Helper()
	mp, err := f.sensors.AddSensor(f.ctx, f.orgAdmin, mpID.Hex(), model.AddSensorRequest{
		Name:     name,
		Quantity: model.QuantityTemperature,
		Config:   validConfig(),
	})
	if err != nil {
		t.Fatalf("AddSensor(%s) error = %v", name, err)
	}
	return mp.Sensors[len(mp.Sensors)-1].SensorID
}

// raw returns the stored document including deleted sensors.
func (f *fixture) raw(t *testing.T, id primitive.ObjectID) *model.MeasurementPoint {
	t.Helper()
	mp, err := f.store.Points().FindByID(f.ctx, id, true)
	if err != nil || mp == nil {
		t.Fatalf("raw(%s) = %v, %v", id.Hex(), mp, err)
	}
	return mp
}
