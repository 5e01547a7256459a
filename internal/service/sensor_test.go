package service

import (
	"testing"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/model"
)

func TestAddSensorThenGet(t *testing.T) {
	f := newFixture(t)
	mp := f.createPoint(t, "M1")

	f.clock.t = 1_500
	updated, err := f.sensors.AddSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), model.AddSensorRequest{
		Name:     "S1",
		Quantity: model.QuantityTemperature,
		Config:   validConfig(),
	})
	if err != nil {
		t.Fatalf("AddSensor() error = %v", err)
	}
	if len(updated.Sensors) != 1 {
		t.Fatalf("len(Sensors) = %d, want 1", len(updated.Sensors))
	}

	id := updated.Sensors[0].SensorID
	got, err := f.sensors.GetSensor(f.ctx, f.member, mp.ID.Hex(), id)
	if err != nil {
		t.Fatalf("GetSensor() error = %v", err)
	}
	if got.DeletedEpoch != nil {
		t.Error("new sensor carries a deletedEpoch")
	}
	if got.Config.CreatedEpoch != got.CreatedEpoch || got.CreatedEpoch != 1_500 {
		t.Errorf("createdEpoch = %d, config.createdEpoch = %d", got.CreatedEpoch, got.Config.CreatedEpoch)
	}
	if got.MeasurementPointID != mp.ID {
		t.Errorf("MeasurementPointID = %s", got.MeasurementPointID.Hex())
	}
	if len(f.publisher.sent) != 1 || f.publisher.sent[0].sensorID != id {
		t.Errorf("pushed = %+v", f.publisher.sent)
	}
}

func TestAddSensorValidation(t *testing.T) {
	f := newFixture(t)
	mp := f.createPoint(t, "M1")

	cfg := validConfig()
	cfg.MeasureIntervalSeconds = 3600
	_, err := f.sensors.AddSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), model.AddSensorRequest{
		Name: "S2", Quantity: model.QuantityTemperature, Config: cfg,
	})
	if !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("measure == send: error = %v, want InvalidInput", err)
	}

	cfg = validConfig()
	cfg.TemperatureLimits = model.TemperatureLimits{Heating: 30, Cooling: 20}
	_, err = f.sensors.AddSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), model.AddSensorRequest{
		Name: "S2", Quantity: model.QuantityTemperature, Config: cfg,
	})
	if !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("inverted limits: error = %v, want InvalidInput", err)
	}

	if raw := f.raw(t, mp.ID); len(raw.Sensors) != 0 {
		t.Error("invalid sensor was written")
	}
	if _, err := f.sensors.AddSensor(f.ctx, f.member, mp.ID.Hex(), model.AddSensorRequest{
		Name: "S2", Quantity: model.QuantityTemperature, Config: validConfig(),
	}); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("member AddSensor() = %v", err)
	}
}

func TestUpdateSensorConfigAdvancesStamp(t *testing.T) {
	f := newFixture(t)
	mp := f.createPoint(t, "M1")
	id := f.addSensor(t, mp.ID, "S1")

	before, _ := f.sensors.GetSensor(f.ctx, f.orgAdmin, "", id)

	// Same clock reading: the stamp must still move forward.
	cfg := validConfig()
	cfg.SendIntervalSeconds = 1800
	cfg.CreatedEpoch = 1 // ignored
	if _, err := f.sensors.UpdateSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), id, model.UpdateSensorRequest{Config: &cfg}); err != nil {
		t.Fatalf("UpdateSensor() error = %v", err)
	}

	after, _ := f.sensors.GetSensor(f.ctx, f.orgAdmin, "", id)
	if after.Config.CreatedEpoch <= before.Config.CreatedEpoch {
		t.Errorf("stamp %d not greater than %d", after.Config.CreatedEpoch, before.Config.CreatedEpoch)
	}
	if after.Config.SendIntervalSeconds != 1800 || after.Name != "S1" {
		t.Errorf("after = %+v", after)
	}
}

func TestUpdateSensorPartialFields(t *testing.T) {
	f := newFixture(t)
	mp := f.createPoint(t, "M1")
	id := f.addSensor(t, mp.ID, "S1")
	f.publisher.sent = nil

	name := "renamed"
	q := model.QuantityAcceleration
	f.clock.t = 2_000
	updated, err := f.sensors.UpdateSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), id, model.UpdateSensorRequest{Name: &name, Quantity: &q})
	if err != nil {
		t.Fatalf("UpdateSensor() error = %v", err)
	}
	s := updated.Sensors[0]
	if s.Name != "renamed" || s.Quantity != q || s.Config.CreatedEpoch != 1_000 || s.UpdatedEpoch != 2_000 {
		t.Errorf("sensor = %+v", s)
	}
	if len(f.publisher.sent) != 0 {
		t.Error("config pushed without a config change")
	}

	if _, err := f.sensors.UpdateSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), "missing", model.UpdateSensorRequest{Name: &name}); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing sensor: %v", err)
	}
}

func TestDeleteSensorKeepsSlot(t *testing.T) {
	f := newFixture(t)
	mp := f.createPoint(t, "M1")
	id := f.addSensor(t, mp.ID, "S1")

	f.clock.t = 3_000
	view, err := f.sensors.DeleteSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), id)
	if err != nil {
		t.Fatalf("DeleteSensor() error = %v", err)
	}
	if len(view.Sensors) != 0 {
		t.Errorf("deleted sensor visible: %+v", view.Sensors)
	}

	if _, err := f.sensors.GetSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), id); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("GetSensor() after delete = %v", err)
	}
	if _, err := f.sensors.GetSensor(f.ctx, f.orgAdmin, "", id); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("GetSensor() without measurement point after delete = %v", err)
	}

	raw := f.raw(t, mp.ID)
	if len(raw.Sensors) != 1 || raw.Sensors[0].DeletedEpoch == nil || *raw.Sensors[0].DeletedEpoch != 3_000 {
		t.Errorf("raw sensors = %+v", raw.Sensors)
	}
	if _, err := f.sensors.DeleteSensor(f.ctx, f.orgAdmin, mp.ID.Hex(), id); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second DeleteSensor() = %v", err)
	}
}

func TestGetSensorHidesFromOutsiders(t *testing.T) {
	f := newFixture(t)
	mp := f.createPoint(t, "M1")
	id := f.addSensor(t, mp.ID, "S1")

	if _, err := f.sensors.GetSensor(f.ctx, f.outsider, "", id); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("outsider search: %v", err)
	}
	if _, err := f.sensors.GetSensor(f.ctx, f.outsider, mp.ID.Hex(), id); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("outsider scoped: %v", err)
	}
	if _, err := f.sensors.GetSensor(f.ctx, f.appAdmin, "", id); err != nil {
		t.Errorf("app admin: %v", err)
	}
}

func TestDeviceConfigIsScopedToItsMeasurementPoint(t *testing.T) {
	f := newFixture(t)
	a := f.createPoint(t, "A")
	b := f.createPoint(t, "B")
	sa := f.addSensor(t, a.ID, "SA")
	sb := f.addSensor(t, b.ID, "SB")
	deviceA := &auth.DevicePrincipal{MeasurementPointID: a.ID}

	if _, err := f.sensors.GetConfig(f.ctx, deviceA, a.ID.Hex(), sa); err != nil {
		t.Fatalf("own GetConfig() error = %v", err)
	}
	if _, err := f.sensors.GetConfig(f.ctx, deviceA, b.ID.Hex(), sb); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("foreign GetConfig() = %v", err)
	}
	if _, err := f.sensors.UpdateConfig(f.ctx, deviceA, b.ID.Hex(), sb, validConfig()); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("foreign UpdateConfig() = %v", err)
	}
	if _, err := f.sensors.GetConfig(f.ctx, deviceA, a.ID.Hex(), sb); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("sensor of another point via own point = %v", err)
	}
	if raw := f.raw(t, b.ID); raw.Sensors[0].Config.CreatedEpoch != 1_000 {
		t.Error("foreign config was written")
	}
}

func TestDeviceUpdateConfigOverwrites(t *testing.T) {
	f := newFixture(t)
	mp := f.createPoint(t, "A")
	id := f.addSensor(t, mp.ID, "S")
	device := &auth.DevicePrincipal{MeasurementPointID: mp.ID}
	f.publisher.sent = nil

	cfg := validConfig()
	cfg.MeasureIntervalSeconds = 30
	cfg.CreatedEpoch = 999_999 // ignored; the server stamps
	f.clock.t = 2_000
	got, err := f.sensors.UpdateConfig(f.ctx, device, mp.ID.Hex(), id, cfg)
	if err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if got.CreatedEpoch != 2_000 || got.MeasureIntervalSeconds != 30 {
		t.Errorf("config = %+v", got)
	}

	read, err := f.sensors.GetConfig(f.ctx, device, mp.ID.Hex(), id)
	if err != nil || *read != *got {
		t.Errorf("GetConfig() = %+v, %v", read, err)
	}
	if len(f.publisher.sent) != 0 {
		t.Error("device-originated change was pushed back")
	}

	bad := validConfig()
	bad.SendIntervalSeconds = 10
	if _, err := f.sensors.UpdateConfig(f.ctx, device, mp.ID.Hex(), id, bad); !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("invalid config: %v", err)
	}
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	m1 := f.createPoint(t, "M1")

	cfg := model.SensorConfig{SendIntervalSeconds: 3600, MeasureIntervalSeconds: 300,
		TemperatureLimits: model.TemperatureLimits{Heating: 15, Cooling: 24}}
	updated, err := f.sensors.AddSensor(f.ctx, f.orgAdmin, m1.ID.Hex(), model.AddSensorRequest{
		Name: "S1", Quantity: model.QuantityTemperature, Config: cfg,
	})
	if err != nil || len(updated.Sensors) != 1 {
		t.Fatalf("AddSensor() = %+v, %v", updated, err)
	}

	cfg.MeasureIntervalSeconds = 3600
	_, err = f.sensors.AddSensor(f.ctx, f.orgAdmin, m1.ID.Hex(), model.AddSensorRequest{
		Name: "S2", Quantity: model.QuantityTemperature, Config: cfg,
	})
	if !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("equal intervals: %v", err)
	}
}
