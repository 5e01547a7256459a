package handler

import (
	"net/http"

	"sensorhub/internal/model"
	"sensorhub/internal/service"

	"github.com/gin-gonic/gin"
)

// SensorHandler serves the sensor endpoints for users and the config
// endpoints for devices.
type SensorHandler struct {
	sensors *service.SensorService
}

// NewSensorHandler creates a new SensorHandler
func NewSensorHandler(sensors *service.SensorService) *SensorHandler {
	return &SensorHandler{sensors: sensors}
}

// Add handles POST /api/measurement-points/:id/sensors
func (h *SensorHandler) Add(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var req model.AddSensorRequest
	if !bindJSON(c, &req) {
		return
	}

	mp, err := h.sensors.AddSensor(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Sensor added", mp)
}

// Get handles GET /api/measurement-points/:id/sensors/:sensorId and
// GET /api/sensors/:sensorId. The second form has no :id and searches every
// measurement point.
func (h *SensorHandler) Get(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	sensor, err := h.sensors.GetSensor(c.Request.Context(), caller, c.Param("id"), c.Param("sensorId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", sensor)
}

// Update handles PATCH /api/measurement-points/:id/sensors/:sensorId
func (h *SensorHandler) Update(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var req model.UpdateSensorRequest
	if !bindJSON(c, &req) {
		return
	}

	mp, err := h.sensors.UpdateSensor(c.Request.Context(), caller, c.Param("id"), c.Param("sensorId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Sensor updated", mp)
}

// Delete handles DELETE /api/measurement-points/:id/sensors/:sensorId
func (h *SensorHandler) Delete(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	mp, err := h.sensors.DeleteSensor(c.Request.Context(), caller, c.Param("id"), c.Param("sensorId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, "Sensor deleted", mp)
}

// GetConfig handles GET /api/device/measurement-points/:id/sensors/:sensorId/config
func (h *SensorHandler) GetConfig(c *gin.Context) {
	device, ok := deviceFrom(c)
	if !ok {
		return
	}
	cfg, err := h.sensors.GetConfig(c.Request.Context(), device, c.Param("id"), c.Param("sensorId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", cfg)
}

// PutConfig handles PUT /api/device/measurement-points/:id/sensors/:sensorId/config
func (h *SensorHandler) PutConfig(c *gin.Context) {
	device, ok := deviceFrom(c)
	if !ok {
		return
	}
	var cfg model.SensorConfig
	if !bindJSON(c, &cfg) {
		return
	}

	updated, err := h.sensors.UpdateConfig(c.Request.Context(), device, c.Param("id"), c.Param("sensorId"), cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Config updated", updated)
}
