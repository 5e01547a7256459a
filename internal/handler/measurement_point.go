package handler

import (
	"net/http"

	"sensorhub/internal/model"
	"sensorhub/internal/service"

	"github.com/gin-gonic/gin"
)

// MeasurementPointHandler handles measurement point endpoints
type MeasurementPointHandler struct {
	points *service.MeasurementPointService
}

// NewMeasurementPointHandler creates a new MeasurementPointHandler
func NewMeasurementPointHandler(points *service.MeasurementPointService) *MeasurementPointHandler {
	return &MeasurementPointHandler{points: points}
}

// Create handles POST /api/measurement-points. The response carries the
// device token in plain text; it is not retrievable later.
func (h *MeasurementPointHandler) Create(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var req model.CreateMeasurementPointRequest
	if !bindJSON(c, &req) {
		return
	}

	mp, err := h.points.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Measurement point created", mp)
}

// Get handles GET /api/measurement-points/:id
func (h *MeasurementPointHandler) Get(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	mp, err := h.points.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", mp)
}

// Update handles PATCH /api/measurement-points/:id
func (h *MeasurementPointHandler) Update(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var req model.UpdateMeasurementPointRequest
	if !bindJSON(c, &req) {
		return
	}

	mp, err := h.points.Update(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Measurement point updated", mp)
}

// Delete handles DELETE /api/measurement-points/:id. The owning
// organisation is taken from the query string, or from a JSON body.
func (h *MeasurementPointHandler) Delete(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var req model.DeleteMeasurementPointRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	} else if !bindQuery(c, &req) {
		return
	}

	mp, err := h.points.Delete(c.Request.Context(), caller, c.Param("id"), req.OrganisationID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, "Measurement point deleted", mp)
}

// RotateDeviceToken handles POST /api/measurement-points/:id/device-token
func (h *MeasurementPointHandler) RotateDeviceToken(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	mp, err := h.points.RotateDeviceToken(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Device token rotated", mp)
}
