package handler

import (
	"net/http"

	"sensorhub/internal/model"
	"sensorhub/internal/service"

	"github.com/gin-gonic/gin"
)

// OrgHandler handles organisation endpoints
type OrgHandler struct {
	orgs   *service.OrgService
	points *service.MeasurementPointService
}

// NewOrgHandler creates a new OrgHandler
func NewOrgHandler(orgs *service.OrgService, points *service.MeasurementPointService) *OrgHandler {
	return &OrgHandler{orgs: orgs, points: points}
}

// Create handles POST /api/organisations
func (h *OrgHandler) Create(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var req model.CreateOrganisationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.orgs.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Organisation created", org)
}

// List handles GET /api/organisations
func (h *OrgHandler) List(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var q model.ListQuery
	if !bindQuery(c, &q) {
		return
	}

	page, err := h.orgs.ListMine(c.Request.Context(), caller, q)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", page)
}

// Get handles GET /api/organisations/:orgId
func (h *OrgHandler) Get(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	org, err := h.orgs.Get(c.Request.Context(), caller, c.Param("orgId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", org)
}

// Update handles PATCH /api/organisations/:orgId
func (h *OrgHandler) Update(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var req model.UpdateOrganisationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.orgs.Update(c.Request.Context(), caller, c.Param("orgId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Organisation updated", org)
}

// Delete handles DELETE /api/organisations/:orgId
func (h *OrgHandler) Delete(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	if err := h.orgs.Delete(c.Request.Context(), caller, c.Param("orgId")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, "Organisation deleted", nil)
}

// ListMeasurementPoints handles GET /api/organisations/:orgId/measurement-points
func (h *OrgHandler) ListMeasurementPoints(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	var q model.ListQuery
	if !bindQuery(c, &q) {
		return
	}

	page, err := h.points.List(c.Request.Context(), caller, c.Param("orgId"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", page)
}
