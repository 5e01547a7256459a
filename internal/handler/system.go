package handler

import (
	"context"
	"net/http"
	"time"

	"sensorhub/internal/apperr"
	"sensorhub/internal/version"

	"github.com/gin-gonic/gin"
)

// SystemHandler serves liveness and build information.
type SystemHandler struct {
	// ping checks the store; nil when the store has nothing to reach.
	ping func(ctx context.Context) error
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(ping func(ctx context.Context) error) *SystemHandler {
	return &SystemHandler{ping: ping}
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			respondError(c, apperr.Wrap(err, "store unreachable"))
			return
		}
	}
	respond(c, http.StatusOK, "ok", nil)
}

// Version handles GET /version
func (h *SystemHandler) Version(c *gin.Context) {
	respond(c, http.StatusOK, "", version.Get())
}
