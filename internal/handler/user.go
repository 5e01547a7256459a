package handler

import (
	"net/http"

	"sensorhub/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new User handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Get handles GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	user, err := h.userService.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", user)
}

// Delete handles DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	caller, ok := userFrom(c)
	if !ok {
		return
	}
	if err := h.userService.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, "User deleted", nil)
}
