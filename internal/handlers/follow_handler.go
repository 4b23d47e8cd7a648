package handlers

import (
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow-related HTTP requests
type FollowHandler struct {
	users *services.UserService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(users *services.UserService) *FollowHandler {
	return &FollowHandler{users: users}
}

// RegisterFollowRoutes registers follow routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.PUT("/users/:id/follow", h.ToggleFollow)
}

// ToggleFollow follows the user, or unfollows when already following, and
// returns the caller's updated profile.
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	user, err := h.users.ToggleFollow(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return dataResponse(c, user)
}
