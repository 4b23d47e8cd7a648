package handlers

import (
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles like-related HTTP requests
type LikeHandler struct {
	posts *services.PostService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(posts *services.PostService) *LikeHandler {
	return &LikeHandler{posts: posts}
}

// RegisterLikeRoutes registers like routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.PUT("/posts/:id/like", h.ToggleLike)
}

// ToggleLike likes a post, or unlikes it when already liked
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	post, err := h.posts.ToggleLike(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return dataResponse(c, post)
}
