package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts  *services.PostService
	runner query.Runner
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts *services.PostService, runner query.Runner) *PostHandler {
	return &PostHandler{posts: posts, runner: runner}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetPosts, middleware.AdvancedResults(h.runner, repositories.PostSpec, "following"))
	g.GET("/posts/:id", h.GetPost)
	g.POST("/posts", h.CreatePost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// GetPosts returns the caller's feed with ?following=true, otherwise the
// advanced results page.
func (h *PostHandler) GetPosts(c echo.Context) error {
	if c.QueryParam("following") != "" {
		posts, err := h.posts.ListFeed(c.Request().Context(), middleware.CurrentUser(c))
		if err != nil {
			return err
		}
		return listResponse(c, posts)
	}

	results, ok := middleware.Results(c)
	if !ok {
		return models.NewInternalError(errNoResults)
	}
	return c.JSON(http.StatusOK, results)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.posts.GetPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return dataResponse(c, post)
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.PostRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	post, err := h.posts.CreatePost(c.Request().Context(), middleware.CurrentUser(c).ID, req)
	if err != nil {
		return err
	}
	return dataResponse(c, post)
}

// UpdatePost updates an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	var req models.PostRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	post, err := h.posts.UpdatePost(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id"), req)
	if err != nil {
		return err
	}
	return dataResponse(c, post)
}

// DeletePost deletes a post and its comments
func (h *PostHandler) DeletePost(c echo.Context) error {
	if err := h.posts.DeletePost(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id")); err != nil {
		return err
	}
	return dataResponse(c, echo.Map{})
}
