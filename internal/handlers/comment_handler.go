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

// CommentHandler handles comment-related HTTP requests
type CommentHandler struct {
	comments *services.CommentService
	runner   query.Runner
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(comments *services.CommentService, runner query.Runner) *CommentHandler {
	return &CommentHandler{comments: comments, runner: runner}
}

// RegisterCommentRoutes registers comment routes. GET and POST on
// /comments/:id address a post; PUT and DELETE address a comment.
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/comments", h.GetComments, middleware.AdvancedResults(h.runner, repositories.CommentSpec))
	g.GET("/comments/:id", h.GetCommentsByPostID)
	g.POST("/comments/:id", h.CreateComment)
	g.PUT("/comments/:id", h.UpdateComment)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// GetComments returns the advanced results page over all comments
func (h *CommentHandler) GetComments(c echo.Context) error {
	results, ok := middleware.Results(c)
	if !ok {
		return models.NewInternalError(errNoResults)
	}
	return c.JSON(http.StatusOK, results)
}

// GetCommentsByPostID retrieves all comments for a post
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	comments, err := h.comments.ListByPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return listResponse(c, comments)
}

// CreateComment adds a comment to a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	comment, err := h.comments.CreateComment(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id"), req)
	if err != nil {
		return err
	}
	return dataResponse(c, comment)
}

// UpdateComment updates an existing comment
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	var req models.CommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	comment, err := h.comments.UpdateComment(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id"), req)
	if err != nil {
		return err
	}
	return dataResponse(c, comment)
}

// DeleteComment deletes a comment
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	if err := h.comments.DeleteComment(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id")); err != nil {
		return err
	}
	return dataResponse(c, echo.Map{})
}
