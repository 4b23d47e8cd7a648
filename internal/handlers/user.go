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

// UserHandler handles user profile HTTP requests
type UserHandler struct {
	users  *services.UserService
	runner query.Runner
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users *services.UserService, runner query.Runner) *UserHandler {
	return &UserHandler{users: users, runner: runner}
}

// RegisterProfileRoutes registers user profile routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/users", h.GetUsers,
		middleware.AdvancedResults(h.runner, repositories.UserSpec, "query", "following", "followers"))
	g.GET("/users/me", h.GetMe)
	g.GET("/users/:id/profile", h.GetUser)
	g.GET("/users/radius/:city/:distance", h.GetNearbyUsers)
	g.PUT("/users", h.UpdateProfile)
	g.PUT("/users/photo/:type", h.UploadPhoto)
}

// GetUsers searches by name, lists a user's connections, or falls back to
// the advanced results page.
func (h *UserHandler) GetUsers(c echo.Context) error {
	ctx := c.Request().Context()
	caller := middleware.CurrentUser(c)

	if term := c.QueryParam("query"); term != "" {
		users, err := h.users.SearchUsers(ctx, caller.ID, term)
		if err != nil {
			return err
		}
		return listResponse(c, users)
	}

	field := ""
	switch {
	case c.QueryParam("following") != "":
		field = models.FieldFollowing
	case c.QueryParam("followers") != "":
		field = models.FieldFollowers
	}
	if field != "" {
		id := c.QueryParam("id")
		if id == "" {
			id = caller.ID.Hex()
		}
		users, err := h.users.GetConnections(ctx, id, field)
		if err != nil {
			return err
		}
		return listResponse(c, users)
	}

	results, ok := middleware.Results(c)
	if !ok {
		return models.NewInternalError(errNoResults)
	}
	return c.JSON(http.StatusOK, results)
}

// GetUser retrieves a user profile by ID
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.users.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return dataResponse(c, user)
}

// GetMe returns the authenticated user's profile
func (h *UserHandler) GetMe(c echo.Context) error {
	return dataResponse(c, middleware.CurrentUser(c))
}

// GetNearbyUsers lists users within a distance (miles) of a city
func (h *UserHandler) GetNearbyUsers(c echo.Context) error {
	users, err := h.users.GetNearbyUsers(c.Request().Context(),
		middleware.CurrentUser(c).ID, c.Param("city"), c.Param("distance"))
	if err != nil {
		return err
	}
	return listResponse(c, users)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateUser(c.Request().Context(), middleware.CurrentUser(c).ID, req)
	if err != nil {
		return err
	}
	return dataResponse(c, user)
}

// UploadPhoto stores the multipart "file" field as the caller's avatar or cover
func (h *UserHandler) UploadPhoto(c echo.Context) error {
	var upload *services.PhotoUpload
	if fh, err := c.FormFile("file"); err == nil {
		file, err := fh.Open()
		if err != nil {
			return models.NewInternalError(err)
		}
		defer file.Close()

		upload = &services.PhotoUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Content:     file,
		}
	}

	user, err := h.users.UploadPhoto(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("type"), upload)
	if err != nil {
		return err
	}
	return dataResponse(c, user)
}

func dataResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

func listResponse[T any](c echo.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(items), "data": items})
}
