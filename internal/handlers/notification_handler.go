package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
	users         *services.UserService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService, users *services.UserService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, users: users}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor *models.UserSummary `json:"actor,omitempty"`
}

func (h *NotificationHandler) enrichNotifications(c echo.Context, notifications []models.Notification) []EnrichedNotification {
	enriched := make([]EnrichedNotification, len(notifications))
	actors := make(map[string]*models.UserSummary)

	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		actor, ok := actors[n.ActorID]
		if !ok {
			if user, err := h.users.GetUser(c.Request().Context(), n.ActorID); err == nil {
				actor = &models.UserSummary{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
			}
			actors[n.ActorID] = actor
		}
		enriched[i].Actor = actor
	}
	return enriched
}

// GetNotifications returns paginated notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	notifications, total, err := h.notifications.List(c.Request().Context(), middleware.CurrentUser(c).ID, page, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"count":      len(notifications),
		"total":      total,
		"pagination": query.Paginate(page, limit, total),
		"data":       h.enrichNotifications(c, notifications),
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	caller := middleware.CurrentUser(c)

	grouped, err := h.notifications.Grouped(ctx, caller.ID)
	if err != nil {
		return err
	}
	unreadCount, err := h.notifications.UnreadCount(ctx, caller.ID)
	if err != nil {
		return err
	}

	return dataResponse(c, echo.Map{
		"notifications": echo.Map{
			"today":     h.enrichNotifications(c, grouped.Today),
			"yesterday": h.enrichNotifications(c, grouped.Yesterday),
			"thisWeek":  h.enrichNotifications(c, grouped.ThisWeek),
			"older":     h.enrichNotifications(c, grouped.Older),
		},
		"unreadCount": unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.notifications.UnreadCount(c.Request().Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return dataResponse(c, echo.Map{"count": count})
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	if err := h.notifications.MarkRead(c.Request().Context(), middleware.CurrentUser(c).ID, c.Param("id")); err != nil {
		return err
	}
	return dataResponse(c, echo.Map{})
}

// MarkAllAsRead marks all of the caller's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	if err := h.notifications.MarkAllRead(c.Request().Context(), middleware.CurrentUser(c).ID); err != nil {
		return err
	}
	return dataResponse(c, echo.Map{})
}
