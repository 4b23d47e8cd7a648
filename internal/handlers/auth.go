package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles registration and sign in
type AuthHandler struct {
	users        *services.UserService
	cookieTTL    time.Duration
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. Issued tokens are also set as a
// cookie living cookieTTL.
func NewAuthHandler(users *services.UserService, cookieTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{users: users, cookieTTL: cookieTTL, secureCookie: secureCookie}
}

// RegisterAuthRoutes registers the public account routes behind limit.
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group, limit echo.MiddlewareFunc) {
	g.POST("/users/register", h.Register, limit)
	g.POST("/users/login", h.Login, limit)
	if h.users.FirebaseEnabled() {
		g.POST("/users/firebase-login", h.FirebaseLogin, limit)
	}
}

// Register handles local user registration with email and password
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, err := h.users.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return h.sendToken(c, token)
}

// Login handles email and password sign in
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, err := h.users.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return h.sendToken(c, token)
}

// FirebaseLogin exchanges a Firebase ID token for an API token
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req models.FirebaseLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, err := h.users.FirebaseLogin(c.Request().Context(), req.IDToken)
	if err != nil {
		return err
	}
	return h.sendToken(c, token)
}

func (h *AuthHandler) sendToken(c echo.Context, token string) error {
	c.SetCookie(&http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookieTTL),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "token": token})
}
