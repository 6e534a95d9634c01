package handler

import (
	"errors"
	"strings"

	"github.com/cmdgate/cmdgate/internal/middleware"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/cmdgate/cmdgate/internal/service"
	"github.com/gofiber/fiber/v3"
)

// AuthHandler handles registration and identity endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register sets up the public registration route.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/register", h.RegisterUser)
}

// RegisterProtected sets up identity routes behind authentication.
func (h *AuthHandler) RegisterProtected(api fiber.Router) {
	api.Get("/me", h.Me)
}

// RegisterUser creates a new member and returns the one-time API key.
func (h *AuthHandler) RegisterUser(c fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Credits  int    `json:"credits"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username is required"})
	}

	user, apiKey, err := h.auth.Register(c.Context(), body.Username, body.Credits)
	if errors.Is(err, port.ErrUsernameTaken) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "username already taken"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "registration failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"username": user.Username,
		"api_key":  apiKey,
		"credits":  user.Credits,
		"message":  "Copy this API key now, you won't see it again",
	})
}

// Me returns the authenticated user's identity and balance.
func (h *AuthHandler) Me(c fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	return c.JSON(fiber.Map{
		"username": user.Username,
		"role":     user.Role,
		"credits":  user.Credits,
	})
}
