package handler

import (
	"errors"
	"strings"

	"github.com/cmdgate/cmdgate/internal/middleware"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/cmdgate/cmdgate/internal/service"
	"github.com/gofiber/fiber/v3"
)

// CommandHandler handles command submission and history.
type CommandHandler struct {
	gateway *service.GatewayService
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(gateway *service.GatewayService) *CommandHandler {
	return &CommandHandler{gateway: gateway}
}

// Register sets up command routes on a protected group.
func (h *CommandHandler) Register(api fiber.Router) {
	commands := api.Group("/commands")
	commands.Post("/", h.Submit)
	commands.Get("/", h.History)
}

// Submit runs a command through the policy gateway.
func (h *CommandHandler) Submit(c fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		CommandText string `json:"command_text"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	body.CommandText = strings.TrimSpace(body.CommandText)
	if body.CommandText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "command_text is required"})
	}

	outcome, err := h.gateway.Submit(c.Context(), user, body.CommandText)
	if errors.Is(err, port.ErrInsufficientCredits) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "not enough credits"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "submission failed"})
	}

	return c.JSON(outcome)
}

// History returns the user's own command records, newest first.
func (h *CommandHandler) History(c fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	commands, err := h.gateway.History(c.Context(), user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"commands": commands, "count": len(commands)})
}
