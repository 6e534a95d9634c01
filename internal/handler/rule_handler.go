package handler

import (
	"errors"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/middleware"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/cmdgate/cmdgate/internal/service"
	"github.com/gofiber/fiber/v3"
)

// RuleHandler handles policy rule administration.
type RuleHandler struct {
	policy *service.PolicyService
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(policy *service.PolicyService) *RuleHandler {
	return &RuleHandler{policy: policy}
}

// Register sets up rule routes on an admin-only group.
func (h *RuleHandler) Register(admin fiber.Router) {
	rules := admin.Group("/rules")
	rules.Get("/", h.List)
	rules.Post("/", h.Create)
}

// List returns all rules in creation order.
func (h *RuleHandler) List(c fiber.Ctx) error {
	rules, err := h.policy.ListRules(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"rules": rules, "count": len(rules)})
}

// Create validates and appends a new rule.
func (h *RuleHandler) Create(c fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Pattern     string `json:"pattern"`
		Action      string `json:"action"`
		Description string `json:"description"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	rule, err := h.policy.AddRule(c.Context(), user.ID, body.Pattern, domain.Action(body.Action), body.Description)
	if errors.Is(err, port.ErrInvalidPattern) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid regex pattern"})
	}
	if errors.Is(err, port.ErrInvalidAction) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid rule action"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}
