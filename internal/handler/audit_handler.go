package handler

import (
	"strconv"

	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/gofiber/fiber/v3"
)

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store port.Store
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(store port.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

// Register sets up audit routes on an admin-only group.
func (h *AuditHandler) Register(admin fiber.Router) {
	admin.Get("/audit", h.List)
}

// defaultAuditLimit caps the listing when the caller asks for nothing else.
const defaultAuditLimit = 100

// List returns audit entries, newest first, with optional filtering.
func (h *AuditHandler) List(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultAuditLimit)))
	if err != nil || limit < 0 {
		// A malformed or negative limit falls back to the default rather
		// than returning the unbounded table.
		limit = defaultAuditLimit
	}
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"logs": logs, "count": len(logs)})
}
