package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// SettingsHandler manages per-user pipeline settings.
type SettingsHandler struct {
	settingsRepo out.SettingsRepository
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settingsRepo out.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settingsRepo: settingsRepo}
}

// Register registers settings routes.
func (h *SettingsHandler) Register(router fiber.Router) {
	settings := router.Group("/settings")
	settings.Get("/", h.Get)
	settings.Patch("/", h.Update)
}

// Get returns the user's settings. Debug mode defaults to off.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	settings, err := h.settingsRepo.Get(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(settings)
}

type settingsRequest struct {
	DebugMode *bool `json:"debugMode"`
}

// Update toggles the debug-content-retention flag.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.DebugMode == nil {
		return badRequest(c, "debugMode is required")
	}

	settings := &domain.UserSettings{
		UserID:    userID,
		DebugMode: *req.DebugMode,
		UpdatedAt: time.Now(),
	}
	if err := h.settingsRepo.Upsert(c.Context(), settings); err != nil {
		return internalError(c, err)
	}
	return c.JSON(settings)
}
