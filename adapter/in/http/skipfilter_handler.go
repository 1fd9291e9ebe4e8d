package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// SkipFilterHandler manages the user's sender deny-list.
type SkipFilterHandler struct {
	skipRepo out.SkipFilterRepository
}

// NewSkipFilterHandler creates a new skip filter handler.
func NewSkipFilterHandler(skipRepo out.SkipFilterRepository) *SkipFilterHandler {
	return &SkipFilterHandler{skipRepo: skipRepo}
}

// Register registers skip filter routes.
func (h *SkipFilterHandler) Register(router fiber.Router) {
	filters := router.Group("/skip-filters")
	filters.Get("/", h.List)
	filters.Post("/", h.Create)
	filters.Delete("/:id", h.Delete)
}

// List returns the user's deny-list entries.
func (h *SkipFilterHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	entries, err := h.skipRepo.ListByUser(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"filters": entries})
}

type skipFilterRequest struct {
	FilterType string `json:"filterType"`
	Value      string `json:"value"`
}

// Create adds a deny-list entry. The value is normalized to lowercase;
// a duplicate (type, value) pair returns 409.
func (h *SkipFilterHandler) Create(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req skipFilterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	filterType := domain.SkipFilterType(req.FilterType)
	if filterType != domain.SkipFilterEmail && filterType != domain.SkipFilterDomain {
		return badRequest(c, "filterType must be email or domain")
	}
	value := domain.NormalizeFilterValue(req.Value)
	if value == "" {
		return badRequest(c, "value is required")
	}

	entry := &domain.SkipFilterEntry{
		ID:         uuid.New(),
		UserID:     userID,
		FilterType: filterType,
		Value:      value,
		CreatedAt:  time.Now(),
	}

	if err := h.skipRepo.Create(c.Context(), entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateEntry) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "filter already exists"})
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// Delete removes a deny-list entry.
func (h *SkipFilterHandler) Delete(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid filter id")
	}

	if err := h.skipRepo.Delete(c.Context(), userID, id); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}
