package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/pkg/logger"
)

const defaultLogPageSize = 50

// LogHandler exposes the processing log and the clear-logs action.
type LogHandler struct {
	logRepo   out.ProcessingLogRepository
	debugRepo out.DebugContentRepository
}

// NewLogHandler creates a new log handler.
func NewLogHandler(logRepo out.ProcessingLogRepository, debugRepo out.DebugContentRepository) *LogHandler {
	return &LogHandler{logRepo: logRepo, debugRepo: debugRepo}
}

// Register registers log routes.
func (h *LogHandler) Register(router fiber.Router) {
	logs := router.Group("/logs")
	logs.Get("/", h.List)
	logs.Delete("/", h.Clear)
}

// List returns the user's log entries, newest first.
func (h *LogHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", defaultLogPageSize)
	if limit <= 0 || limit > 200 {
		limit = defaultLogPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.logRepo.ListByUser(c.Context(), userID, limit, offset)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"logs": entries, "limit": limit, "offset": offset})
}

// Clear deletes the user's entire processing log. This intentionally
// re-opens those messages for reprocessing on the next sweep.
func (h *LogHandler) Clear(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	removed, err := h.logRepo.ClearForUser(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}

	if h.debugRepo != nil {
		if err := h.debugRepo.DeleteForUser(c.Context(), userID); err != nil {
			logger.Warn("[LogHandler.Clear] failed to clear debug content for %s: %v", userID, err)
		}
	}

	logger.Info("[LogHandler.Clear] user=%s removed=%d", userID, removed)
	return c.JSON(fiber.Map{"removed": removed})
}
