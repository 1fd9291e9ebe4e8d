package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/core/service/auth"
	"github.com/pretzelai/email-use/pkg/logger"
)

// GmailHandler handles the mailbox connection lifecycle and the manual
// discovery trigger.
type GmailHandler struct {
	oauth    *auth.OAuthService
	producer out.JobProducer
}

// NewGmailHandler creates a new gmail handler.
func NewGmailHandler(oauth *auth.OAuthService, producer out.JobProducer) *GmailHandler {
	return &GmailHandler{oauth: oauth, producer: producer}
}

// Register registers gmail routes.
func (h *GmailHandler) Register(router fiber.Router) {
	gmail := router.Group("/gmail")
	gmail.Get("/connect", h.Connect)
	gmail.Get("/callback", h.Callback)
	gmail.Get("/status", h.Status)
	gmail.Post("/disconnect", h.Disconnect)
	gmail.Post("/trigger-discovery", h.TriggerDiscovery)
}

// Connect returns the Google consent URL. The user id rides in the
// OAuth state parameter and comes back on the callback.
func (h *GmailHandler) Connect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"authUrl": h.oauth.AuthURL(userID)})
}

// Callback completes the OAuth exchange and stores the credential.
func (h *GmailHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return badRequest(c, "code and state are required")
	}

	cred, err := h.oauth.HandleCallback(c.Context(), state, code)
	if err != nil {
		logger.Error("[GmailHandler.Callback] exchange failed: %v", err)
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"connected":   true,
		"email":       cred.Email,
		"connectedAt": cred.ConnectedAt,
	})
}

// Status reports whether a mailbox is connected.
func (h *GmailHandler) Status(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	cred, err := h.oauth.Status(c.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(fiber.Map{"connected": false})
		}
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"connected":   cred.IsConnected,
		"email":       cred.Email,
		"connectedAt": cred.ConnectedAt,
	})
}

// Disconnect marks the mailbox as disconnected. Tokens stay on record
// but no further discovery runs for the user.
func (h *GmailHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.oauth.Disconnect(c.Context(), userID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"connected": false})
}

// TriggerDiscovery enqueues a one-off discovery scan for the user. The
// job runs the same path as the scheduled sweep.
func (h *GmailHandler) TriggerDiscovery(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.producer.PublishDiscovery(c.Context(), &out.DiscoveryJob{UserID: userID}); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
}
