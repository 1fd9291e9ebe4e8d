package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/core/service/discovery"
	"github.com/pretzelai/email-use/pkg/logger"
)

// Handler dispatches jobs to the discovery service and the email
// processor.
type Handler struct {
	discovery *discovery.Service
	processor *discovery.Processor
}

// NewHandler creates a new Handler.
func NewHandler(discoverySvc *discovery.Service, processor *discovery.Processor) *Handler {
	return &Handler{discovery: discoverySvc, processor: processor}
}

// Process runs one job. A needs_reauth discovery result is terminal for
// that user and returns nil so the pool does not retry it.
func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobDiscoverUser:
		payload, err := ParsePayload[out.DiscoveryJob](msg)
		if err != nil {
			return fmt.Errorf("invalid discovery payload: %w", err)
		}
		result, err := h.discovery.DiscoverForUser(ctx, payload.UserID)
		if err != nil {
			return err
		}
		if result.Status == discovery.StatusNeedsReauth {
			logger.Warn("[Worker] user %s needs reauth: %s", result.UserID, result.Reason)
		}
		return nil

	case JobEmailProcess:
		payload, err := ParsePayload[out.EmailProcessJob](msg)
		if err != nil {
			return fmt.Errorf("invalid email process payload: %w", err)
		}
		_, err = h.processor.ProcessEmail(ctx, payload)
		return err

	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

// ParsePayload decodes a message payload into a typed struct.
func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
