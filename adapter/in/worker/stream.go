package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/pretzelai/email-use/adapter/out/messaging"
)

// StreamHandler bridges the Redis Streams consumer to the worker pool:
// each message read off a stream becomes a pool job. The consumer acks
// on submit; delivery beyond that point is the pool's retry/DLQ concern.
type StreamHandler struct {
	pool *Pool
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(pool *Pool) *StreamHandler {
	return &StreamHandler{pool: pool}
}

// Handle implements messaging.JobHandler.
func (h *StreamHandler) Handle(_ context.Context, stream string, data []byte) error {
	var jobType JobType
	switch stream {
	case messaging.StreamDiscovery:
		jobType = JobDiscoverUser
	case messaging.StreamEmailProcess:
		jobType = JobEmailProcess
	default:
		return fmt.Errorf("unknown stream: %s", stream)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid payload on %s: %w", stream, err)
	}

	if !h.pool.Submit(NewMessage(jobType, payload)) {
		return fmt.Errorf("worker pool not accepting jobs")
	}
	return nil
}

var _ messaging.JobHandler = (*StreamHandler)(nil)
