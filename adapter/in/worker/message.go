// Package worker consumes pipeline jobs from the queue and runs them on a
// bounded worker pool.
package worker

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

const (
	JobDiscoverUser JobType = "discovery.user"
	JobEmailProcess JobType = "email.process"
)

// Message is one unit of work flowing through the pool.
type Message struct {
	ID        string         `json:"id"`
	Type      JobType        `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

// NewMessage creates a message for a job type.
func NewMessage(jobType JobType, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}
