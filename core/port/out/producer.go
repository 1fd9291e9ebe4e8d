package out

import (
	"context"

	"github.com/google/uuid"

	"github.com/pretzelai/email-use/core/domain"
)

// DiscoveryJob asks the worker to run one user's discovery scan.
type DiscoveryJob struct {
	UserID string `json:"user_id"`
}

// EmailProcessJob asks the worker to process one discovered email against a
// fixed set of rules. The email snapshot rides in the payload so the worker
// does not re-fetch it.
type EmailProcessJob struct {
	UserID      string               `json:"user_id"`
	AccessToken string               `json:"access_token"`
	Email       *domain.EmailMessage `json:"email"`
	RuleIDs     []uuid.UUID          `json:"rule_ids"`
	DebugMode   bool                 `json:"debug_mode"`
}

// JobProducer enqueues pipeline jobs onto the task queue.
type JobProducer interface {
	PublishDiscovery(ctx context.Context, job *DiscoveryJob) error
	PublishEmailProcess(ctx context.Context, job *EmailProcessJob) error
}
