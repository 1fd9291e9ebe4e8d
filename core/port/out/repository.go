// Package out defines outbound ports consumed by the core services.
package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pretzelai/email-use/core/domain"
)

// CredentialRepository persists mailbox OAuth credentials.
type CredentialRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.MailboxCredential, error)
	ListConnected(ctx context.Context) ([]*domain.MailboxCredential, error)
	Upsert(ctx context.Context, cred *domain.MailboxCredential) error
	UpdateTokens(ctx context.Context, userID, accessToken string, expiresAt time.Time) error
	MarkDisconnected(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}

// RuleRepository persists user-authored processing rules.
type RuleRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Rule, error)
	ListDiscoverable(ctx context.Context, userID string) ([]*domain.Rule, error)
	Create(ctx context.Context, rule *domain.Rule) error
	Update(ctx context.Context, rule *domain.Rule) error
	SetPublished(ctx context.Context, id uuid.UUID, published bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProcessingLogRepository is the dedup ledger and audit trail. Reserve is an
// atomic conditional insert: the caller that wins the row proceeds to the AI
// step, the loser aborts before any model call or mailbox mutation.
type ProcessingLogRepository interface {
	// Reserve inserts a pending row for (userID, ruleID, gmailMessageID) and
	// reports whether this caller won it. ruleID nil means a user-level entry.
	Reserve(ctx context.Context, userID string, ruleID *uuid.UUID, gmailMessageID string) (*domain.ProcessingLogEntry, bool, error)
	// Finalize settles a reserved row with its outcome.
	Finalize(ctx context.Context, entry *domain.ProcessingLogEntry) error
	// IsProcessed reports whether an entry exists for the message: the given
	// rule's entry, or with ruleID nil a genuine user-level entry. Per-rule
	// entries whose rule was since deleted match neither form.
	IsProcessed(ctx context.Context, userID string, ruleID *uuid.UUID, gmailMessageID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.ProcessingLogEntry, error)
	// ClearForUser removes a user's entries, deliberately re-opening those
	// messages for reprocessing.
	ClearForUser(ctx context.Context, userID string) (int64, error)
}

// SkipFilterRepository persists user deny-list entries.
type SkipFilterRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*domain.SkipFilterEntry, error)
	Create(ctx context.Context, entry *domain.SkipFilterEntry) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

// SettingsRepository persists per-user pipeline settings.
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (*domain.UserSettings, error)
	Upsert(ctx context.Context, settings *domain.UserSettings) error
}

// DebugContentRepository stores opt-in raw email content out of band of the
// relational log, with a retention TTL.
type DebugContentRepository interface {
	Save(ctx context.Context, userID string, logID uuid.UUID, email *domain.EmailMessage, aiResponse string) error
	Get(ctx context.Context, logID uuid.UUID) (*domain.EmailMessage, string, error)
	DeleteForUser(ctx context.Context, userID string) error
}
