package domain

import (
	"time"

	"github.com/google/uuid"
)

// LogStatus is the outcome recorded for one (user, rule, message) attempt.
type LogStatus string

const (
	StatusPending   LogStatus = "pending"
	StatusProcessed LogStatus = "processed"
	StatusSkipped   LogStatus = "skipped"
	StatusFailed    LogStatus = "failed"
)

// ToolCallResult records one executed tool call, 1:1 with what the model
// emitted. Never synthesized for tools that were not invoked.
type ToolCallResult struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ProcessingLogEntry is the append-only audit and dedup record. The tuple
// (user, rule, gmail message id) is unique; a user-level skip carries a NULL
// rule id, UserLevel true, and suppresses all per-rule attempts for that
// message. A NULL rule id with UserLevel false is a per-rule row whose rule
// was deleted; it stays visible as history but claims nothing.
//
// Content fields (Subject/From/Snippet/AIResponse) are populated only when
// the user's debug flag is on; the default configuration stores no email
// content. Error always carries the reason string regardless of the flag.
type ProcessingLogEntry struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	UserID         string           `db:"user_id" json:"userId"`
	RuleID         *uuid.UUID       `db:"rule_id" json:"ruleId,omitempty"`
	UserLevel      bool             `db:"is_user_level" json:"userLevel,omitempty"`
	GmailMessageID string           `db:"gmail_message_id" json:"gmailMessageId"`
	Subject        *string          `db:"email_subject" json:"emailSubject,omitempty"`
	From           *string          `db:"email_from" json:"emailFrom,omitempty"`
	Snippet        *string          `db:"email_snippet" json:"emailSnippet,omitempty"`
	AIResponse     *string          `db:"ai_response" json:"aiResponse,omitempty"`
	Status         LogStatus        `db:"status" json:"status"`
	Error          *string          `db:"error" json:"error,omitempty"`
	Actions        []ToolCallResult `db:"-" json:"actionsExecuted,omitempty"`
	ProcessedAt    *time.Time       `db:"processed_at" json:"processedAt,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}
