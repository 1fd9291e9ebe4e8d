package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// LogAdapter implements out.ProcessingLogRepository. It is the dedup ledger:
// Reserve races on the partial unique indexes, so only one worker per
// (user, rule, message) tuple ever proceeds to the AI step.
type LogAdapter struct {
	db *sqlx.DB
}

// NewLogAdapter creates a new LogAdapter.
func NewLogAdapter(db *sqlx.DB) *LogAdapter {
	return &LogAdapter{db: db}
}

// Reserve atomically claims the tuple with a pending row. The second return
// is false when another worker (or an earlier run) already holds it.
func (a *LogAdapter) Reserve(ctx context.Context, userID string, ruleID *uuid.UUID, gmailMessageID string) (*domain.ProcessingLogEntry, bool, error) {
	entry := &domain.ProcessingLogEntry{
		ID:             uuid.New(),
		UserID:         userID,
		RuleID:         ruleID,
		UserLevel:      ruleID == nil,
		GmailMessageID: gmailMessageID,
		Status:         domain.StatusPending,
		CreatedAt:      time.Now(),
	}

	query := `
		INSERT INTO email_logs (id, user_id, rule_id, is_user_level, gmail_message_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err := a.db.GetContext(ctx, &id, query,
		entry.ID, entry.UserID, entry.RuleID, entry.UserLevel, entry.GmailMessageID, entry.Status, entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race: a row for this tuple already exists.
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry, true, nil
}

// Finalize settles a reserved row with its outcome.
func (a *LogAdapter) Finalize(ctx context.Context, entry *domain.ProcessingLogEntry) error {
	var actions any
	if entry.Actions != nil {
		data, err := json.Marshal(entry.Actions)
		if err != nil {
			return err
		}
		actions = data
	}

	query := `
		UPDATE email_logs SET
			email_subject = $2, email_from = $3, email_snippet = $4,
			ai_response = $5, status = $6, error = $7,
			actions_executed = $8, processed_at = $9
		WHERE id = $1`

	_, err := a.db.ExecContext(ctx, query,
		entry.ID, entry.Subject, entry.From, entry.Snippet,
		entry.AIResponse, entry.Status, entry.Error,
		actions, entry.ProcessedAt)
	return err
}

// IsProcessed reports whether any entry exists for the tuple. ruleID nil
// matches only a genuine user-level entry, never a per-rule row whose rule
// was since deleted.
func (a *LogAdapter) IsProcessed(ctx context.Context, userID string, ruleID *uuid.UUID, gmailMessageID string) (bool, error) {
	var exists bool
	var err error
	if ruleID == nil {
		query := `
			SELECT EXISTS (
				SELECT 1 FROM email_logs
				WHERE user_id = $1 AND gmail_message_id = $2 AND is_user_level
			)`
		err = a.db.GetContext(ctx, &exists, query, userID, gmailMessageID)
	} else {
		query := `
			SELECT EXISTS (
				SELECT 1 FROM email_logs
				WHERE user_id = $1 AND rule_id = $2 AND gmail_message_id = $3
			)`
		err = a.db.GetContext(ctx, &exists, query, userID, ruleID, gmailMessageID)
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListByUser returns a page of log entries, newest first.
func (a *LogAdapter) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.ProcessingLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	type logRow struct {
		domain.ProcessingLogEntry
		ActionsRaw []byte `db:"actions_executed"`
	}

	var rows []logRow
	query := `
		SELECT id, user_id, rule_id, is_user_level, gmail_message_id,
		       email_subject, email_from, email_snippet, ai_response,
		       status, error, actions_executed, processed_at, created_at
		FROM email_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := a.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, err
	}

	entries := make([]*domain.ProcessingLogEntry, len(rows))
	for i := range rows {
		entry := rows[i].ProcessingLogEntry
		if len(rows[i].ActionsRaw) > 0 {
			// Stored results are best-effort for display; a decode failure
			// leaves Actions empty rather than failing the listing.
			_ = json.Unmarshal(rows[i].ActionsRaw, &entry.Actions)
		}
		entries[i] = &entry
	}
	return entries, nil
}

// ClearForUser removes a user's entries. This deliberately re-opens those
// messages for reprocessing on the next scan.
func (a *LogAdapter) ClearForUser(ctx context.Context, userID string) (int64, error) {
	result, err := a.db.ExecContext(ctx, `DELETE FROM email_logs WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var _ out.ProcessingLogRepository = (*LogAdapter)(nil)
