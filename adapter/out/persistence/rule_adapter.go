package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

const ruleColumns = `
	id, user_id, name, description, rule_text, provider, model,
	is_active, is_published,
	skip_archived, skip_read, skip_labeled, skip_starred, skip_important,
	created_at, updated_at`

// RuleAdapter implements out.RuleRepository.
type RuleAdapter struct {
	db *sqlx.DB
}

// NewRuleAdapter creates a new RuleAdapter.
func NewRuleAdapter(db *sqlx.DB) *RuleAdapter {
	return &RuleAdapter{db: db}
}

// GetByID returns one rule.
func (a *RuleAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	var rule domain.Rule
	query := `SELECT` + ruleColumns + ` FROM rules WHERE id = $1`
	if err := a.db.GetContext(ctx, &rule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListByUser returns all of a user's rules, newest first.
func (a *RuleAdapter) ListByUser(ctx context.Context, userID string) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	query := `SELECT` + ruleColumns + ` FROM rules WHERE user_id = $1 ORDER BY created_at DESC`
	if err := a.db.SelectContext(ctx, &rules, query, userID); err != nil {
		return nil, err
	}
	return rules, nil
}

// ListDiscoverable returns rules that participate in automatic discovery:
// active AND published.
func (a *RuleAdapter) ListDiscoverable(ctx context.Context, userID string) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	query := `SELECT` + ruleColumns + `
		FROM rules
		WHERE user_id = $1 AND is_active = true AND is_published = true
		ORDER BY created_at`
	if err := a.db.SelectContext(ctx, &rules, query, userID); err != nil {
		return nil, err
	}
	return rules, nil
}

// Create inserts a rule.
func (a *RuleAdapter) Create(ctx context.Context, rule *domain.Rule) error {
	query := `
		INSERT INTO rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())`

	_, err := a.db.ExecContext(ctx, query,
		rule.ID, rule.UserID, rule.Name, rule.Description, rule.RuleText,
		rule.Provider, rule.Model, rule.IsActive, rule.IsPublished,
		rule.SkipArchived, rule.SkipRead, rule.SkipLabeled, rule.SkipStarred, rule.SkipImportant)
	return err
}

// Update rewrites a rule's editable fields.
func (a *RuleAdapter) Update(ctx context.Context, rule *domain.Rule) error {
	query := `
		UPDATE rules SET
			name = $2, description = $3, rule_text = $4, provider = $5, model = $6,
			is_active = $7,
			skip_archived = $8, skip_read = $9, skip_labeled = $10,
			skip_starred = $11, skip_important = $12,
			updated_at = now()
		WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.Description, rule.RuleText, rule.Provider, rule.Model,
		rule.IsActive,
		rule.SkipArchived, rule.SkipRead, rule.SkipLabeled, rule.SkipStarred, rule.SkipImportant)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPublished toggles the publish flag.
func (a *RuleAdapter) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE rules SET is_published = $2, updated_at = now() WHERE id = $1`, id, published)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a rule; its log entries keep a nulled rule reference.
func (a *RuleAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	return err
}

var _ out.RuleRepository = (*RuleAdapter)(nil)
