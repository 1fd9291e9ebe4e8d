package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// SkipFilterAdapter implements out.SkipFilterRepository.
type SkipFilterAdapter struct {
	db *sqlx.DB
}

// NewSkipFilterAdapter creates a new SkipFilterAdapter.
func NewSkipFilterAdapter(db *sqlx.DB) *SkipFilterAdapter {
	return &SkipFilterAdapter{db: db}
}

// ListByUser returns the user's deny-list.
func (a *SkipFilterAdapter) ListByUser(ctx context.Context, userID string) ([]*domain.SkipFilterEntry, error) {
	var entries []*domain.SkipFilterEntry
	query := `
		SELECT id, user_id, filter_type, value, created_at
		FROM skip_filters
		WHERE user_id = $1
		ORDER BY created_at`

	if err := a.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, err
	}
	return entries, nil
}

// Create inserts an entry with its value normalized. Duplicate
// (user, type, value) tuples are rejected with domain.ErrDuplicateEntry.
func (a *SkipFilterAdapter) Create(ctx context.Context, entry *domain.SkipFilterEntry) error {
	entry.Value = domain.NormalizeFilterValue(entry.Value)

	query := `
		INSERT INTO skip_filters (id, user_id, filter_type, value, created_at)
		VALUES ($1, $2, $3, $4, now())`

	_, err := a.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.FilterType, entry.Value)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEntry
		}
		return err
	}
	return nil
}

// Delete removes one entry belonging to the user.
func (a *SkipFilterAdapter) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM skip_filters WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ out.SkipFilterRepository = (*SkipFilterAdapter)(nil)
