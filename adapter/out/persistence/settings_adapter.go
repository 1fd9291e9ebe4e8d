package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// SettingsAdapter implements out.SettingsRepository.
type SettingsAdapter struct {
	db *sqlx.DB
}

// NewSettingsAdapter creates a new SettingsAdapter.
func NewSettingsAdapter(db *sqlx.DB) *SettingsAdapter {
	return &SettingsAdapter{db: db}
}

// Get returns the user's settings, defaulting debug mode to off for users
// who never touched them.
func (a *SettingsAdapter) Get(ctx context.Context, userID string) (*domain.UserSettings, error) {
	var settings domain.UserSettings
	query := `SELECT user_id, debug_mode, updated_at FROM user_settings WHERE user_id = $1`

	if err := a.db.GetContext(ctx, &settings, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.UserSettings{UserID: userID, DebugMode: false}, nil
		}
		return nil, err
	}
	return &settings, nil
}

// Upsert stores the user's settings.
func (a *SettingsAdapter) Upsert(ctx context.Context, settings *domain.UserSettings) error {
	query := `
		INSERT INTO user_settings (user_id, debug_mode, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			debug_mode = EXCLUDED.debug_mode,
			updated_at = now()`

	_, err := a.db.ExecContext(ctx, query, settings.UserID, settings.DebugMode)
	return err
}

var _ out.SettingsRepository = (*SettingsAdapter)(nil)
