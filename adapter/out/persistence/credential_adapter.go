package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// CredentialAdapter implements out.CredentialRepository.
type CredentialAdapter struct {
	db *sqlx.DB
}

// NewCredentialAdapter creates a new CredentialAdapter.
func NewCredentialAdapter(db *sqlx.DB) *CredentialAdapter {
	return &CredentialAdapter{db: db}
}

// GetByUserID returns the user's mailbox credential.
func (a *CredentialAdapter) GetByUserID(ctx context.Context, userID string) (*domain.MailboxCredential, error) {
	var cred domain.MailboxCredential
	query := `
		SELECT id, user_id, email, access_token, refresh_token,
		       expires_at, connected_at, is_connected, updated_at
		FROM mailbox_credentials
		WHERE user_id = $1`

	if err := a.db.GetContext(ctx, &cred, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// ListConnected returns all connected credentials, for the scheduled sweep.
func (a *CredentialAdapter) ListConnected(ctx context.Context) ([]*domain.MailboxCredential, error) {
	var creds []*domain.MailboxCredential
	query := `
		SELECT id, user_id, email, access_token, refresh_token,
		       expires_at, connected_at, is_connected, updated_at
		FROM mailbox_credentials
		WHERE is_connected = true
		ORDER BY connected_at`

	if err := a.db.SelectContext(ctx, &creds, query); err != nil {
		return nil, err
	}
	return creds, nil
}

// Upsert stores a credential, replacing any previous connection for the user.
// connected_at is reset on reconnect: the eligibility window starts over.
func (a *CredentialAdapter) Upsert(ctx context.Context, cred *domain.MailboxCredential) error {
	query := `
		INSERT INTO mailbox_credentials
			(id, user_id, email, access_token, refresh_token, expires_at, connected_at, is_connected, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, now())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			connected_at = EXCLUDED.connected_at,
			is_connected = true,
			updated_at = now()`

	_, err := a.db.ExecContext(ctx, query,
		cred.ID, cred.UserID, cred.Email, cred.AccessToken, cred.RefreshToken,
		cred.ExpiresAt, cred.ConnectedAt)
	return err
}

// UpdateTokens stores a refreshed access token in place.
func (a *CredentialAdapter) UpdateTokens(ctx context.Context, userID, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE mailbox_credentials
		SET access_token = $2, expires_at = $3, updated_at = now()
		WHERE user_id = $1`

	_, err := a.db.ExecContext(ctx, query, userID, accessToken, expiresAt)
	return err
}

// MarkDisconnected flags a credential whose refresh token was revoked.
func (a *CredentialAdapter) MarkDisconnected(ctx context.Context, userID string) error {
	query := `
		UPDATE mailbox_credentials
		SET is_connected = false, updated_at = now()
		WHERE user_id = $1`

	_, err := a.db.ExecContext(ctx, query, userID)
	return err
}

// Delete removes the credential on explicit disconnect. Logs are retained.
func (a *CredentialAdapter) Delete(ctx context.Context, userID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM mailbox_credentials WHERE user_id = $1`, userID)
	return err
}

var _ out.CredentialRepository = (*CredentialAdapter)(nil)
