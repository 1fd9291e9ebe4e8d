package domain

import (
	"time"

	"github.com/google/uuid"
)

// MailboxCredential is a user's OAuth token pair for the connected mailbox.
// ConnectedAt is the lower bound for any email ever considered by discovery:
// mail received before the mailbox was connected is never eligible.
type MailboxCredential struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"userId"`
	Email        string    `db:"email" json:"email"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	ExpiresAt    time.Time `db:"expires_at" json:"expiresAt"`
	ConnectedAt  time.Time `db:"connected_at" json:"connectedAt"`
	IsConnected  bool      `db:"is_connected" json:"isConnected"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether the access token needs a refresh before use.
func (c *MailboxCredential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
