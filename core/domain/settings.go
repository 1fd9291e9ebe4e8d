package domain

import "time"

// UserSettings holds per-user pipeline preferences. DebugMode opts into
// retaining email content on log entries; it is off by default.
type UserSettings struct {
	UserID    string    `db:"user_id" json:"userId"`
	DebugMode bool      `db:"debug_mode" json:"debugMode"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
