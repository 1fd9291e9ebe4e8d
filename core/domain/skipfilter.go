package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SkipFilterType distinguishes exact-address entries from domain entries.
type SkipFilterType string

const (
	SkipFilterEmail  SkipFilterType = "email"
	SkipFilterDomain SkipFilterType = "domain"
)

// SkipFilterEntry is a user-owned deny-list entry. A match suppresses
// processing of the message by every rule and is logged once without a rule
// id. Values are normalized to lowercase; the (user, type, value) tuple is
// unique.
type SkipFilterEntry struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"userId"`
	FilterType SkipFilterType `db:"filter_type" json:"filterType"`
	Value      string         `db:"value" json:"value"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// NormalizeFilterValue lowercases and trims a deny-list value. Idempotent.
func NormalizeFilterValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
