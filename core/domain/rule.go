// Package domain holds the core entities of the email automation pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AIProvider identifies which model backend a rule runs on.
type AIProvider string

const (
	ProviderOpenAI    AIProvider = "openai"
	ProviderAnthropic AIProvider = "anthropic"
)

// Rule is a user-authored natural-language processing policy for inbound mail.
// Only rules with both IsActive and IsPublished set participate in automatic
// discovery; unpublished rules are reachable only through dry-run testing.
type Rule struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"userId"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	RuleText    string     `db:"rule_text" json:"ruleText"`
	Provider    AIProvider `db:"provider" json:"provider"`
	Model       string     `db:"model" json:"model"`
	IsActive    bool       `db:"is_active" json:"isActive"`
	IsPublished bool       `db:"is_published" json:"isPublished"`

	// Attribute skip filters, each independently optional.
	SkipArchived  bool `db:"skip_archived" json:"skipArchived"`
	SkipRead      bool `db:"skip_read" json:"skipRead"`
	SkipLabeled   bool `db:"skip_labeled" json:"skipLabeled"`
	SkipStarred   bool `db:"skip_starred" json:"skipStarred"`
	SkipImportant bool `db:"skip_important" json:"skipImportant"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Discoverable reports whether the rule participates in automatic scans.
func (r *Rule) Discoverable() bool {
	return r.IsActive && r.IsPublished
}
