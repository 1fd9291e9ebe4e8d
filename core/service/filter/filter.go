// Package filter decides whether a candidate email is ineligible for
// processing, with a stated reason. Two independent layers: the user-level
// deny-list (rule-independent, checked first) and per-rule attribute filters.
package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

// Decision is the outcome of one filter layer.
type Decision struct {
	Skip   bool
	Reason string
}

var (
	addressRe = regexp.MustCompile(`<([^>]+)>`)
	domainRe  = regexp.MustCompile(`@([^>\s]+)`)
)

// ExtractAddress returns the bare lowercase address from a From header in
// either "Name <a@b.com>" or "a@b.com" form.
func ExtractAddress(from string) string {
	if m := addressRe.FindStringSubmatch(from); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// ExtractDomain returns the lowercase domain of a From header, or "" when the
// header carries no address.
func ExtractDomain(from string) string {
	if m := domainRe.FindStringSubmatch(from); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return ""
}

// DefaultSystemLabels is the fixed allowlist of Gmail labels that do not
// count as "custom" for the skipLabeled check.
func DefaultSystemLabels() map[string]struct{} {
	names := []string{
		"INBOX", "UNREAD", "SENT", "DRAFT", "SPAM", "TRASH",
		"STARRED", "IMPORTANT",
		"CATEGORY_PERSONAL", "CATEGORY_SOCIAL", "CATEGORY_PROMOTIONS",
		"CATEGORY_UPDATES", "CATEGORY_FORUMS",
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Evaluator evaluates both filter layers. The system-label allowlist is
// injected configuration, not hardcoded control flow.
type Evaluator struct {
	skipRepo     out.SkipFilterRepository
	systemLabels map[string]struct{}
}

// NewEvaluator creates an Evaluator. A nil allowlist selects the default set.
func NewEvaluator(skipRepo out.SkipFilterRepository, systemLabels map[string]struct{}) *Evaluator {
	if systemLabels == nil {
		systemLabels = DefaultSystemLabels()
	}
	return &Evaluator{skipRepo: skipRepo, systemLabels: systemLabels}
}

// CheckUser evaluates the user's deny-list against the sender header. A match
// suppresses processing by every rule for this message.
func (e *Evaluator) CheckUser(ctx context.Context, userID, from string) (Decision, error) {
	filters, err := e.skipRepo.ListByUser(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load skip filters: %w", err)
	}
	if len(filters) == 0 {
		return Decision{}, nil
	}

	address := ExtractAddress(from)
	domainPart := ExtractDomain(from)

	for _, f := range filters {
		value := domain.NormalizeFilterValue(f.Value)
		switch f.FilterType {
		case domain.SkipFilterEmail:
			if address == value {
				return Decision{Skip: true, Reason: fmt.Sprintf("Email address %q is in skip list", f.Value)}, nil
			}
		case domain.SkipFilterDomain:
			if domainPart == value {
				return Decision{Skip: true, Reason: fmt.Sprintf("Domain %q is in skip list", f.Value)}, nil
			}
		}
	}
	return Decision{}, nil
}

// CheckRule evaluates a rule's five attribute flags against the message's
// label set, returning on first match. A rule with all flags false never
// skips here. Pure: no I/O.
func (e *Evaluator) CheckRule(email *domain.EmailMessage, rule *domain.Rule) Decision {
	if rule.SkipArchived && !email.HasLabel(domain.LabelInbox) {
		return Decision{Skip: true, Reason: "Email is archived (not in INBOX)"}
	}
	if rule.SkipRead && !email.HasLabel(domain.LabelUnread) {
		return Decision{Skip: true, Reason: "Email is already read"}
	}
	if rule.SkipStarred && email.HasLabel(domain.LabelStarred) {
		return Decision{Skip: true, Reason: "Email is starred"}
	}
	if rule.SkipImportant && email.HasLabel(domain.LabelImportant) {
		return Decision{Skip: true, Reason: "Email is marked as important"}
	}
	if rule.SkipLabeled {
		var custom []string
		for _, l := range email.LabelIDs {
			if _, ok := e.systemLabels[l]; !ok {
				custom = append(custom, l)
			}
		}
		if len(custom) > 0 {
			return Decision{Skip: true, Reason: fmt.Sprintf("Email already has labels: %s", strings.Join(custom, ", "))}
		}
	}
	return Decision{}
}
