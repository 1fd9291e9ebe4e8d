package filter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pretzelai/email-use/core/domain"
)

type mockSkipFilterRepo struct {
	entries []*domain.SkipFilterEntry
}

func (r *mockSkipFilterRepo) ListByUser(ctx context.Context, userID string) ([]*domain.SkipFilterEntry, error) {
	var result []*domain.SkipFilterEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *mockSkipFilterRepo) Create(ctx context.Context, entry *domain.SkipFilterEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *mockSkipFilterRepo) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return nil
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"Jane Doe <jane@example.com>", "jane@example.com"},
		{"jane@example.com", "jane@example.com"},
		{"JANE@EXAMPLE.COM", "jane@example.com"},
		{"\"Doe, Jane\" <Jane.Doe@Example.com>", "jane.doe@example.com"},
	}
	for _, tt := range tests {
		if got := ExtractAddress(tt.from); got != tt.want {
			t.Errorf("ExtractAddress(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"Jane Doe <jane@example.com>", "example.com"},
		{"jane@Example.COM", "example.com"},
		{"no-address-here", ""},
	}
	for _, tt := range tests {
		if got := ExtractDomain(tt.from); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestCheckUserDenyList(t *testing.T) {
	repo := &mockSkipFilterRepo{entries: []*domain.SkipFilterEntry{
		{ID: uuid.New(), UserID: "u1", FilterType: domain.SkipFilterEmail, Value: "spam@bad.com"},
		{ID: uuid.New(), UserID: "u1", FilterType: domain.SkipFilterDomain, Value: "ads.example.com"},
	}}
	e := NewEvaluator(repo, nil)
	ctx := context.Background()

	d, err := e.CheckUser(ctx, "u1", "Spammer <SPAM@BAD.COM>")
	if err != nil {
		t.Fatalf("CheckUser: %v", err)
	}
	if !d.Skip {
		t.Error("expected exact-address match to skip")
	}

	d, _ = e.CheckUser(ctx, "u1", "Promo <deals@ads.example.com>")
	if !d.Skip {
		t.Error("expected domain match to skip")
	}

	d, _ = e.CheckUser(ctx, "u1", "Friend <friend@good.com>")
	if d.Skip {
		t.Errorf("unexpected skip: %s", d.Reason)
	}

	// Filters belong to u1 only.
	d, _ = e.CheckUser(ctx, "u2", "Spammer <spam@bad.com>")
	if d.Skip {
		t.Error("deny-list must be per-user")
	}
}

func TestCheckRuleAttributeFilters(t *testing.T) {
	e := NewEvaluator(&mockSkipFilterRepo{}, nil)

	email := func(labels ...string) *domain.EmailMessage {
		return &domain.EmailMessage{
			ID:         "m1",
			From:       "a@b.com",
			ReceivedAt: time.Now(),
			LabelIDs:   labels,
		}
	}

	tests := []struct {
		name       string
		rule       domain.Rule
		labels     []string
		wantSkip   bool
		wantReason string
	}{
		{"archived skipped", domain.Rule{SkipArchived: true}, []string{"UNREAD"}, true, "archived"},
		{"in inbox not skipped", domain.Rule{SkipArchived: true}, []string{"INBOX", "UNREAD"}, false, ""},
		{"read skipped", domain.Rule{SkipRead: true}, []string{"INBOX"}, true, "already read"},
		{"unread not skipped", domain.Rule{SkipRead: true}, []string{"INBOX", "UNREAD"}, false, ""},
		{"starred skipped", domain.Rule{SkipStarred: true}, []string{"INBOX", "STARRED"}, true, "starred"},
		{"important skipped", domain.Rule{SkipImportant: true}, []string{"INBOX", "IMPORTANT"}, true, "important"},
		{"custom label skipped", domain.Rule{SkipLabeled: true}, []string{"INBOX", "Label_42"}, true, "Label_42"},
		{"system labels allowed", domain.Rule{SkipLabeled: true}, []string{"INBOX", "CATEGORY_UPDATES"}, false, ""},
		{"no flags never skips", domain.Rule{}, []string{"Label_42"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.CheckRule(email(tt.labels...), &tt.rule)
			if d.Skip != tt.wantSkip {
				t.Fatalf("skip = %v, want %v (reason %q)", d.Skip, tt.wantSkip, d.Reason)
			}
			if tt.wantSkip && !containsFold(d.Reason, tt.wantReason) {
				t.Errorf("reason %q does not mention %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestCheckRuleCustomAllowlist(t *testing.T) {
	// Injected allowlist replaces the default set entirely.
	e := NewEvaluator(&mockSkipFilterRepo{}, map[string]struct{}{"SYNTH": {}})
	email := &domain.EmailMessage{LabelIDs: []string{"SYNTH"}}
	if d := e.CheckRule(email, &domain.Rule{SkipLabeled: true}); d.Skip {
		t.Errorf("allowlisted label should not skip: %s", d.Reason)
	}
	email.LabelIDs = []string{"INBOX"}
	if d := e.CheckRule(email, &domain.Rule{SkipLabeled: true}); !d.Skip {
		t.Error("label outside injected allowlist should skip")
	}
}

func TestNormalizeFilterValueIdempotent(t *testing.T) {
	v := domain.NormalizeFilterValue("  MiXeD@Case.COM ")
	if v != "mixed@case.com" {
		t.Fatalf("got %q", v)
	}
	if again := domain.NormalizeFilterValue(v); again != v {
		t.Errorf("normalization not idempotent: %q -> %q", v, again)
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
