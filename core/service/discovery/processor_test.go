package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pretzelai/email-use/core/agent"
	"github.com/pretzelai/email-use/core/agent/tools"
	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/core/service/filter"
)

// ---- mocks ----

// memLogRepo mirrors the ledger's two partial unique indexes: one row per
// (user, rule, message) for non-nil rules, one user-level row per
// (user, message), and no claim at all for rows whose rule was deleted.
type memLogRepo struct {
	mu      sync.Mutex
	entries []*domain.ProcessingLogEntry
}

func newMemLogRepo() *memLogRepo {
	return &memLogRepo{}
}

func (r *memLogRepo) conflicts(userID string, ruleID *uuid.UUID, messageID string) bool {
	for _, e := range r.entries {
		if e.UserID != userID || e.GmailMessageID != messageID {
			continue
		}
		if ruleID == nil {
			if e.UserLevel {
				return true
			}
		} else if e.RuleID != nil && *e.RuleID == *ruleID {
			return true
		}
	}
	return false
}

func (r *memLogRepo) Reserve(_ context.Context, userID string, ruleID *uuid.UUID, messageID string) (*domain.ProcessingLogEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(userID, ruleID, messageID) {
		return nil, false, nil
	}
	entry := &domain.ProcessingLogEntry{
		ID:             uuid.New(),
		UserID:         userID,
		RuleID:         ruleID,
		UserLevel:      ruleID == nil,
		GmailMessageID: messageID,
		Status:         domain.StatusPending,
		CreatedAt:      time.Now(),
	}
	r.entries = append(r.entries, entry)
	return entry, true, nil
}

func (r *memLogRepo) Finalize(_ context.Context, entry *domain.ProcessingLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == entry.ID {
			r.entries[i] = entry
			return nil
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memLogRepo) IsProcessed(_ context.Context, userID string, ruleID *uuid.UUID, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts(userID, ruleID, messageID), nil
}

func (r *memLogRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]*domain.ProcessingLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.ProcessingLogEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *memLogRepo) ClearForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.ProcessingLogEntry
	var n int64
	for _, e := range r.entries {
		if e.UserID == userID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

// detachRule simulates the ON DELETE SET NULL cascade of a rule deletion:
// the rows keep their history but lose the rule id and stay non-user-level.
func (r *memLogRepo) detachRule(ruleID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.RuleID != nil && *e.RuleID == ruleID {
			e.RuleID = nil
		}
	}
}

func (r *memLogRepo) all() []*domain.ProcessingLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.ProcessingLogEntry, 0, len(r.entries))
	result = append(result, r.entries...)
	return result
}

type memRuleRepo struct {
	rules map[uuid.UUID]*domain.Rule
}

func newMemRuleRepo(rules ...*domain.Rule) *memRuleRepo {
	m := &memRuleRepo{rules: make(map[uuid.UUID]*domain.Rule)}
	for _, r := range rules {
		m.rules[r.ID] = r
	}
	return m
}

func (r *memRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Rule, error) {
	rule, ok := r.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rule, nil
}

func (r *memRuleRepo) ListByUser(_ context.Context, userID string) ([]*domain.Rule, error) {
	var result []*domain.Rule
	for _, rule := range r.rules {
		if rule.UserID == userID {
			result = append(result, rule)
		}
	}
	return result, nil
}

func (r *memRuleRepo) ListDiscoverable(_ context.Context, userID string) ([]*domain.Rule, error) {
	var result []*domain.Rule
	for _, rule := range r.rules {
		if rule.UserID == userID && rule.Discoverable() {
			result = append(result, rule)
		}
	}
	return result, nil
}

func (r *memRuleRepo) Create(_ context.Context, rule *domain.Rule) error { r.rules[rule.ID] = rule; return nil }
func (r *memRuleRepo) Update(_ context.Context, rule *domain.Rule) error { r.rules[rule.ID] = rule; return nil }
func (r *memRuleRepo) SetPublished(_ context.Context, id uuid.UUID, published bool) error {
	if rule, ok := r.rules[id]; ok {
		rule.IsPublished = published
	}
	return nil
}
func (r *memRuleRepo) Delete(_ context.Context, id uuid.UUID) error { delete(r.rules, id); return nil }

type memSkipRepo struct {
	entries []*domain.SkipFilterEntry
}

func (r *memSkipRepo) ListByUser(_ context.Context, userID string) ([]*domain.SkipFilterEntry, error) {
	var result []*domain.SkipFilterEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *memSkipRepo) Create(_ context.Context, entry *domain.SkipFilterEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memSkipRepo) Delete(_ context.Context, _ string, _ uuid.UUID) error { return nil }

type mockProvider struct {
	mu      sync.Mutex
	emails  []*domain.EmailMessage
	ops     []string
	failOps map[string]error
	gotList *out.ListQuery
}

func (p *mockProvider) record(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, op)
	if p.failOps != nil {
		if err, ok := p.failOps[strings.SplitN(op, ":", 2)[0]]; ok {
			return err
		}
	}
	return nil
}

func (p *mockProvider) ListCandidateMessages(_ context.Context, query *out.ListQuery) ([]*domain.EmailMessage, error) {
	p.gotList = query
	return p.emails, nil
}

func (p *mockProvider) Send(_ context.Context, req *out.SendRequest) (*out.SendResult, error) {
	if err := p.record("send:" + req.To); err != nil {
		return nil, err
	}
	return &out.SendResult{MessageID: "sent-1", ThreadID: "thread-1"}, nil
}

func (p *mockProvider) AddLabel(_ context.Context, messageID, labelName, _ string) (string, error) {
	if err := p.record("addLabel:" + labelName); err != nil {
		return "", err
	}
	return "Label_1", nil
}

func (p *mockProvider) Archive(_ context.Context, messageID string) error {
	return p.record("archive:" + messageID)
}

func (p *mockProvider) MarkRead(_ context.Context, messageID string) error {
	return p.record("markRead:" + messageID)
}

func (p *mockProvider) MarkUnread(_ context.Context, messageID string) error {
	return p.record("markUnread:" + messageID)
}

func (p *mockProvider) Star(_ context.Context, messageID string) error {
	return p.record("star:" + messageID)
}

func (p *mockProvider) Unstar(_ context.Context, messageID string) error {
	return p.record("unstar:" + messageID)
}

type mockFactory struct {
	provider *mockProvider
}

func (f *mockFactory) ForAccessToken(_ context.Context, _ string) (out.MailboxProvider, error) {
	return f.provider, nil
}

type stubDecider struct {
	decision *agent.Decision
	err      error

	// transient failure mode: fail this many calls, then succeed
	failures     int
	transientErr error

	calls int
}

func (d *stubDecider) Decide(_ context.Context, _ *domain.Rule, _ *domain.EmailMessage) (*agent.Decision, error) {
	d.calls++
	if d.failures > 0 {
		d.failures--
		return nil, d.transientErr
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.decision, nil
}

type memDebugRepo struct {
	saved map[uuid.UUID]string
}

func (r *memDebugRepo) Save(_ context.Context, _ string, logID uuid.UUID, _ *domain.EmailMessage, aiResponse string) error {
	if r.saved == nil {
		r.saved = make(map[uuid.UUID]string)
	}
	r.saved[logID] = aiResponse
	return nil
}

func (r *memDebugRepo) Get(_ context.Context, _ uuid.UUID) (*domain.EmailMessage, string, error) {
	return nil, "", domain.ErrNotFound
}

func (r *memDebugRepo) DeleteForUser(_ context.Context, _ string) error { return nil }

// ---- helpers ----

func testRule(userID string) *domain.Rule {
	return &domain.Rule{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        "newsletter triage",
		RuleText:    "Label newsletters and archive them",
		Provider:    domain.ProviderOpenAI,
		Model:       "gpt-4o",
		IsActive:    true,
		IsPublished: true,
	}
}

func testEmail() *domain.EmailMessage {
	return &domain.EmailMessage{
		ID:         "msg-1",
		ThreadID:   "thread-1",
		Subject:    "Weekly digest",
		From:       "News <news@example.com>",
		Snippet:    "This week in example",
		Body:       "Full body of the digest",
		ReceivedAt: time.Now(),
		LabelIDs:   []string{domain.LabelInbox, domain.LabelUnread},
	}
}

func newTestProcessor(logRepo *memLogRepo, ruleRepo *memRuleRepo, skipRepo *memSkipRepo, decider Decider, provider *mockProvider, debugRepo out.DebugContentRepository) *Processor {
	p := NewProcessor(
		ruleRepo,
		logRepo,
		debugRepo,
		filter.NewEvaluator(skipRepo, nil),
		decider,
		&mockFactory{provider: provider},
	)
	p.decideBackoff = 0
	return p
}

// ---- tests ----

func TestProcessEmailPerRuleLedgerEntries(t *testing.T) {
	userID := "user-1"
	rule1 := testRule(userID)
	rule2 := testRule(userID)
	email := testEmail()

	logRepo := newMemLogRepo()
	provider := &mockProvider{}
	decider := &stubDecider{decision: &agent.Decision{
		Summary:   "archived the digest",
		ToolCalls: []tools.ToolCall{{Name: tools.ToolArchiveEmail, Args: map[string]any{}}},
	}}
	proc := newTestProcessor(logRepo, newMemRuleRepo(rule1, rule2), &memSkipRepo{}, decider, provider, nil)

	job := &out.EmailProcessJob{
		UserID:  userID,
		Email:   email,
		RuleIDs: []uuid.UUID{rule1.ID, rule2.ID},
	}

	result, err := proc.ProcessEmail(context.Background(), job)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if result.Processed != 2 {
		t.Fatalf("Processed = %d, want 2", result.Processed)
	}

	entries := logRepo.all()
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(entries))
	}
	seen := map[uuid.UUID]bool{}
	for _, e := range entries {
		if e.GmailMessageID != email.ID {
			t.Errorf("entry message id = %s, want %s", e.GmailMessageID, email.ID)
		}
		if e.RuleID == nil {
			t.Fatal("entry has nil rule id, want per-rule entries")
		}
		if e.Status != domain.StatusProcessed {
			t.Errorf("entry status = %s, want processed", e.Status)
		}
		seen[*e.RuleID] = true
	}
	if !seen[rule1.ID] || !seen[rule2.ID] {
		t.Error("expected one entry per rule")
	}
}

func TestProcessEmailSecondRunIsNoOp(t *testing.T) {
	userID := "user-1"
	rule := testRule(userID)
	email := testEmail()

	logRepo := newMemLogRepo()
	decider := &stubDecider{decision: &agent.Decision{Summary: "done"}}
	proc := newTestProcessor(logRepo, newMemRuleRepo(rule), &memSkipRepo{}, decider, &mockProvider{}, nil)

	job := &out.EmailProcessJob{UserID: userID, Email: email, RuleIDs: []uuid.UUID{rule.ID}}

	if _, err := proc.ProcessEmail(context.Background(), job); err != nil {
		t.Fatalf("first ProcessEmail() error = %v", err)
	}
	result, err := proc.ProcessEmail(context.Background(), job)
	if err != nil {
		t.Fatalf("second ProcessEmail() error = %v", err)
	}
	if result.Processed != 0 || result.Skipped != 0 || result.Failed != 0 {
		t.Errorf("second run result = %+v, want all zero", result)
	}
	if decider.calls != 1 {
		t.Errorf("decider calls = %d, want 1 (second run must not reach the model)", decider.calls)
	}
}

func TestProcessEmailUserSkipSuppressesAllRules(t *testing.T) {
	userID := "user-1"
	rule1 := testRule(userID)
	rule2 := testRule(userID)
	email := testEmail()

	skipRepo := &memSkipRepo{entries: []*domain.SkipFilterEntry{{
		ID:         uuid.New(),
		UserID:     userID,
		FilterType: domain.SkipFilterDomain,
		Value:      "example.com",
	}}}
	logRepo := newMemLogRepo()
	decider := &stubDecider{decision: &agent.Decision{Summary: "should not run"}}
	provider := &mockProvider{}
	proc := newTestProcessor(logRepo, newMemRuleRepo(rule1, rule2), skipRepo, decider, provider, nil)

	job := &out.EmailProcessJob{UserID: userID, Email: email, RuleIDs: []uuid.UUID{rule1.ID, rule2.ID}}

	result, err := proc.ProcessEmail(context.Background(), job)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}

	entries := logRepo.all()
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want exactly 1 user-level entry", len(entries))
	}
	entry := entries[0]
	if entry.RuleID != nil {
		t.Error("user-level skip entry must have nil rule id")
	}
	if entry.Status != domain.StatusSkipped {
		t.Errorf("status = %s, want skipped", entry.Status)
	}
	if decider.calls != 0 {
		t.Errorf("decider calls = %d, want 0", decider.calls)
	}
	if len(provider.ops) != 0 {
		t.Errorf("provider ops = %v, want none", provider.ops)
	}
}

func TestProcessEmailRuleSkipArchived(t *testing.T) {
	userID := "user-1"
	rule := testRule(userID)
	rule.SkipArchived = true

	email := testEmail()
	email.LabelIDs = []string{domain.LabelUnread} // not in inbox

	logRepo := newMemLogRepo()
	decider := &stubDecider{decision: &agent.Decision{Summary: "should not run"}}
	proc := newTestProcessor(logRepo, newMemRuleRepo(rule), &memSkipRepo{}, decider, &mockProvider{}, nil)

	job := &out.EmailProcessJob{UserID: userID, Email: email, RuleIDs: []uuid.UUID{rule.ID}}
	result, err := proc.ProcessEmail(context.Background(), job)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", result.Skipped)
	}

	entry := logRepo.all()[0]
	if entry.Error == nil || !strings.Contains(strings.ToLower(*entry.Error), "archived") {
		t.Errorf("skip reason = %v, want mention of archived", entry.Error)
	}
	if decider.calls != 0 {
		t.Errorf("decider calls = %d, want 0", decider.calls)
	}
}

func TestProcessEmailPartialToolFailure(t *testing.T) {
	userID := "user-1"
	rule := testRule(userID)
	email := testEmail()

	logRepo := newMemLogRepo()
	provider := &mockProvider{failOps: map[string]error{"addLabel": errors.New("label quota exceeded")}}
	decider := &stubDecider{decision: &agent.Decision{
		Summary: "labeled and archived",
		ToolCalls: []tools.ToolCall{
			{Name: tools.ToolAddLabel, Args: map[string]any{"labelName": "Newsletters"}},
			{Name: tools.ToolArchiveEmail, Args: map[string]any{}},
		},
	}}
	proc := newTestProcessor(logRepo, newMemRuleRepo(rule), &memSkipRepo{}, decider, provider, nil)

	job := &out.EmailProcessJob{UserID: userID, Email: email, RuleIDs: []uuid.UUID{rule.ID}}
	result, err := proc.ProcessEmail(context.Background(), job)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want processed=1 failed=0", result)
	}

	entry := logRepo.all()[0]
	if entry.Status != domain.StatusProcessed {
		t.Fatalf("status = %s, want processed despite failed tool", entry.Status)
	}
	if len(entry.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(entry.Actions))
	}
	if entry.Actions[0].Success || entry.Actions[0].Error == "" {
		t.Error("first action should record the label failure")
	}
	if !entry.Actions[1].Success {
		t.Error("second action should still have executed and succeeded")
	}
	found := false
	for _, op := range provider.ops {
		if strings.HasPrefix(op, "archive:") {
			found = true
		}
	}
	if !found {
		t.Error("archive was not attempted after the label failure")
	}
}

func TestProcessEmailDebugContentGating(t *testing.T) {
	userID := "user-1"
	email := testEmail()

	for _, debug := range []bool{false, true} {
		t.Run(fmt.Sprintf("debug=%v", debug), func(t *testing.T) {
			rule := testRule(userID)
			logRepo := newMemLogRepo()
			debugRepo := &memDebugRepo{}
			decider := &stubDecider{decision: &agent.Decision{Summary: "archived it"}}
			proc := newTestProcessor(logRepo, newMemRuleRepo(rule), &memSkipRepo{}, decider, &mockProvider{}, debugRepo)

			job := &out.EmailProcessJob{UserID: userID, Email: email, RuleIDs: []uuid.UUID{rule.ID}, DebugMode: debug}
			if _, err := proc.ProcessEmail(context.Background(), job); err != nil {
				t.Fatalf("ProcessEmail() error = %v", err)
			}

			entry := logRepo.all()[0]
			if debug {
				if entry.Subject == nil || entry.From == nil || entry.Snippet == nil || entry.AIResponse == nil {
					t.Error("debug on: content fields must be populated")
				}
				if len(debugRepo.saved) != 1 {
					t.Errorf("debug on: saved = %d, want 1", len(debugRepo.saved))
				}
			} else {
				if entry.Subject != nil || entry.From != nil || entry.Snippet != nil || entry.AIResponse != nil {
					t.Error("debug off: content fields must stay null")
				}
				if len(debugRepo.saved) != 0 {
					t.Errorf("debug off: saved = %d, want 0", len(debugRepo.saved))
				}
			}
		})
	}
}

func TestProcessEmailAIFailureLogsFailed(t *testing.T) {
	userID := "user-1"
	rule := testRule(userID)
	email := testEmail()

	logRepo := newMemLogRepo()
	decider := &stubDecider{err: fmt.Errorf("%w: rate limited", domain.ErrAIInvocation)}
	proc := newTestProcessor(logRepo, newMemRuleRepo(rule), &memSkipRepo{}, decider, &mockProvider{}, nil)

	job := &out.EmailProcessJob{UserID: userID, Email: email, RuleIDs: []uuid.UUID{rule.ID}}
	result, err := proc.ProcessEmail(context.Background(), job)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", result.Failed)
	}

	entry := logRepo.all()[0]
	if entry.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", entry.Status)
	}
	if entry.Error == nil || !strings.Contains(*entry.Error, "rate limited") {
		t.Errorf("error = %v, want the raw reason preserved", entry.Error)
	}
	if decider.calls != decideAttempts {
		t.Errorf("decider calls = %d, want %d (failed only after retries exhaust)", decider.calls, decideAttempts)
	}
}

func TestProcessEmailTransientAIFailureRetriedInPlace(t *testing.T) {
	userID := "user-1"
	rule := testRule(userID)
	email := testEmail()

	logRepo := newMemLogRepo()
	decider := &stubDecider{
		failures:     2,
		transientErr: fmt.Errorf("%w: rate limited", domain.ErrAIInvocation),
		decision: &agent.Decision{
			Summary:   "archive it",
			ToolCalls: []tools.ToolCall{{Name: tools.ToolArchiveEmail, Args: map[string]any{}}},
		},
	}
	provider := &mockProvider{}
	proc := newTestProcessor(logRepo, newMemRuleRepo(rule), &memSkipRepo{}, decider, provider, nil)

	job := &out.EmailProcessJob{UserID: userID, Email: email, RuleIDs: []uuid.UUID{rule.ID}}
	result, err := proc.ProcessEmail(context.Background(), job)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("Processed = %d, Failed = %d, want 1, 0", result.Processed, result.Failed)
	}
	if decider.calls != 3 {
		t.Errorf("decider calls = %d, want 3", decider.calls)
	}

	entries := logRepo.all()
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1 (retries reuse the reservation)", len(entries))
	}
	if entries[0].Status != domain.StatusProcessed {
		t.Errorf("status = %s, want processed", entries[0].Status)
	}
}
