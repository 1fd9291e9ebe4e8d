package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/pretzelai/email-use/core/agent"
	"github.com/pretzelai/email-use/core/agent/tools"
	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/core/service/filter"
	"github.com/pretzelai/email-use/pkg/logger"
)

// ProcessResult aggregates one email's outcomes across rules.
type ProcessResult struct {
	GmailMessageID string `json:"gmailMessageId"`
	Processed      int    `json:"processed"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
}

// Decider is the AI decision step as the processor sees it.
type Decider interface {
	Decide(ctx context.Context, rule *domain.Rule, email *domain.EmailMessage) (*agent.Decision, error)
}

// decideAttempts bounds in-place retries of the AI decision. The entry is
// already reserved, so a rerun of the whole job could not retry it.
const decideAttempts = 3

// Processor runs one email through a user's rules: deny-list check,
// per-rule attribute filters, ledger reservation, AI decision, and tool
// execution.
type Processor struct {
	ruleRepo  out.RuleRepository
	logRepo   out.ProcessingLogRepository
	debugRepo out.DebugContentRepository
	filters   *filter.Evaluator
	decision  Decider
	mailbox   out.MailboxProviderFactory

	decideBackoff time.Duration
}

// NewProcessor creates a new Processor.
func NewProcessor(
	ruleRepo out.RuleRepository,
	logRepo out.ProcessingLogRepository,
	debugRepo out.DebugContentRepository,
	filters *filter.Evaluator,
	decision Decider,
	mailbox out.MailboxProviderFactory,
) *Processor {
	return &Processor{
		ruleRepo:      ruleRepo,
		logRepo:       logRepo,
		debugRepo:     debugRepo,
		filters:       filters,
		decision:      decision,
		mailbox:       mailbox,
		decideBackoff: time.Second,
	}
}

// decideWithRetry runs the AI decision with bounded exponential backoff.
// The failed status is recorded only after the attempts are exhausted.
func (p *Processor) decideWithRetry(ctx context.Context, rule *domain.Rule, email *domain.EmailMessage) (*agent.Decision, error) {
	var lastErr error
	for attempt := 0; attempt < decideAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(p.decideBackoff << (attempt - 1)):
			}
		}

		decision, err := p.decision.Decide(ctx, rule, email)
		if err == nil {
			return decision, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		logger.Warn("[Processor] decision attempt %d/%d for rule %s failed: %v",
			attempt+1, decideAttempts, rule.ID, err)
	}
	return nil, lastErr
}

// ProcessEmail runs the job's email through every rule it names. The
// deny-list check runs first and unconditionally; a match writes one
// user-level ledger entry and suppresses every rule. Reservation happens
// before any AI call, so a concurrent duplicate of the same job loses
// the insert and does nothing.
func (p *Processor) ProcessEmail(ctx context.Context, job *out.EmailProcessJob) (*ProcessResult, error) {
	email := job.Email
	result := &ProcessResult{GmailMessageID: email.ID}

	userDecision, err := p.filters.CheckUser(ctx, job.UserID, email.From)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate deny-list: %w", err)
	}
	if userDecision.Skip {
		entry, reserved, err := p.logRepo.Reserve(ctx, job.UserID, nil, email.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve user-level entry: %w", err)
		}
		if reserved {
			p.finalizeSkip(ctx, entry, email, userDecision.Reason, job.DebugMode)
			result.Skipped++
		}
		return result, nil
	}

	provider, err := p.mailbox.ForAccessToken(ctx, job.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox client: %w", err)
	}
	executor := tools.NewExecutor(provider)

	for i := range job.RuleIDs {
		ruleID := job.RuleIDs[i]

		rule, err := p.ruleRepo.GetByID(ctx, ruleID)
		if err != nil {
			logger.Warn("[Processor.ProcessEmail] rule %s gone, skipping: %v", ruleID, err)
			continue
		}
		if !rule.Discoverable() {
			continue
		}

		entry, reserved, err := p.logRepo.Reserve(ctx, job.UserID, &ruleID, email.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve entry for rule %s: %w", ruleID, err)
		}
		if !reserved {
			continue
		}

		ruleDecision := p.filters.CheckRule(email, rule)
		if ruleDecision.Skip {
			p.finalizeSkip(ctx, entry, email, ruleDecision.Reason, job.DebugMode)
			result.Skipped++
			continue
		}

		decision, err := p.decideWithRetry(ctx, rule, email)
		if err != nil {
			p.finalizeFailure(ctx, entry, email, err, job.DebugMode)
			result.Failed++
			continue
		}

		emailCtx := tools.EmailContext{ID: email.ID, From: email.From, Subject: email.Subject}
		actions := executor.ExecuteAll(ctx, decision.ToolCalls, emailCtx)

		p.finalizeProcessed(ctx, entry, email, decision.Summary, actions, job.UserID, job.DebugMode)
		result.Processed++
	}

	logger.Info("[Processor.ProcessEmail] user=%s message=%s processed=%d skipped=%d failed=%d",
		job.UserID, email.ID, result.Processed, result.Skipped, result.Failed)
	return result, nil
}

func (p *Processor) finalizeSkip(ctx context.Context, entry *domain.ProcessingLogEntry, email *domain.EmailMessage, reason string, debug bool) {
	now := time.Now()
	entry.Status = domain.StatusSkipped
	entry.Error = &reason
	entry.ProcessedAt = &now
	applyDebugContent(entry, email, "", debug)

	if err := p.logRepo.Finalize(ctx, entry); err != nil {
		logger.Error("[Processor] failed to finalize skipped entry %s: %v", entry.ID, err)
	}
}

func (p *Processor) finalizeFailure(ctx context.Context, entry *domain.ProcessingLogEntry, email *domain.EmailMessage, cause error, debug bool) {
	now := time.Now()
	msg := cause.Error()
	entry.Status = domain.StatusFailed
	entry.Error = &msg
	entry.ProcessedAt = &now
	applyDebugContent(entry, email, "", debug)

	if err := p.logRepo.Finalize(ctx, entry); err != nil {
		logger.Error("[Processor] failed to finalize failed entry %s: %v", entry.ID, err)
	}
}

func (p *Processor) finalizeProcessed(ctx context.Context, entry *domain.ProcessingLogEntry, email *domain.EmailMessage, summary string, actions []domain.ToolCallResult, userID string, debug bool) {
	now := time.Now()
	entry.Status = domain.StatusProcessed
	entry.Actions = actions
	entry.ProcessedAt = &now
	applyDebugContent(entry, email, summary, debug)

	if err := p.logRepo.Finalize(ctx, entry); err != nil {
		logger.Error("[Processor] failed to finalize processed entry %s: %v", entry.ID, err)
		return
	}

	if debug && p.debugRepo != nil {
		if err := p.debugRepo.Save(ctx, userID, entry.ID, email, summary); err != nil {
			logger.Warn("[Processor] failed to save debug content for %s: %v", entry.ID, err)
		}
	}
}

// applyDebugContent copies email content onto the entry only when the
// user opted in. The default stores no content at all.
func applyDebugContent(entry *domain.ProcessingLogEntry, email *domain.EmailMessage, aiResponse string, debug bool) {
	if !debug {
		return
	}
	subject := email.Subject
	from := email.From
	snippet := email.Snippet
	entry.Subject = &subject
	entry.From = &from
	entry.Snippet = &snippet
	if aiResponse != "" {
		entry.AIResponse = &aiResponse
	}
}
