// Package discovery implements the per-user inbox scan and the per-email
// rule-processing pipeline.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/pkg/logger"
)

// maxScanResults bounds one scan invocation. A sweep tick never pages
// past this; the next tick picks up where the ledger says work remains.
const maxScanResults = 500

// DiscoveryStatus classifies the outcome of one scan invocation.
type DiscoveryStatus string

const (
	StatusCompleted    DiscoveryStatus = "completed"
	StatusNoRules      DiscoveryStatus = "no_rules"
	StatusNotConnected DiscoveryStatus = "not_connected"
	StatusNeedsReauth  DiscoveryStatus = "needs_reauth"
)

// DiscoveryResult summarizes one user's scan.
type DiscoveryResult struct {
	UserID     string          `json:"user_id"`
	Status     DiscoveryStatus `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Candidates int             `json:"candidates"`
	Enqueued   int             `json:"enqueued"`
}

// TokenRefresher returns a usable access token for a credential,
// refreshing it when needed. auth.OAuthService satisfies this.
type TokenRefresher interface {
	EnsureFreshToken(ctx context.Context, cred *domain.MailboxCredential) (string, error)
}

// Service is the discovery orchestrator. The scheduled sweep and the
// manual trigger both route through DiscoverForUser.
type Service struct {
	credRepo     out.CredentialRepository
	ruleRepo     out.RuleRepository
	logRepo      out.ProcessingLogRepository
	settingsRepo out.SettingsRepository
	oauth        TokenRefresher
	mailbox      out.MailboxProviderFactory
	producer     out.JobProducer
}

// NewService creates a new discovery Service.
func NewService(
	credRepo out.CredentialRepository,
	ruleRepo out.RuleRepository,
	logRepo out.ProcessingLogRepository,
	settingsRepo out.SettingsRepository,
	oauth TokenRefresher,
	mailbox out.MailboxProviderFactory,
	producer out.JobProducer,
) *Service {
	return &Service{
		credRepo:     credRepo,
		ruleRepo:     ruleRepo,
		logRepo:      logRepo,
		settingsRepo: settingsRepo,
		oauth:        oauth,
		mailbox:      mailbox,
		producer:     producer,
	}
}

// DiscoverForUser runs one scan for one user: token check, rule load,
// candidate fetch, and one enqueued processing job per email that still
// has unprocessed work. It never mutates the mailbox itself.
func (s *Service) DiscoverForUser(ctx context.Context, userID string) (*DiscoveryResult, error) {
	result := &DiscoveryResult{UserID: userID, Status: StatusCompleted}

	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			result.Status = StatusNotConnected
			result.Reason = "no mailbox connected"
			return result, nil
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if !cred.IsConnected {
		result.Status = StatusNotConnected
		result.Reason = "mailbox disconnected"
		return result, nil
	}

	accessToken, err := s.oauth.EnsureFreshToken(ctx, cred)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			result.Status = StatusNeedsReauth
			result.Reason = "token revoked, user must reconnect mailbox"
			return result, nil
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	rules, err := s.ruleRepo.ListDiscoverable(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rules) == 0 {
		result.Status = StatusNoRules
		result.Reason = "no active published rules"
		return result, nil
	}

	provider, err := s.mailbox.ForAccessToken(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox client: %w", err)
	}

	// Narrowing the server-side fetch is only safe when every rule agrees.
	// Per-rule filtering during processing stays authoritative either way.
	emails, err := provider.ListCandidateMessages(ctx, &out.ListQuery{
		AfterDate:  cred.ConnectedAt,
		UnreadOnly: allSkipRead(rules),
		InboxOnly:  allSkipArchived(rules),
		MaxResults: maxScanResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate messages: %w", err)
	}
	result.Candidates = len(emails)

	settings, err := s.settingsRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	ruleIDs := make([]uuid.UUID, len(rules))
	for i, r := range rules {
		ruleIDs[i] = r.ID
	}

	for _, email := range emails {
		pending, err := s.hasPendingWork(ctx, userID, ruleIDs, email.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check ledger for %s: %w", email.ID, err)
		}
		if !pending {
			continue
		}

		job := &out.EmailProcessJob{
			UserID:      userID,
			AccessToken: accessToken,
			Email:       email,
			RuleIDs:     ruleIDs,
			DebugMode:   settings.DebugMode,
		}
		if err := s.producer.PublishEmailProcess(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to enqueue email %s: %w", email.ID, err)
		}
		result.Enqueued++
	}

	logger.Info("[Discovery.DiscoverForUser] user=%s candidates=%d enqueued=%d", userID, result.Candidates, result.Enqueued)
	return result, nil
}

// DiscoverAll enqueues one discovery job per connected mailbox. This is
// the scheduled sweep entry point; per-user work happens in the workers.
func (s *Service) DiscoverAll(ctx context.Context) (int, error) {
	creds, err := s.credRepo.ListConnected(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list connected mailboxes: %w", err)
	}

	enqueued := 0
	for _, cred := range creds {
		if err := s.producer.PublishDiscovery(ctx, &out.DiscoveryJob{UserID: cred.UserID}); err != nil {
			logger.Error("[Discovery.DiscoverAll] failed to enqueue user %s: %v", cred.UserID, err)
			continue
		}
		enqueued++
	}

	logger.Info("[Discovery.DiscoverAll] enqueued %d of %d connected users", enqueued, len(creds))
	return enqueued, nil
}

// hasPendingWork reports whether any rule still has to act on the
// message. A user-level ledger entry suppresses everything.
func (s *Service) hasPendingWork(ctx context.Context, userID string, ruleIDs []uuid.UUID, messageID string) (bool, error) {
	userSkipped, err := s.logRepo.IsProcessed(ctx, userID, nil, messageID)
	if err != nil {
		return false, err
	}
	if userSkipped {
		return false, nil
	}

	for i := range ruleIDs {
		done, err := s.logRepo.IsProcessed(ctx, userID, &ruleIDs[i], messageID)
		if err != nil {
			return false, err
		}
		if !done {
			return true, nil
		}
	}
	return false, nil
}

func allSkipRead(rules []*domain.Rule) bool {
	for _, r := range rules {
		if !r.SkipRead {
			return false
		}
	}
	return true
}

func allSkipArchived(rules []*domain.Rule) bool {
	for _, r := range rules {
		if !r.SkipArchived {
			return false
		}
	}
	return true
}
