// Package auth manages the Gmail OAuth lifecycle for connected mailboxes.
package auth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/pkg/logger"
)

// Scopes requested from Google. Modify covers label and read-state
// mutations, send covers outbound replies.
var gmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/userinfo.email",
}

// refreshSkew refreshes tokens that expire within this window.
const refreshSkew = 5 * time.Minute

func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// OAuthService handles mailbox connect, token refresh, and disconnect.
type OAuthService struct {
	credRepo out.CredentialRepository
	config   *oauth2.Config
}

// Config holds Google OAuth client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewOAuthService creates a new OAuthService.
func NewOAuthService(credRepo out.CredentialRepository, cfg Config) *OAuthService {
	return &OAuthService{
		credRepo: credRepo,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       gmailScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the Google consent page URL. Offline access and
// forced approval are required so a refresh token is always issued.
func (s *OAuthService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the auth code and stores the credential.
// Reconnecting an already-known user replaces the stored tokens and
// resets the connection timestamp.
func (s *OAuthService) HandleCallback(ctx context.Context, userID, code string) (*domain.MailboxCredential, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	email, err := s.fetchEmail(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get user email: %w", err)
	}

	now := time.Now()
	cred := &domain.MailboxCredential{
		UserID:       userID,
		Email:        email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		ConnectedAt:  now,
		IsConnected:  true,
		UpdatedAt:    now,
	}

	if err := s.credRepo.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	logger.Info("[OAuthService.HandleCallback] Connected mailbox %s for user %s", email, userID)
	return cred, nil
}

func (s *OAuthService) fetchEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	client := s.config.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var userInfo struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(resp.Body, &userInfo); err != nil {
		return "", err
	}
	return userInfo.Email, nil
}

// Status returns the stored credential for a user.
func (s *OAuthService) Status(ctx context.Context, userID string) (*domain.MailboxCredential, error) {
	return s.credRepo.GetByUserID(ctx, userID)
}

// Disconnect marks the user's mailbox as disconnected.
func (s *OAuthService) Disconnect(ctx context.Context, userID string) error {
	return s.credRepo.MarkDisconnected(ctx, userID)
}

// isTokenExpiredError checks if the error indicates a permanent token
// failure that cannot be fixed by retrying.
func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid_client") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "Token has been expired or revoked") ||
		strings.Contains(errStr, "Token has been revoked")
}

// EnsureFreshToken returns a valid access token for the user, refreshing
// it against Google when it is expired or about to expire. A permanently
// revoked grant marks the credential disconnected and returns
// domain.ErrTokenExpired.
func (s *OAuthService) EnsureFreshToken(ctx context.Context, cred *domain.MailboxCredential) (string, error) {
	if time.Until(cred.ExpiresAt) >= refreshSkew {
		return cred.AccessToken, nil
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
	}

	newToken, err := s.config.TokenSource(ctx, token).Token()
	if err != nil {
		if isTokenExpiredError(err) {
			logger.Warn("[OAuthService.EnsureFreshToken] Token revoked for user %s, marking disconnected: %v", cred.UserID, err)
			if markErr := s.credRepo.MarkDisconnected(ctx, cred.UserID); markErr != nil {
				logger.Error("[OAuthService.EnsureFreshToken] Failed to mark disconnected: %v", markErr)
			}
			return "", domain.ErrTokenExpired
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := s.credRepo.UpdateTokens(ctx, cred.UserID, newToken.AccessToken, newToken.Expiry); err != nil {
		return "", fmt.Errorf("failed to update token: %w", err)
	}

	cred.AccessToken = newToken.AccessToken
	cred.ExpiresAt = newToken.Expiry

	logger.Debug("[OAuthService.EnsureFreshToken] Token refreshed for user %s", cred.UserID)
	return newToken.AccessToken, nil
}
