// Package gmail provides the Gmail mailbox adapter.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

const (
	// Hard cap on messages considered in one scan, bounding its cost and
	// latency regardless of what the caller asks for.
	maxScanResults = 500

	pageSize = 100

	// Bounded concurrency for per-message hydration after a list page.
	fetchConcurrency = 5
)

// Factory builds providers bound to a user's access token.
type Factory struct{}

// NewFactory creates a Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ForAccessToken returns a provider authenticated as the token's user.
func (f *Factory) ForAccessToken(ctx context.Context, accessToken string) (out.MailboxProvider, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	service, err := gmailapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Provider{service: service}, nil
}

// Provider implements out.MailboxProvider for Gmail.
type Provider struct {
	service *gmailapi.Service

	// Sender address, fetched lazily for the From header on send.
	email string
}

// buildQuery renders a ListQuery as a Gmail search expression. The afterDate
// bound is a server-side filter; old mail is never retrieved and discarded
// client-side.
func buildQuery(query *out.ListQuery) string {
	var parts []string
	if query.UnreadOnly {
		parts = append(parts, "is:unread")
	}
	if query.InboxOnly {
		parts = append(parts, "in:inbox")
	}
	if !query.AfterDate.IsZero() {
		// Gmail's after: operator takes epoch seconds.
		parts = append(parts, fmt.Sprintf("after:%d", query.AfterDate.Unix()))
	}
	return strings.Join(parts, " ")
}

// ListCandidateMessages pages through the mailbox up to MaxResults (capped at
// 500) and returns hydrated message snapshots in list order.
func (p *Provider) ListCandidateMessages(ctx context.Context, query *out.ListQuery) ([]*domain.EmailMessage, error) {
	limit := query.MaxResults
	if limit <= 0 || limit > maxScanResults {
		limit = maxScanResults
	}

	q := buildQuery(query)
	var ids []string
	pageToken := ""

	for len(ids) < limit {
		req := p.service.Users.Messages.List("me").MaxResults(int64(pageSize))
		if q != "" {
			req = req.Q(q)
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		resp, err := req.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if len(ids) == limit {
				break
			}
		}
		if resp.NextPageToken == "" || len(ids) == limit {
			break
		}
		pageToken = resp.NextPageToken
	}

	return p.fetchAll(ctx, ids)
}

// fetchAll hydrates message ids with bounded concurrency, preserving order.
// Individual fetch failures drop that message from the scan rather than
// failing the whole batch.
func (p *Provider) fetchAll(ctx context.Context, ids []string) ([]*domain.EmailMessage, error) {
	if len(ids) == 0 {
		return []*domain.EmailMessage{}, nil
	}

	type result struct {
		index int
		msg   *domain.EmailMessage
	}

	results := make(chan result, len(ids))
	semaphore := make(chan struct{}, fetchConcurrency)

	for i, id := range ids {
		go func(idx int, msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			msg, err := p.getMessage(ctx, msgID)
			if err != nil {
				results <- result{index: idx}
				return
			}
			results <- result{index: idx, msg: msg}
		}(i, id)
	}

	ordered := make([]*domain.EmailMessage, len(ids))
	for range ids {
		r := <-results
		ordered[r.index] = r.msg
	}

	messages := make([]*domain.EmailMessage, 0, len(ids))
	for _, msg := range ordered {
		if msg != nil {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (p *Provider) getMessage(ctx context.Context, messageID string) (*domain.EmailMessage, error) {
	msg, err := p.service.Users.Messages.Get("me", messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return parseMessage(msg), nil
}

// Send delivers one message. When req.ReplyToID is set the send is threaded
// onto that message's conversation with In-Reply-To/References headers.
func (p *Provider) Send(ctx context.Context, req *out.SendRequest) (*out.SendResult, error) {
	from, err := p.senderAddress(ctx)
	if err != nil {
		return nil, err
	}

	headers := []string{
		"From: " + from,
		"To: " + req.To,
		"Subject: " + req.Subject,
		"Content-Type: text/plain; charset=utf-8",
	}

	var threadID string
	if req.ReplyToID != "" {
		original, err := p.service.Users.Messages.Get("me", req.ReplyToID).
			Format("metadata").
			MetadataHeaders("Message-ID").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get original message: %w", err)
		}
		if original.Payload != nil {
			for _, h := range original.Payload.Headers {
				if h.Name == "Message-ID" {
					headers = append(headers, "In-Reply-To: "+h.Value, "References: "+h.Value)
				}
			}
		}
		threadID = original.ThreadId
	}

	raw := strings.Join(append(headers, "", req.Body), "\r\n")
	sent, err := p.service.Users.Messages.Send("me", &gmailapi.Message{
		Raw:      base64.RawURLEncoding.EncodeToString([]byte(raw)),
		ThreadId: threadID,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &out.SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

func (p *Provider) senderAddress(ctx context.Context) (string, error) {
	if p.email != "" {
		return p.email, nil
	}
	profile, err := p.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	p.email = profile.EmailAddress
	return p.email, nil
}

// AddLabel resolves labelName to an id, creating the label when missing, then
// applies it to the message.
func (p *Provider) AddLabel(ctx context.Context, messageID, labelName, hexColor string) (string, error) {
	labelID, err := p.getOrCreateLabel(ctx, labelName, hexColor)
	if err != nil {
		return "", err
	}
	_, err = p.service.Users.Messages.Modify("me", messageID, &gmailapi.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to add label: %w", err)
	}
	return labelID, nil
}

// getOrCreateLabel is race-tolerant: two workers creating the same label name
// concurrently both succeed, the loser resolving the winner's id.
func (p *Provider) getOrCreateLabel(ctx context.Context, labelName, hexColor string) (string, error) {
	if id, err := p.findLabel(ctx, labelName); err != nil || id != "" {
		return id, err
	}

	label := &gmailapi.Label{
		Name:                  labelName,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}
	if hexColor != "" {
		label.Color = &gmailapi.LabelColor{BackgroundColor: hexColor, TextColor: "#ffffff"}
	}

	created, err := p.service.Users.Labels.Create("me", label).Context(ctx).Do()
	if err == nil {
		return created.Id, nil
	}

	// Conflict means another worker won the creation race; look it up.
	if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 409 {
		id, lookupErr := p.findLabel(ctx, labelName)
		if lookupErr == nil && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to create label: %w", err)
}

func (p *Provider) findLabel(ctx context.Context, labelName string) (string, error) {
	resp, err := p.service.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, labelName) {
			return l.Id, nil
		}
	}
	return "", nil
}

// Archive removes the message from the inbox.
func (p *Provider) Archive(ctx context.Context, messageID string) error {
	return p.modify(ctx, messageID, nil, []string{domain.LabelInbox})
}

// MarkRead marks the message as read.
func (p *Provider) MarkRead(ctx context.Context, messageID string) error {
	return p.modify(ctx, messageID, nil, []string{domain.LabelUnread})
}

// MarkUnread marks the message as unread.
func (p *Provider) MarkUnread(ctx context.Context, messageID string) error {
	return p.modify(ctx, messageID, []string{domain.LabelUnread}, nil)
}

// Star stars the message.
func (p *Provider) Star(ctx context.Context, messageID string) error {
	return p.modify(ctx, messageID, []string{domain.LabelStarred}, nil)
}

// Unstar removes the star.
func (p *Provider) Unstar(ctx context.Context, messageID string) error {
	return p.modify(ctx, messageID, nil, []string{domain.LabelStarred})
}

func (p *Provider) modify(ctx context.Context, messageID string, add, remove []string) error {
	_, err := p.service.Users.Messages.Modify("me", messageID, &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	return err
}

// Helper functions

func parseMessage(msg *gmailapi.Message) *domain.EmailMessage {
	em := &domain.EmailMessage{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		ReceivedAt: time.Unix(msg.InternalDate/1000, 0),
		LabelIDs:   msg.LabelIds,
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "Subject":
				em.Subject = header.Value
			case "From":
				em.From = header.Value
			}
		}
		em.Body = parseBody(msg.Payload)
	}
	if em.Subject == "" {
		em.Subject = "(No Subject)"
	}
	return em
}

// parseBody prefers text/plain and falls back to text/html, descending into
// multipart payloads.
func parseBody(payload *gmailapi.MessagePart) string {
	text, html := collectBody(payload)
	if text != "" {
		return text
	}
	return html
}

func collectBody(payload *gmailapi.MessagePart) (text, html string) {
	if payload == nil {
		return "", ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		data, err := decodeBody(payload.Body.Data)
		if err == nil {
			switch payload.MimeType {
			case "text/plain":
				text = string(data)
			case "text/html":
				html = string(data)
			}
		}
	}

	for _, part := range payload.Parts {
		t, h := collectBody(part)
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
	}
	return text, html
}

// decodeBody accepts both padded and unpadded base64url payloads.
func decodeBody(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

var _ out.MailboxProvider = (*Provider)(nil)
var _ out.MailboxProviderFactory = (*Factory)(nil)
