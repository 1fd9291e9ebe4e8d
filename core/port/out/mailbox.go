package out

import (
	"context"
	"time"

	"github.com/pretzelai/email-use/core/domain"
)

// ListQuery narrows a candidate fetch. AfterDate is applied server-side by
// the provider, never as a client-side post-filter.
type ListQuery struct {
	AfterDate  time.Time
	UnreadOnly bool
	InboxOnly  bool
	MaxResults int
}

// SendRequest is one outbound message. ReplyToID, when set, threads the send
// as a reply to that message.
type SendRequest struct {
	To        string
	Subject   string
	Body      string
	ReplyToID string
}

// SendResult reports the provider ids of a sent message.
type SendResult struct {
	MessageID string `json:"messageId"`
	ThreadID  string `json:"threadId"`
}

// MailboxProvider is the mail provider port. Label and flag mutations are
// idempotent at the provider; Send is not.
type MailboxProvider interface {
	ListCandidateMessages(ctx context.Context, query *ListQuery) ([]*domain.EmailMessage, error)
	Send(ctx context.Context, req *SendRequest) (*SendResult, error)
	// AddLabel resolves labelName to a label id, creating it if needed, and
	// applies it. Creation is race-tolerant: "already exists" is success.
	AddLabel(ctx context.Context, messageID, labelName, hexColor string) (labelID string, err error)
	Archive(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, messageID string) error
	MarkUnread(ctx context.Context, messageID string) error
	Star(ctx context.Context, messageID string) error
	Unstar(ctx context.Context, messageID string) error
}

// MailboxProviderFactory builds a provider bound to one user's access token.
type MailboxProviderFactory interface {
	ForAccessToken(ctx context.Context, accessToken string) (MailboxProvider, error)
}
