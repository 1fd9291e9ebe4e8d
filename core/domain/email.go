package domain

import "time"

// Well-known Gmail system label ids the pipeline branches on.
const (
	LabelInbox     = "INBOX"
	LabelUnread    = "UNREAD"
	LabelStarred   = "STARRED"
	LabelImportant = "IMPORTANT"
)

// EmailMessage is a transient snapshot of a mailbox message at fetch time.
// It is re-derived from the provider on every scan; the system holds no
// authoritative copy.
type EmailMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	Snippet    string    `json:"snippet"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
	LabelIDs   []string  `json:"labelIds"`
}

// HasLabel reports whether the snapshot carried the given label id.
func (m *EmailMessage) HasLabel(id string) bool {
	for _, l := range m.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}

// Content returns the best available text for the AI decision step.
func (m *EmailMessage) Content() string {
	if m.Body != "" {
		return m.Body
	}
	return m.Snippet
}
