package gmail

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/pretzelai/email-use/core/port/out"
)

func TestBuildQuery(t *testing.T) {
	after := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query out.ListQuery
		want  string
	}{
		{
			"all filters",
			out.ListQuery{AfterDate: after, UnreadOnly: true, InboxOnly: true},
			fmt.Sprintf("is:unread in:inbox after:%d", after.Unix()),
		},
		{
			"after only",
			out.ListQuery{AfterDate: after},
			fmt.Sprintf("after:%d", after.Unix()),
		},
		{
			"no filters",
			out.ListQuery{},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(&tt.query); got != tt.want {
				t.Errorf("buildQuery = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMessage(t *testing.T) {
	received := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	body := base64.URLEncoding.EncodeToString([]byte("plain body"))

	msg := &gmailapi.Message{
		Id:           "m1",
		ThreadId:     "t1",
		Snippet:      "plain...",
		InternalDate: received.UnixMilli(),
		LabelIds:     []string{"INBOX", "UNREAD"},
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "Hello"},
				{Name: "From", Value: "Jane <jane@example.com>"},
			},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: body}},
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<p>html</p>"))}},
			},
		},
	}

	em := parseMessage(msg)
	if em.ID != "m1" || em.ThreadID != "t1" {
		t.Errorf("ids not carried: %+v", em)
	}
	if em.Subject != "Hello" || em.From != "Jane <jane@example.com>" {
		t.Errorf("headers not parsed: %+v", em)
	}
	if em.Body != "plain body" {
		t.Errorf("body = %q, want plain text preferred over html", em.Body)
	}
	if !em.ReceivedAt.Equal(received) {
		t.Errorf("receivedAt = %v, want %v", em.ReceivedAt, received)
	}
	if !em.HasLabel("UNREAD") {
		t.Error("labels not carried")
	}
}

func TestParseMessageFallbacks(t *testing.T) {
	em := parseMessage(&gmailapi.Message{
		Id: "m2",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/html",
			Body:     &gmailapi.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("<b>hi</b>"))},
		},
	})
	if em.Subject != "(No Subject)" {
		t.Errorf("missing subject fallback: %q", em.Subject)
	}
	if em.Body != "<b>hi</b>" {
		t.Errorf("html fallback body = %q", em.Body)
	}
}
