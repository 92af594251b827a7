package mailbox

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func TestBuildQuery(t *testing.T) {
	since := time.Unix(1755648000, 0)

	assert.Equal(t, "from:(wise.com OR paypal.com) after:1755648000",
		buildQuery(since, []string{"wise.com", "paypal.com"}))
	assert.Equal(t, "after:1755648000", buildQuery(since, nil))
}

func TestMessageToRawEmail(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte("You received 100.50 USD from Jane Doe"))
	html := base64.URLEncoding.EncodeToString([]byte("<p>You received 100.50 USD</p>"))

	msg := &gmail.Message{
		Id: "gm1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "noreply@wise.com"},
				{Name: "To", Value: "me@example.com"},
				{Name: "Subject", Value: "You received money"},
				{Name: "Date", Value: "Wed, 20 Aug 2025 10:15:00 +0000"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: body},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: html},
				},
			},
		},
	}

	raw := messageToRawEmail(msg)
	assert.Equal(t, "gm1", raw.MessageID)
	assert.Equal(t, "noreply@wise.com", raw.From)
	assert.Equal(t, "me@example.com", raw.To)
	assert.Equal(t, "You received money", raw.Subject)
	assert.Equal(t, time.Date(2025, 8, 20, 10, 15, 0, 0, time.UTC), raw.ReceivedAt.UTC())
	assert.Equal(t, "You received 100.50 USD from Jane Doe", raw.Body)
	assert.Equal(t, "<p>You received 100.50 USD</p>", raw.HTMLBody)
}

func TestMessageToRawEmail_InternalDateFallback(t *testing.T) {
	msg := &gmail.Message{
		Id:           "gm2",
		InternalDate: 1755684900000,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "noreply@wise.com"},
			},
			Body: &gmail.MessagePartBody{
				// Unpadded base64url, as the API sometimes returns.
				Data: base64.RawURLEncoding.EncodeToString([]byte("hi")),
			},
		},
	}

	raw := messageToRawEmail(msg)
	assert.Equal(t, time.UnixMilli(1755684900000), raw.ReceivedAt)
	assert.Equal(t, "hi", raw.Body)
}

func TestCollectParts_Nested(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body: &gmail.MessagePartBody{
							Data: base64.URLEncoding.EncodeToString([]byte("plain")),
						},
					},
				},
			},
			{
				MimeType: "application/pdf",
				Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("%PDF"))},
			},
		},
	}

	plain, html := collectParts(part)
	assert.Equal(t, "plain", plain)
	assert.Empty(t, html)
}
