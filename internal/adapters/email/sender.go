// Package email delivers lead-facing messages such as meeting invites.
package email

import (
	"context"
	"time"
)

// Attachment is a file sent alongside the message body.
type Attachment struct {
	Filename    string
	ContentType string // derived from Filename by the provider when empty
	Content     []byte
}

// SendRequest is one outgoing message to a lead.
type SendRequest struct {
	To          []string
	From        string // e.g. "Coach CRM <noreply@coachcrm.app>"; empty uses the sender default
	Subject     string
	HTML        string
	ReplyTo     string // the coach, so lead replies skip the CRM mailbox
	LeadID      string // tagged on the provider message when set
	Attachments []Attachment
}

// SendResult is what the provider reports for an accepted message.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers messages through an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
