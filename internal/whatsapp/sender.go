// Package whatsapp delivers messages over WhatsApp Web through a
// browser-automation client.
package whatsapp

import (
	"context"
	"time"
)

// Delivery statuses. A Sender never returns a Go error for normal
// conditions: invalid or unregistered numbers come back as "skipped",
// transient delivery problems as "failed".
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// SendResult is the structured outcome of one delivery attempt.
type SendResult struct {
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender is the message-delivery collaborator. Implementations validate and
// normalize the phone number and check channel registration before
// attempting delivery.
type Sender interface {
	Send(ctx context.Context, phone, message string) SendResult
	Ready() bool
}

func skipped(phone, reason string) SendResult {
	return SendResult{Phone: phone, Status: StatusSkipped, Error: reason, Timestamp: time.Now().UTC()}
}

func failed(phone, reason string) SendResult {
	return SendResult{Phone: phone, Status: StatusFailed, Error: reason, Timestamp: time.Now().UTC()}
}

func sent(phone string) SendResult {
	return SendResult{Phone: phone, Status: StatusSent, Timestamp: time.Now().UTC()}
}
