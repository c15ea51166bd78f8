// Package notify defines the outbound message collaborator. Delivery,
// retries, and provider selection are the implementation's concern; the
// auth engine only hands over a destination and a message.
package notify

import "context"

// Notifier delivers messages to a destination outside the process.
type Notifier interface {
	// SendEmail delivers an email message.
	SendEmail(ctx context.Context, to, subject, body string) error
	// SendSMS delivers a text message.
	SendSMS(ctx context.Context, to, body string) error
}

// Noop discards every message. Useful for tests and for deployments that
// have no delivery channel configured.
type Noop struct{}

// SendEmail discards the message.
func (Noop) SendEmail(context.Context, string, string, string) error { return nil }

// SendSMS discards the message.
func (Noop) SendSMS(context.Context, string, string) error { return nil }
