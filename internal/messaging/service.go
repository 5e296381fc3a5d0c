// Package messaging provides the WhatsApp transport layer: the Evolution API
// gateway client used in production and a direct whatsmeow connection for
// single-instance deployments, both behind one Service interface.
package messaging

import (
	"context"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// Service defines a pluggable WhatsApp transport abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	// This allows each service to implement its own recipient validation rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient, simulating human
	// typing cadence before delivery.
	SendMessage(ctx context.Context, to string, body string) error

	// MarkRead acknowledges an inbound message as read, when the transport
	// supports it.
	MarkRead(ctx context.Context, from, messageID string) error

	// Start begins any background processing (e.g., socket event handling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of inbound conversation events. Transports
	// that deliver only through webhooks return a nil channel.
	Events() <-chan models.Event
}
