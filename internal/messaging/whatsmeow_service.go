// This file implements the direct whatsmeow transport. It translates socket
// events into the shared Event model and feeds them to the conversation
// engine through a channel.
package messaging

import (
	"context"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/whatsapp"
)

// Constants for WhatsmeowService configuration
const (
	// DefaultChannelBufferSize defines the buffer size for the events channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// WhatsmeowService implements Service using the whatsmeow-based client.
type WhatsmeowService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // full client, needed for events and media
	events   chan models.Event
	done     chan struct{}

	sleep func(time.Duration)
}

// NewWhatsmeowService creates a service wrapping the given sender. Event
// handling and media download require the full client; a bare Sender (mock)
// still supports outbound sends.
func NewWhatsmeowService(client whatsapp.Sender) *WhatsmeowService {
	service := &WhatsmeowService{
		client: client,
		events: make(chan models.Event, DefaultChannelBufferSize),
		done:   make(chan struct{}),
		sleep:  time.Sleep,
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsmeowService created with full client for event handling")
	} else {
		slog.Debug("WhatsmeowService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient accepts a phone number or JID and returns
// the canonical JID form.
func (s *WhatsmeowService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	number := jidNumber(recipient)
	if len(number) < 8 {
		return "", models.ErrEmptyRecipient
	}
	return number + "@" + whatsapp.JIDSuffix, nil
}

// SendMessage delivers a text message after a typing-sized pause.
func (s *WhatsmeowService) SendMessage(ctx context.Context, to string, body string) error {
	if body == "" {
		return models.ErrEmptyMessageBody
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	s.sleep(TypingDelay(len(body)))
	if err := s.client.SendMessage(ctx, jidNumber(canonical), body); err != nil {
		slog.Error("WhatsmeowService SendMessage error", "error", err, "to", to)
		return err
	}
	slog.Debug("WhatsmeowService message sent", "to", to, "chars", len(body))
	return nil
}

// MarkRead acknowledges the inbound message.
func (s *WhatsmeowService) MarkRead(ctx context.Context, from, messageID string) error {
	if s.waClient == nil || messageID == "" {
		return nil
	}
	return s.waClient.MarkRead(ctx, jidNumber(from), messageID)
}

// Start registers the socket event handler.
func (s *WhatsmeowService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsmeowService no full client available, skipping event handling")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(ctx, msg)
		}
	})
	slog.Debug("WhatsmeowService event handler registered")
	return nil
}

// Stop shuts down event forwarding.
func (s *WhatsmeowService) Stop() error {
	close(s.done)
	close(s.events)
	slog.Info("WhatsmeowService stopped")
	return nil
}

// Events returns the inbound event channel.
func (s *WhatsmeowService) Events() <-chan models.Event {
	return s.events
}

// handleIncomingMessage translates a socket message into an Event. Text,
// location pins and voice notes are forwarded; everything else is ignored.
func (s *WhatsmeowService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	event := models.Event{
		From:      evt.Info.Sender.User + "@" + whatsapp.JIDSuffix,
		MessageID: string(evt.Info.ID),
		Timestamp: evt.Info.Timestamp,
	}

	switch {
	case evt.Message.Conversation != nil && *evt.Message.Conversation != "":
		event.Text = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		event.Text = *evt.Message.ExtendedTextMessage.Text
	case evt.Message.LocationMessage != nil:
		loc := evt.Message.LocationMessage
		event.Location = &models.LatLng{
			Lat: loc.GetDegreesLatitude(),
			Lng: loc.GetDegreesLongitude(),
		}
	case evt.Message.AudioMessage != nil:
		audio := evt.Message.AudioMessage
		encoded, err := s.waClient.DownloadAudioBase64(ctx, audio)
		if err != nil {
			slog.Error("WhatsmeowService audio download failed", "from", event.From, "error", err)
			return
		}
		event.Audio = &models.Audio{Base64: encoded, MimeType: audio.GetMimetype()}
	default:
		slog.Debug("WhatsmeowService ignoring unsupported message type", "from", event.From)
		return
	}

	select {
	case s.events <- event:
		slog.Debug("WhatsmeowService event forwarded", "from", event.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsmeowService events channel blocked, dropping message", "from", event.From)
	}
}
