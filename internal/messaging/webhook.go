package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// webhookPayload mirrors the Evolution API messages.upsert delivery.
type webhookPayload struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		Message struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage *struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
			LocationMessage *struct {
				DegreesLatitude  float64 `json:"degreesLatitude"`
				DegreesLongitude float64 `json:"degreesLongitude"`
			} `json:"locationMessage"`
			AudioMessage *struct {
				Mimetype string `json:"mimetype"`
			} `json:"audioMessage"`
			Base64 string `json:"base64"`
		} `json:"message"`
		MessageTimestamp int64 `json:"messageTimestamp"`
	} `json:"data"`
}

// ParseWebhookEvent decodes an Evolution webhook delivery into an Event.
// Returns nil for deliveries that are not inbound messages (status updates,
// group noise, the bot's own sends).
func ParseWebhookEvent(raw []byte) (*models.Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("messaging: failed to decode webhook payload: %w", err)
	}
	if payload.Event != "" && payload.Event != "messages.upsert" {
		return nil, nil
	}
	if payload.Data.Key.RemoteJID == "" || payload.Data.Key.FromMe {
		return nil, nil
	}
	if strings.HasSuffix(payload.Data.Key.RemoteJID, "@g.us") {
		return nil, nil
	}

	evt := &models.Event{
		From:       payload.Data.Key.RemoteJID,
		MessageID:  payload.Data.Key.ID,
		InstanceID: payload.Instance,
		FromSelf:   payload.Data.Key.FromMe,
	}
	if payload.Data.MessageTimestamp > 0 {
		evt.Timestamp = time.Unix(payload.Data.MessageTimestamp, 0)
	} else {
		evt.Timestamp = time.Now()
	}

	msg := payload.Data.Message
	switch {
	case msg.Conversation != "":
		evt.Text = msg.Conversation
	case msg.ExtendedTextMessage != nil && msg.ExtendedTextMessage.Text != "":
		evt.Text = msg.ExtendedTextMessage.Text
	case msg.LocationMessage != nil:
		evt.Location = &models.LatLng{
			Lat: msg.LocationMessage.DegreesLatitude,
			Lng: msg.LocationMessage.DegreesLongitude,
		}
	case msg.AudioMessage != nil:
		evt.Audio = &models.Audio{
			Base64:   msg.Base64,
			MimeType: msg.AudioMessage.Mimetype,
		}
	}
	return evt, nil
}
