package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/util"
)

// wsFrame is one message on the web-chat socket, both directions.
type wsFrame struct {
	Type   string   `json:"type"`
	UserID string   `json:"user_id,omitempty"`
	Text   string   `json:"text,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

// wsSender routes engine replies back over the socket instead of WhatsApp.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) SendMessage(ctx context.Context, _ string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsjson.Write(ctx, s.conn, wsFrame{Type: "message", Text: body})
}

func (s *wsSender) MarkRead(context.Context, string, string) error { return nil }

// wsHandler bridges a browser chat to the flow engine. The client first
// sends a set_user_id frame, then message/location frames; replies come back
// as message frames on the same socket.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.EngineForSender == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, respError("Web chat not configured"))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("Server.wsHandler: accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sender := &wsSender{conn: conn}
	engine, err := s.deps.EngineForSender(sender)
	if err != nil {
		s.logger.Error("Server.wsHandler: engine construction failed", "error", err)
		return
	}

	ctx := r.Context()
	userID := ""
	for {
		var frame wsFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			s.logger.Debug("Server.wsHandler: connection closed", "user", userID, "error", err)
			return
		}

		switch frame.Type {
		case "set_user_id":
			if frame.UserID == "" {
				_ = wsjson.Write(ctx, conn, wsFrame{Type: "error", Text: "user_id is required"})
				continue
			}
			// Web users live in their own id space so a browser session
			// never collides with a phone number.
			userID = "web:" + frame.UserID
			s.logger.Debug("Server.wsHandler: user bound", "user", userID)
		case "message", "location":
			if userID == "" {
				_ = wsjson.Write(ctx, conn, wsFrame{Type: "error", Text: "send set_user_id first"})
				continue
			}
			ev := models.Event{
				From:      userID,
				MessageID: util.GenerateEventID(),
				Timestamp: time.Now(),
			}
			if frame.Type == "message" {
				ev.Text = frame.Text
			} else {
				if frame.Lat == nil || frame.Lng == nil {
					_ = wsjson.Write(ctx, conn, wsFrame{Type: "error", Text: "lat and lng are required"})
					continue
				}
				ev.Location = &models.LatLng{Lat: *frame.Lat, Lng: *frame.Lng}
			}
			engine.HandleEvent(ctx, ev)
		default:
			_ = wsjson.Write(ctx, conn, wsFrame{Type: "error", Text: "unknown frame type"})
		}
	}
}
