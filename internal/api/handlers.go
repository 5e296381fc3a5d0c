package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iae-bsb/iae-bot/internal/messaging"
	"github.com/iae-bsb/iae-bot/internal/models"
)

// webhookBodyLimit caps how much of an Evolution delivery is read. Audio
// payloads arrive base64-inline, so the limit is generous.
const webhookBodyLimit = 20 << 20

// webhookHandler accepts an Evolution delivery, acknowledges immediately,
// and dispatches the event in the background. The gateway retries on slow
// responses, so handling must not block the 200.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		s.logger.Warn("Server.webhookHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, respError("Failed to read request body"))
		return
	}

	ev, err := messaging.ParseWebhookEvent(body)
	if err != nil {
		s.logger.Warn("Server.webhookHandler: failed to parse payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, respError("Invalid webhook payload"))
		return
	}
	if ev == nil {
		// Not an inbound message; acknowledge so the gateway stops retrying.
		writeJSONResponse(w, http.StatusOK, respOK(nil))
		return
	}

	s.logger.Debug("Server.webhookHandler: dispatching event",
		"from", ev.From, "message_id", ev.MessageID, "has_text", ev.HasText())
	go s.deps.Handler.HandleEvent(context.Background(), *ev)

	writeJSONResponse(w, http.StatusOK, respOK(nil))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, respOK(map[string]string{"status": "healthy"}))
}

// techStatusHandler reports a component inventory without touching the
// network.
func (s *Server) techStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	}
	if s.deps.Sessions != nil {
		status["active_sessions"] = s.deps.Sessions.Len()
	}
	if s.deps.Sponsors != nil {
		status["active_sponsors"] = len(s.deps.Sponsors.ActiveByID())
	}
	probes := make([]string, 0, len(s.deps.Probes))
	for name := range s.deps.Probes {
		probes = append(probes, name)
	}
	status["probe_targets"] = probes
	writeJSONResponse(w, http.StatusOK, respOK(status))
}

// techTestHandler runs the live probe named by ?target=, or all of them.
func (s *Server) techTestHandler(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	results := make(map[string]string)
	for name, probe := range s.deps.Probes {
		if target != "" && name != target {
			continue
		}
		if err := probe(ctx); err != nil {
			s.logger.Warn("Server.techTestHandler: probe failed", "target", name, "error", err)
			results[name] = err.Error()
		} else {
			results[name] = "ok"
		}
	}
	if target != "" && len(results) == 0 {
		writeJSONResponse(w, http.StatusNotFound, respError("Unknown probe target"))
		return
	}
	writeJSONResponse(w, http.StatusOK, respOK(results))
}

// activeUserWindow bounds the "active users" KPI on /admin/metrics.
const activeUserWindow = 24 * time.Hour

// recentUsersLimit caps the recent-user list on /admin/metrics.
const recentUsersLimit = 10

// adminMetricsHandler aggregates the telemetry sink into dashboard KPIs,
// plus durable store aggregates when a database is wired in.
func (s *Server) adminMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, respError("Metrics sink not configured"))
		return
	}
	data := s.deps.Metrics.Snapshot()

	totalMessages := 0
	for _, u := range data.Users {
		totalMessages += u.Messages
	}
	byVenue := make(map[models.Venue]int)
	for _, rec := range data.Searches {
		byVenue[rec.Venue]++
	}

	payload := map[string]interface{}{
		"total_users":       len(data.Users),
		"total_messages":    totalMessages,
		"total_searches":    len(data.Searches),
		"places_shown":      data.PlacesShown,
		"searches_by_venue": byVenue,
	}
	if s.deps.Store != nil {
		payload["store"] = s.storeAggregates()
	}
	writeJSONResponse(w, http.StatusOK, respOK(payload))
}

// storeAggregates collects the database KPIs, logging and omitting any that
// fail rather than breaking the whole dashboard response.
func (s *Server) storeAggregates() map[string]interface{} {
	agg := make(map[string]interface{})
	if n, err := s.deps.Store.UserCount(); err != nil {
		s.logger.Warn("Server.storeAggregates: user count failed", "error", err)
	} else {
		agg["registered_users"] = n
	}
	if n, err := s.deps.Store.ActiveUserCount(time.Now().Add(-activeUserWindow)); err != nil {
		s.logger.Warn("Server.storeAggregates: active user count failed", "error", err)
	} else {
		agg["active_users_24h"] = n
	}
	if n, err := s.deps.Store.TotalConversations(); err != nil {
		s.logger.Warn("Server.storeAggregates: conversation count failed", "error", err)
	} else {
		agg["total_conversations"] = n
	}
	if users, err := s.deps.Store.RecentUsers(recentUsersLimit); err != nil {
		s.logger.Warn("Server.storeAggregates: recent users failed", "error", err)
	} else {
		recent := make([]map[string]interface{}, 0, len(users))
		for _, u := range users {
			recent = append(recent, map[string]interface{}{
				"id":        u.ID,
				"name":      u.Name,
				"last_seen": u.LastSeen,
			})
		}
		agg["recent_users"] = recent
	}
	return agg
}

func (s *Server) listSponsorsHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sponsors == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, respError("Sponsor directory not configured"))
		return
	}
	writeJSONResponse(w, http.StatusOK, respOK(s.deps.Sponsors.All()))
}

func (s *Server) upsertSponsorHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	if s.deps.Sponsors == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, respError("Sponsor directory not configured"))
		return
	}
	var sp models.Sponsor
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, respError("Invalid JSON format"))
		return
	}
	if sp.PlaceID == "" {
		writeJSONResponse(w, http.StatusBadRequest, respError("place_id is required"))
		return
	}
	if err := s.deps.Sponsors.Upsert(sp); err != nil {
		s.logger.Error("Server.upsertSponsorHandler: upsert failed", "place_id", sp.PlaceID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, respError("Failed to save sponsor"))
		return
	}
	writeJSONResponse(w, http.StatusOK, respOK(sp))
}

func (s *Server) removeSponsorHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sponsors == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, respError("Sponsor directory not configured"))
		return
	}
	placeID := chi.URLParam(r, "placeID")
	if err := s.deps.Sponsors.Remove(placeID); err != nil {
		s.logger.Error("Server.removeSponsorHandler: remove failed", "place_id", placeID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, respError("Failed to remove sponsor"))
		return
	}
	writeJSONResponse(w, http.StatusOK, respOK(nil))
}
