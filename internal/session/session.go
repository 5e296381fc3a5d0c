// Package session holds the per-user conversation state: flow flags, history,
// pagination, and the guards against duplicate or stale events.
package session

import (
	"sync"
	"time"

	"github.com/iae-bsb/iae-bot/internal/geo"
	"github.com/iae-bsb/iae-bot/internal/models"
)

// FlowKind tags the active conversation flow stage. Exactly one stage is
// active at a time.
type FlowKind string

const (
	FlowIdle                  FlowKind = "idle"
	FlowAwaitingName          FlowKind = "awaiting_name"
	FlowAwaitingIntentChoice  FlowKind = "awaiting_intent_choice"
	FlowInterviewing          FlowKind = "interviewing"
	FlowRefining              FlowKind = "refining"
	FlowAwaitingLocationType  FlowKind = "awaiting_location_type"
	FlowAwaitingLocationText  FlowKind = "awaiting_location_text"
	FlowAwaitingLocationCoord FlowKind = "awaiting_location_coord"
)

// Flow is the tagged union of flow state. Kind selects which of the other
// fields are meaningful; a zero Flow is idle.
type Flow struct {
	Kind        FlowKind
	Venue       models.Venue
	Answers     map[string]string
	QuestionIdx int
	Lat         float64
	Lng         float64
	HasCoords   bool
}

// SetAnswer records an interview or refinement answer.
func (f *Flow) SetAnswer(key, value string) {
	if f.Answers == nil {
		f.Answers = make(map[string]string)
	}
	f.Answers[key] = value
}

// SetCoords attaches resolved coordinates to the flow.
func (f *Flow) SetCoords(lat, lng float64) {
	f.Lat = lat
	f.Lng = lng
	f.HasCoords = true
}

// CTA is a presented recommendation page: the full ordered result list plus
// the index of the first place on the current page.
type CTA struct {
	OrderedResults []models.Place
	PageStart      int
}

// historyCap bounds the per-user transcript length.
const historyCap = 50

// nearDuplicateKm is the radius under which two consecutive location pins
// count as the same location.
const nearDuplicateKm = 0.1

// moodRetention is how long a non-neutral mood survives a neutral reading.
const moodRetention = 30 * time.Minute

// Session is the mutable state of one user's conversation. The embedded
// mutex serializes handler execution for the same user; callers lock the
// session for the whole handler run.
type Session struct {
	sync.Mutex

	UserID          string
	History         []models.HistoryEntry
	Mood            models.Mood
	MoodUpdatedAt   time.Time
	LastInteraction time.Time
	LastMsgID       string
	LastLocation    *models.LatLng
	PendingLocation *models.LatLng
	Flow            Flow
	CTA             *CTA
	SelectedPlace   *models.Place
	LastSearch      *models.SearchSnapshot
	IsFinalizing    bool
}

// New creates an empty session for the user.
func New(userID string) *Session {
	return &Session{
		UserID: userID,
		Mood:   models.MoodNeutral,
	}
}

// Touch records user activity now.
func (s *Session) Touch(now time.Time) {
	s.LastInteraction = now
}

// SeenMessage reports whether the message id matches the last processed one,
// recording it either way. Used to drop transport redeliveries.
func (s *Session) SeenMessage(id string) bool {
	if id == "" {
		return false
	}
	if s.LastMsgID == id {
		return true
	}
	s.LastMsgID = id
	return false
}

// IsNearDuplicateLocation reports whether the pin is within 100 meters of the
// previous one, recording the new pin either way.
func (s *Session) IsNearDuplicateLocation(lat, lng float64) bool {
	prev := s.LastLocation
	s.LastLocation = &models.LatLng{Lat: lat, Lng: lng}
	if prev == nil {
		return false
	}
	return geo.Distance(prev.Lat, prev.Lng, lat, lng) < nearDuplicateKm
}

// UpdateMood applies a new mood reading. A neutral reading does not displace
// a recent non-neutral mood; emotional context outlasts a single flat message.
func (s *Session) UpdateMood(m models.Mood, now time.Time) {
	if m == models.MoodNeutral && s.Mood != models.MoodNeutral &&
		now.Sub(s.MoodUpdatedAt) < moodRetention {
		return
	}
	s.Mood = m
	s.MoodUpdatedAt = now
}

// AppendHistory adds a transcript line, trimming the oldest beyond the cap.
func (s *Session) AppendHistory(role models.Role, message string, now time.Time) {
	s.History = append(s.History, models.HistoryEntry{Role: role, Message: message, Timestamp: now})
	if len(s.History) > historyCap {
		s.History = s.History[len(s.History)-historyCap:]
	}
}

// RecentHistory returns up to n of the latest transcript lines.
func (s *Session) RecentHistory(n int) []models.HistoryEntry {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// ClearFlow resets every in-flight flow flag: the active stage, the presented
// page, the pending pin, and the finalization guard. History, mood and the
// last-search snapshot survive.
func (s *Session) ClearFlow() {
	s.Flow = Flow{}
	s.CTA = nil
	s.PendingLocation = nil
	s.IsFinalizing = false
}

// FinishFlow resets the flow stage, pending pin, and finalization guard
// while keeping the presented page, so a just-completed search stays
// selectable.
func (s *Session) FinishFlow() {
	s.Flow = Flow{}
	s.PendingLocation = nil
	s.IsFinalizing = false
}

// HasActiveFlow reports whether any flow stage or presented page is live.
func (s *Session) HasActiveFlow() bool {
	return s.Flow.Kind != FlowIdle && s.Flow.Kind != "" || s.CTA != nil
}
