package session

import (
	"testing"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func TestSeenMessage(t *testing.T) {
	s := New("user1")
	if s.SeenMessage("m1") {
		t.Error("first SeenMessage(m1) = true, want false")
	}
	if !s.SeenMessage("m1") {
		t.Error("repeated SeenMessage(m1) = false, want true")
	}
	if s.SeenMessage("m2") {
		t.Error("SeenMessage(m2) = true after m1, want false")
	}
	if s.SeenMessage("") {
		t.Error("SeenMessage(\"\") = true, want false for missing id")
	}
}

func TestIsNearDuplicateLocation(t *testing.T) {
	s := New("user1")
	if s.IsNearDuplicateLocation(-15.7939, -47.8828) {
		t.Error("first pin flagged as duplicate")
	}
	// ~30 m away.
	if !s.IsNearDuplicateLocation(-15.79415, -47.8828) {
		t.Error("pin 30m away not flagged as duplicate")
	}
	// ~2 km away.
	if s.IsNearDuplicateLocation(-15.812, -47.8828) {
		t.Error("pin 2km away flagged as duplicate")
	}
}

func TestUpdateMoodRetention(t *testing.T) {
	s := New("user1")
	now := time.Now()

	s.UpdateMood(models.MoodSad, now)
	if s.Mood != models.MoodSad {
		t.Fatalf("Mood = %q, want sad", s.Mood)
	}

	// Neutral within the retention window must not displace sad.
	s.UpdateMood(models.MoodNeutral, now.Add(10*time.Minute))
	if s.Mood != models.MoodSad {
		t.Errorf("Mood = %q after early neutral, want sad retained", s.Mood)
	}

	// A different non-neutral mood replaces immediately.
	s.UpdateMood(models.MoodHappy, now.Add(11*time.Minute))
	if s.Mood != models.MoodHappy {
		t.Errorf("Mood = %q, want happy", s.Mood)
	}

	// Neutral after the window sticks.
	s.UpdateMood(models.MoodNeutral, now.Add(50*time.Minute))
	if s.Mood != models.MoodNeutral {
		t.Errorf("Mood = %q after late neutral, want neutral", s.Mood)
	}
}

func TestAppendHistoryCap(t *testing.T) {
	s := New("user1")
	now := time.Now()
	for i := 0; i < historyCap+10; i++ {
		s.AppendHistory(models.RoleUser, "oi", now)
	}
	if len(s.History) != historyCap {
		t.Errorf("history length = %d, want %d", len(s.History), historyCap)
	}
}

func TestClearFlow(t *testing.T) {
	s := New("user1")
	s.Flow = Flow{Kind: FlowInterviewing, Venue: models.VenueBar, QuestionIdx: 2}
	s.CTA = &CTA{OrderedResults: []models.Place{{PlaceID: "p1"}}}
	s.PendingLocation = &models.LatLng{Lat: 1, Lng: 2}
	s.IsFinalizing = true
	s.LastSearch = &models.SearchSnapshot{Venue: models.VenueBar}

	s.ClearFlow()

	if s.Flow.Kind != "" || s.CTA != nil || s.PendingLocation != nil || s.IsFinalizing {
		t.Error("ClearFlow() left flow state behind")
	}
	if s.LastSearch == nil {
		t.Error("ClearFlow() dropped the last-search snapshot")
	}
}

func TestMemoryStoreGetOrCreate(t *testing.T) {
	store := NewMemoryStore()
	a := store.GetOrCreate("user1")
	b := store.GetOrCreate("user1")
	if a != b {
		t.Error("GetOrCreate returned different sessions for the same user")
	}
	if store.Get("user2") != nil {
		t.Error("Get returned a session that was never created")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestSweepInactive(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	stale := store.GetOrCreate("stale")
	stale.Flow.Kind = FlowInterviewing
	stale.Touch(now.Add(-time.Hour))

	fresh := store.GetOrCreate("fresh")
	fresh.Flow.Kind = FlowInterviewing
	fresh.Touch(now.Add(-time.Minute))

	idleButIdle := store.GetOrCreate("idle")
	idleButIdle.Touch(now.Add(-2 * time.Hour))

	cleared := store.SweepInactive(now, InactivityWindow)
	if cleared != 1 {
		t.Fatalf("SweepInactive() cleared %d, want 1", cleared)
	}
	if stale.HasActiveFlow() {
		t.Error("stale session still has active flow after sweep")
	}
	if !fresh.HasActiveFlow() {
		t.Error("fresh session was cleared by sweep")
	}
	if store.Get("stale") == nil {
		t.Error("sweep deleted the session instead of clearing its flow")
	}
}
