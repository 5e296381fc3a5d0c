package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func TestRecordAndSnapshot(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "metrics.json"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	now := time.Now()

	s.RecordMessage("u1", now)
	s.RecordMessage("u1", now.Add(time.Minute))
	s.RecordSearch(SearchRecord{UserID: "u1", Venue: models.VenueBar, Results: 5, Timestamp: now})
	s.RecordPlacesShown(3)

	snap := s.Snapshot()
	if snap.Users["u1"].Messages != 2 {
		t.Errorf("Messages = %d, want 2", snap.Users["u1"].Messages)
	}
	if len(snap.Searches) != 1 || snap.Searches[0].Venue != models.VenueBar {
		t.Errorf("Searches = %+v, want one bar search", snap.Searches)
	}
	if snap.PlacesShown != 3 {
		t.Errorf("PlacesShown = %d, want 3", snap.PlacesShown)
	}

	// Snapshot must be detached from the live data.
	snap.Users["u1"].Messages = 99
	if s.Snapshot().Users["u1"].Messages != 2 {
		t.Error("Snapshot() shares state with the sink")
	}
}

func TestFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	s, _ := Load(path)
	s.RecordMessage("u1", time.Now())
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if reloaded.Snapshot().Users["u1"].Messages != 1 {
		t.Error("flushed data not visible after reload")
	}
}

func TestSearchesTrim(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "metrics.json"))
	for i := 0; i < searchesHardCap+1; i++ {
		s.RecordSearch(SearchRecord{UserID: "u1"})
	}
	if got := len(s.Snapshot().Searches); got != searchesTrimTo {
		t.Errorf("searches length after trim = %d, want %d", got, searchesTrimTo)
	}
}
