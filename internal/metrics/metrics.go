// Package metrics keeps lightweight product telemetry in a JSON file:
// per-user message counts, executed searches and how many places were shown.
// Mutations mark the sink dirty; a background loop flushes to disk.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// FlushInterval is how often a dirty sink is written to disk.
const FlushInterval = 10 * time.Second

// searchesHardCap triggers trimming of the searches log.
const searchesHardCap = 50000

// searchesTrimTo is the retained length after a trim.
const searchesTrimTo = 30000

// UserStats aggregates activity for one user.
type UserStats struct {
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Messages  int       `json:"messages"`
}

// SearchRecord is one executed recommendation search.
type SearchRecord struct {
	UserID    string       `json:"user_id"`
	Venue     models.Venue `json:"venue"`
	Lat       float64      `json:"lat"`
	Lng       float64      `json:"lng"`
	Results   int          `json:"results"`
	Timestamp time.Time    `json:"ts"`
}

// Data is the full serialized sink contents.
type Data struct {
	Users       map[string]*UserStats `json:"users"`
	Searches    []SearchRecord        `json:"searches"`
	PlacesShown int64                 `json:"places_shown"`
}

// Sink accumulates telemetry and persists it as JSON.
type Sink struct {
	mu    sync.Mutex
	path  string
	dirty bool
	data  Data
}

// Load opens the sink at path, reading existing data if present.
func Load(path string) (*Sink, error) {
	s := &Sink{path: path, data: Data{Users: make(map[string]*UserStats)}}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("metrics: failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		slog.Error("metrics file malformed, starting fresh", "path", path, "error", err)
		s.data = Data{Users: make(map[string]*UserStats)}
		return s, nil
	}
	if s.data.Users == nil {
		s.data.Users = make(map[string]*UserStats)
	}
	return s, nil
}

// RecordMessage counts one inbound message from the user.
func (s *Sink) RecordMessage(userID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.Users[userID]
	if !ok {
		u = &UserStats{FirstSeen: at}
		s.data.Users[userID] = u
	}
	u.LastSeen = at
	u.Messages++
	s.dirty = true
}

// RecordSearch appends one executed search, trimming the log past the cap.
func (s *Sink) RecordSearch(rec SearchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Searches = append(s.data.Searches, rec)
	if len(s.data.Searches) > searchesHardCap {
		s.data.Searches = s.data.Searches[len(s.data.Searches)-searchesTrimTo:]
	}
	s.dirty = true
}

// RecordPlacesShown counts places presented to users.
func (s *Sink) RecordPlacesShown(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.PlacesShown += int64(n)
	s.dirty = true
}

// Snapshot returns a deep copy of the current data for the admin surface.
func (s *Sink) Snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Data{
		Users:       make(map[string]*UserStats, len(s.data.Users)),
		Searches:    append([]SearchRecord(nil), s.data.Searches...),
		PlacesShown: s.data.PlacesShown,
	}
	for id, u := range s.data.Users {
		copied := *u
		out.Users[id] = &copied
	}
	return out
}

// Flush writes the sink to disk if it changed since the last flush.
func (s *Sink) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.dirty = false
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("metrics: failed to encode: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("metrics: failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		return fmt.Errorf("metrics: failed to write %s: %w", s.path, err)
	}
	return nil
}

// Run flushes periodically until the context is canceled, then flushes once
// more on the way out.
func (s *Sink) Run(ctx context.Context) {
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				slog.Error("metrics flush failed", "error", err)
			}
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				slog.Error("metrics final flush failed", "error", err)
			}
			return
		}
	}
}
