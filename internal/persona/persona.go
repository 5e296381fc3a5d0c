// Package persona persists what the assistant knows about each user across
// restarts: their name and the interview answers per venue kind. Each user
// maps to one JSON file under the persona directory.
package persona

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// DomainProfile holds what was learned about the user for one venue kind.
type DomainProfile struct {
	Answers    map[string]string `json:"answers,omitempty"`
	LastChoice map[string]string `json:"last_choice,omitempty"`
}

// Persona is the durable profile of one user.
type Persona struct {
	Nome       string         `json:"nome,omitempty"`
	Bar        *DomainProfile `json:"bar,omitempty"`
	Restaurant *DomainProfile `json:"restaurante,omitempty"`
}

// Domain returns the profile for the venue kind, creating it when absent.
func (p *Persona) Domain(v models.Venue) *DomainProfile {
	if v == models.VenueRestaurant {
		if p.Restaurant == nil {
			p.Restaurant = &DomainProfile{}
		}
		return p.Restaurant
	}
	if p.Bar == nil {
		p.Bar = &DomainProfile{}
	}
	return p.Bar
}

// Cache is the file-backed persona store. Loaded personas stay in memory;
// every mutation writes through to disk.
type Cache struct {
	mu  sync.Mutex
	dir string
	byID map[string]*Persona
}

// NewCache creates a persona cache rooted at dir, creating it if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("persona: failed to create directory %s: %w", dir, err)
	}
	return &Cache{dir: dir, byID: make(map[string]*Persona)}, nil
}

// Get returns the persona for the user, or nil when none exists yet.
func (c *Cache) Get(userID string) *Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(userID)
}

// SetName records the user's name.
func (c *Cache) SetName(userID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.loadLocked(userID)
	if p == nil {
		p = &Persona{}
		c.byID[userID] = p
	}
	p.Nome = name
	return c.saveLocked(userID, p)
}

// SaveAnswers merges interview answers into the venue profile and records
// them as the last choice.
func (c *Cache) SaveAnswers(userID string, venue models.Venue, answers map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.loadLocked(userID)
	if p == nil {
		p = &Persona{}
		c.byID[userID] = p
	}
	d := p.Domain(venue)
	if d.Answers == nil {
		d.Answers = make(map[string]string)
	}
	for k, v := range answers {
		d.Answers[k] = v
	}
	d.LastChoice = answers
	return c.saveLocked(userID, p)
}

func (c *Cache) loadLocked(userID string) *Persona {
	if p, ok := c.byID[userID]; ok {
		return p
	}
	data, err := os.ReadFile(c.path(userID))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("persona read failed", "userID", userID, "error", err)
		}
		return nil
	}
	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Error("persona parse failed, ignoring file", "userID", userID, "error", err)
		return nil
	}
	c.byID[userID] = &p
	return &p
}

func (c *Cache) saveLocked(userID string, p *Persona) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("persona: failed to encode %s: %w", userID, err)
	}
	if err := os.WriteFile(c.path(userID), data, 0644); err != nil {
		return fmt.Errorf("persona: failed to write %s: %w", userID, err)
	}
	return nil
}

// path sanitizes the user id into a safe file name.
func (c *Cache) path(userID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, userID)
	return filepath.Join(c.dir, safe+".json")
}
