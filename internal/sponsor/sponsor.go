// Package sponsor manages the file-backed directory of paying partners:
// lookup by place id, name-mention detection in user text, and the
// nearby-partner suggestions attached to recommendation pages.
package sponsor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/iae-bsb/iae-bot/internal/geo"
	"github.com/iae-bsb/iae-bot/internal/models"
)

// nearbyRadiusKm bounds how far a partner can be to count as "nearby".
const nearbyRadiusKm = 5.0

// nearbyLimit caps how many partners a single suggestion carries.
const nearbyLimit = 3

// Directory is the in-memory view of the sponsor file. All reads and writes
// go through the directory; writes persist back to disk.
type Directory struct {
	mu   sync.RWMutex
	path string
	byID map[string]models.Sponsor
}

// Load reads the sponsor file at path. A missing file yields an empty
// directory; a malformed file is an error.
func Load(path string) (*Directory, error) {
	d := &Directory{path: path, byID: make(map[string]models.Sponsor)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("sponsor.Load no directory file, starting empty", "path", path)
			return d, nil
		}
		return nil, fmt.Errorf("sponsor: failed to read %s: %w", path, err)
	}
	var list []models.Sponsor
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("sponsor: failed to parse %s: %w", path, err)
	}
	for _, s := range list {
		if s.PlaceID == "" {
			continue
		}
		d.byID[s.PlaceID] = s
	}
	slog.Info("sponsor directory loaded", "path", path, "count", len(d.byID))
	return d, nil
}

// Get returns the sponsor record for a place id.
func (d *Directory) Get(placeID string) (models.Sponsor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.byID[placeID]
	return s, ok
}

// IsSponsored reports whether the place id belongs to an active sponsor.
func (d *Directory) IsSponsored(placeID string) bool {
	s, ok := d.Get(placeID)
	return ok && s.Active
}

// ActiveByID returns a snapshot map of the active sponsors keyed by place id.
func (d *Directory) ActiveByID() map[string]models.Sponsor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]models.Sponsor, len(d.byID))
	for id, s := range d.byID {
		if s.Active {
			out[id] = s
		}
	}
	return out
}

// All returns every sponsor record, active or not, in stable order.
func (d *Directory) All() []models.Sponsor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Sponsor, 0, len(d.byID))
	for _, s := range d.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlaceID < out[j].PlaceID })
	return out
}

// Upsert inserts or replaces a sponsor record and persists the directory.
func (d *Directory) Upsert(s models.Sponsor) error {
	if s.PlaceID == "" {
		return fmt.Errorf("sponsor: place_id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[s.PlaceID] = s
	return d.saveLocked()
}

// Remove deletes a sponsor record and persists the directory.
func (d *Directory) Remove(placeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byID[placeID]; !ok {
		return fmt.Errorf("sponsor: %s not found", placeID)
	}
	delete(d.byID, placeID)
	return d.saveLocked()
}

func (d *Directory) saveLocked() error {
	list := make([]models.Sponsor, 0, len(d.byID))
	for _, s := range d.byID {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PlaceID < list[j].PlaceID })
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("sponsor: failed to encode directory: %w", err)
	}
	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("sponsor: failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(d.path, data, 0644); err != nil {
		return fmt.Errorf("sponsor: failed to write %s: %w", d.path, err)
	}
	return nil
}

// MatchMention finds an active sponsor whose name appears in the user text.
func (d *Directory) MatchMention(text string) (models.Sponsor, bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return models.Sponsor{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.byID {
		if !s.Active || s.Nome == "" {
			continue
		}
		if strings.Contains(normalized, Normalize(s.Nome)) {
			return s, true
		}
	}
	return models.Sponsor{}, false
}

// Nearby returns up to three active partners within five kilometers of the
// point, ordered by prioridade then distance.
func (d *Directory) Nearby(lat, lng float64) []models.Sponsor {
	type ranked struct {
		sponsor models.Sponsor
		dist    float64
	}
	d.mu.RLock()
	var close []ranked
	for _, s := range d.byID {
		if !s.Active || (s.Lat == 0 && s.Lng == 0) {
			continue
		}
		dist := geo.Distance(lat, lng, s.Lat, s.Lng)
		if dist <= nearbyRadiusKm {
			close = append(close, ranked{sponsor: s, dist: dist})
		}
	}
	d.mu.RUnlock()

	sort.Slice(close, func(i, j int) bool {
		pi, pj := clampPriority(close[i].sponsor.Prioridade), clampPriority(close[j].sponsor.Prioridade)
		if pi != pj {
			return pi < pj
		}
		return close[i].dist < close[j].dist
	})
	if len(close) > nearbyLimit {
		close = close[:nearbyLimit]
	}
	out := make([]models.Sponsor, len(close))
	for i, r := range close {
		out[i] = r.sponsor
	}
	return out
}

func clampPriority(p int) int {
	if p < 1 || p > 3 {
		return 99
	}
	return p
}

// Normalize lowercases text and strips the accents common in Portuguese, so
// mention matching survives casual spelling.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "ã", "a", "â", "a",
		"é", "e", "ê", "e",
		"í", "i",
		"ó", "o", "õ", "o", "ô", "o",
		"ú", "u", "ü", "u",
		"ç", "c",
	)
	return replacer.Replace(s)
}
