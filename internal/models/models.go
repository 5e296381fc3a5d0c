// Package models defines the core data structures for the I.aê assistant.
//
// It includes the inbound event model shared by the transports, the Google
// Places snapshots consumed by the filtering and ranking pipeline, and the
// sponsor directory records.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Venue identifies the recommendation domain the user asked for.
type Venue string

const (
	// VenueBar covers bars, pubs and night clubs.
	VenueBar Venue = "bar"
	// VenueRestaurant covers restaurants and cafés.
	VenueRestaurant Venue = "restaurante"
)

// IsValidVenue checks if the given venue kind is supported.
func IsValidVenue(v Venue) bool {
	return v == VenueBar || v == VenueRestaurant
}

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrEmptyMessageBody = errors.New("message body cannot be empty")
	ErrInvalidVenue     = errors.New("invalid venue kind")
	ErrMissingCoords    = errors.New("search coordinates missing")
)

// LatLng is a geographic coordinate pair in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geometry wraps a place location as delivered by the Places API.
type Geometry struct {
	Location LatLng `json:"location"`
}

// Place is an immutable snapshot of a venue from the Places provider.
// It carries no local identity beyond PlaceID.
type Place struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	Types            []string  `json:"types,omitempty"`
	BusinessStatus   string    `json:"business_status,omitempty"`
	Geometry         *Geometry `json:"geometry,omitempty"`
	Rating           float64   `json:"rating,omitempty"`
	UserRatingsTotal int       `json:"user_ratings_total,omitempty"`
	PriceLevel       *int      `json:"price_level,omitempty"`
	Vicinity         string    `json:"vicinity,omitempty"`
}

// HasCoords reports whether the place carries usable coordinates.
func (p *Place) HasCoords() bool {
	return p.Geometry != nil
}

// HasType reports whether the place carries the given Places type tag.
func (p *Place) HasType(t string) bool {
	for _, pt := range p.Types {
		if pt == t {
			return true
		}
	}
	return false
}

// MapsLink builds a Google Maps search link for the place.
func (p *Place) MapsLink() string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s&query_place_id=%s",
		url.QueryEscape(p.Name), url.QueryEscape(p.PlaceID))
}

// OpeningHours holds the weekday schedule from a details lookup.
type OpeningHours struct {
	WeekdayText []string `json:"weekday_text,omitempty"`
	OpenNow     *bool    `json:"open_now,omitempty"`
}

// Review is a single user review attached to a details lookup.
type Review struct {
	Text   string  `json:"text,omitempty"`
	Rating float64 `json:"rating,omitempty"`
}

// PlaceDetails is the extended record returned by a details lookup.
type PlaceDetails struct {
	Name                     string        `json:"name,omitempty"`
	FormattedPhoneNumber     string        `json:"formatted_phone_number,omitempty"`
	InternationalPhoneNumber string        `json:"international_phone_number,omitempty"`
	Website                  string        `json:"website,omitempty"`
	URL                      string        `json:"url,omitempty"`
	FormattedAddress         string        `json:"formatted_address,omitempty"`
	Vicinity                 string        `json:"vicinity,omitempty"`
	OpeningHours             *OpeningHours `json:"opening_hours,omitempty"`
	PriceLevel               *int          `json:"price_level,omitempty"`
	Rating                   float64       `json:"rating,omitempty"`
	UserRatingsTotal         int           `json:"user_ratings_total,omitempty"`
	Types                    []string      `json:"types,omitempty"`
	Reviews                  []Review      `json:"reviews,omitempty"`
	Geometry                 *Geometry     `json:"geometry,omitempty"`
}

// PlaceCandidate is a find-place-from-text match.
type PlaceCandidate struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	FormattedAddress string    `json:"formatted_address,omitempty"`
	Geometry         *Geometry `json:"geometry,omitempty"`
}

// GeocodedPlace is the best match of a free-text geocoding query.
type GeocodedPlace struct {
	Lat  float64
	Lng  float64
	Name string
}

// Sponsor annotates a Place (matched by PlaceID) with paid promotional data.
// It never replaces provider data.
type Sponsor struct {
	PlaceID    string  `json:"place_id"`
	Nome       string  `json:"nome,omitempty"`
	Active     bool    `json:"active"`
	Prioridade int     `json:"prioridade,omitempty"`
	Destaque   string  `json:"destaque,omitempty"`
	Detalhes   string  `json:"detalhes,omitempty"`
	MenuLink   string  `json:"menu_link,omitempty"`
	WhatsApp   string  `json:"whatsapp,omitempty"`
	Instagram  string  `json:"instagram,omitempty"`
	CTA        string  `json:"cta,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// Audio is an inbound voice note payload.
type Audio struct {
	Base64   string
	MimeType string
}

// Event is a single inbound WhatsApp event as delivered by a transport.
// At most one of Text, Location or Audio is expected to be set.
type Event struct {
	From       string
	MessageID  string
	InstanceID string
	Text       string
	Location   *LatLng
	Audio      *Audio
	FromSelf   bool
	Timestamp  time.Time
}

// HasText reports whether the event carries usable message text.
func (e *Event) HasText() bool { return e.Text != "" }

// Role identifies the author of a conversation history entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// HistoryEntry is one line of a per-user conversation transcript.
type HistoryEntry struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"ts"`
}

// Mood is the coarse emotional classification of the user's recent messages.
type Mood string

const (
	MoodNeutral Mood = "neutro"
	MoodHappy   Mood = "feliz"
	MoodSad     Mood = "triste"
	MoodTired   Mood = "cansado"
	MoodAngry   Mood = "irritado"
)

// IsValidMood checks whether the value is one of the known moods.
func IsValidMood(m Mood) bool {
	switch m {
	case MoodNeutral, MoodHappy, MoodSad, MoodTired, MoodAngry:
		return true
	default:
		return false
	}
}

// SearchOptions narrows a nearby-search query.
type SearchOptions struct {
	Keyword string
	OpenNow bool
}

// SearchSnapshot captures the parameters of the most recent executed search,
// kept so narrowing requests can re-run it without asking for location again.
type SearchSnapshot struct {
	Venue   Venue
	Lat     float64
	Lng     float64
	Answers map[string]string
}
