// Package store provides the relational persistence layer: users, their
// conversation transcript, learned preferences and place feedback. SQLite is
// the default backend with PostgreSQL for shared deployments; the DSN shape
// picks the driver.
package store

import (
	"strings"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// User is a durable user record keyed by the WhatsApp JID.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
	LastSeen  time.Time
}

// PlaceFeedback records a thumbs-up or thumbs-down on a recommended place.
type PlaceFeedback struct {
	UserID    string
	PlaceID   string
	PlaceName string
	Liked     bool
	CreatedAt time.Time
}

// FeedbackSummary aggregates the reactions a place has collected.
type FeedbackSummary struct {
	Likes    int
	Dislikes int
}

// Store defines the persistence operations used by the conversation engine.
type Store interface {
	// UpsertUser creates the user or refreshes last-seen on conflict.
	UpsertUser(u User) error
	// GetUser returns the user record, or nil when unknown.
	GetUser(id string) (*User, error)
	// SetUserName updates the display name.
	SetUserName(id, name string) error

	// AddConversation appends one transcript line.
	AddConversation(userID string, role models.Role, message string, at time.Time) error
	// RecentConversations returns up to limit lines, oldest first.
	RecentConversations(userID string, limit int) ([]models.HistoryEntry, error)
	// ConversationCount reports how many transcript lines the user has.
	ConversationCount(userID string) (int, error)

	// SetPreference stores one learned preference key.
	SetPreference(userID, key, value string) error
	// GetPreferences returns all learned preferences for the user.
	GetPreferences(userID string) (map[string]string, error)

	// AddPlaceFeedback records a reaction to a recommended place.
	AddPlaceFeedback(f PlaceFeedback) error
	// PlaceFeedbackSummary aggregates reactions for a place.
	PlaceFeedbackSummary(placeID string) (FeedbackSummary, error)

	// UserCount reports the total number of known users.
	UserCount() (int, error)
	// ActiveUserCount reports how many users were seen at or after since.
	ActiveUserCount(since time.Time) (int, error)
	// RecentUsers returns up to limit users, most recently seen first.
	RecentUsers(limit int) ([]User, error)
	// TotalConversations reports the transcript line count across all users.
	TotalConversations() (int, error)

	// Close releases the underlying connection pool.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" or "sqlite" from the DSN shape. Anything
// that is not recognizably a PostgreSQL URL or key-value string is treated
// as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// Open creates the store matching the DSN shape.
func Open(dsn string) (Store, error) {
	if DetectDSNType(dsn) == "postgres" {
		return NewPostgresStore(WithPostgresDSN(dsn))
	}
	return NewSQLiteStore(WithSQLiteDSN(dsn))
}
