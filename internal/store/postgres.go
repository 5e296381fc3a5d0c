// This file implements the PostgreSQL-backed store for shared deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/iae-bsb/iae-bot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) UpsertUser(u User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, name, created_at, last_seen) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET last_seen = EXCLUDED.last_seen`,
		u.ID, u.Name, u.CreatedAt, u.LastSeen)
	if err != nil {
		slog.Error("PostgresStore UpsertUser failed", "error", err, "id", u.ID)
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetUser(id string) (*User, error) {
	var u User
	var name sql.NullString
	err := s.db.QueryRow(`SELECT id, name, created_at, last_seen FROM users WHERE id = $1`, id).
		Scan(&u.ID, &name, &u.CreatedAt, &u.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u.Name = name.String
	return &u, nil
}

func (s *PostgresStore) SetUserName(id, name string) error {
	_, err := s.db.Exec(`UPDATE users SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		slog.Error("PostgresStore SetUserName failed", "error", err, "id", id)
		return fmt.Errorf("failed to set name for %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) AddConversation(userID string, role models.Role, message string, at time.Time) error {
	_, err := s.db.Exec(`INSERT INTO conversations (user_id, role, message, created_at) VALUES ($1, $2, $3, $4)`,
		userID, role, message, at)
	if err != nil {
		slog.Error("PostgresStore AddConversation failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert conversation for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) RecentConversations(userID string, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(`SELECT role, message, created_at FROM (
			SELECT id, role, message, created_at FROM conversations WHERE user_id = $1 ORDER BY id DESC LIMIT $2
		) latest ORDER BY id ASC`, userID, limit)
	if err != nil {
		slog.Error("PostgresStore RecentConversations query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversations for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func (s *PostgresStore) ConversationCount(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations for %s: %w", userID, err)
	}
	return count, nil
}

func (s *PostgresStore) SetPreference(userID, key, value string) error {
	_, err := s.db.Exec(`INSERT INTO user_preferences (user_id, key, value, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		userID, key, value, time.Now())
	if err != nil {
		slog.Error("PostgresStore SetPreference failed", "error", err, "userID", userID, "key", key)
		return fmt.Errorf("failed to set preference %s for %s: %w", key, userID, err)
	}
	return nil
}

func (s *PostgresStore) GetPreferences(userID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM user_preferences WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore GetPreferences query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query preferences for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanPreferences(rows)
}

func (s *PostgresStore) AddPlaceFeedback(f PlaceFeedback) error {
	_, err := s.db.Exec(`INSERT INTO place_feedback (user_id, place_id, place_name, liked, created_at) VALUES ($1, $2, $3, $4, $5)`,
		f.UserID, f.PlaceID, f.PlaceName, f.Liked, f.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddPlaceFeedback failed", "error", err, "placeID", f.PlaceID)
		return fmt.Errorf("failed to insert feedback for %s: %w", f.PlaceID, err)
	}
	return nil
}

func (s *PostgresStore) PlaceFeedbackSummary(placeID string) (FeedbackSummary, error) {
	var sum FeedbackSummary
	err := s.db.QueryRow(`SELECT
			COALESCE(SUM(CASE WHEN liked THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN liked THEN 0 ELSE 1 END), 0)
		FROM place_feedback WHERE place_id = $1`, placeID).Scan(&sum.Likes, &sum.Dislikes)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize feedback for %s: %w", placeID, err)
	}
	return sum, nil
}

func (s *PostgresStore) UserCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ActiveUserCount(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE last_seen >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) RecentUsers(limit int) ([]User, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at, last_seen FROM users
		ORDER BY last_seen DESC LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresStore RecentUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query recent users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *PostgresStore) TotalConversations() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
