// This file implements the SQLite-backed store, the default backend.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/iae-bsb/iae-bot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; a
// missing parent directory is created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) UpsertUser(u User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, name, created_at, last_seen) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`,
		u.ID, u.Name, u.CreatedAt, u.LastSeen)
	if err != nil {
		slog.Error("SQLiteStore UpsertUser failed", "error", err, "id", u.ID)
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(id string) (*User, error) {
	var u User
	var name sql.NullString
	err := s.db.QueryRow(`SELECT id, name, created_at, last_seen FROM users WHERE id = ?`, id).
		Scan(&u.ID, &name, &u.CreatedAt, &u.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u.Name = name.String
	return &u, nil
}

func (s *SQLiteStore) SetUserName(id, name string) error {
	_, err := s.db.Exec(`UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		slog.Error("SQLiteStore SetUserName failed", "error", err, "id", id)
		return fmt.Errorf("failed to set name for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AddConversation(userID string, role models.Role, message string, at time.Time) error {
	_, err := s.db.Exec(`INSERT INTO conversations (user_id, role, message, created_at) VALUES (?, ?, ?, ?)`,
		userID, role, message, at)
	if err != nil {
		slog.Error("SQLiteStore AddConversation failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert conversation for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) RecentConversations(userID string, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(`SELECT role, message, created_at FROM (
			SELECT id, role, message, created_at FROM conversations WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, userID, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentConversations query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversations for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func (s *SQLiteStore) ConversationCount(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations for %s: %w", userID, err)
	}
	return count, nil
}

func (s *SQLiteStore) SetPreference(userID, key, value string) error {
	_, err := s.db.Exec(`INSERT INTO user_preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now())
	if err != nil {
		slog.Error("SQLiteStore SetPreference failed", "error", err, "userID", userID, "key", key)
		return fmt.Errorf("failed to set preference %s for %s: %w", key, userID, err)
	}
	return nil
}

func (s *SQLiteStore) GetPreferences(userID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM user_preferences WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetPreferences query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query preferences for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanPreferences(rows)
}

func (s *SQLiteStore) AddPlaceFeedback(f PlaceFeedback) error {
	_, err := s.db.Exec(`INSERT INTO place_feedback (user_id, place_id, place_name, liked, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.UserID, f.PlaceID, f.PlaceName, f.Liked, f.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddPlaceFeedback failed", "error", err, "placeID", f.PlaceID)
		return fmt.Errorf("failed to insert feedback for %s: %w", f.PlaceID, err)
	}
	return nil
}

func (s *SQLiteStore) PlaceFeedbackSummary(placeID string) (FeedbackSummary, error) {
	var sum FeedbackSummary
	err := s.db.QueryRow(`SELECT
			COALESCE(SUM(CASE WHEN liked THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN liked THEN 0 ELSE 1 END), 0)
		FROM place_feedback WHERE place_id = ?`, placeID).Scan(&sum.Likes, &sum.Dislikes)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize feedback for %s: %w", placeID, err)
	}
	return sum, nil
}

func (s *SQLiteStore) UserCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) ActiveUserCount(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE last_seen >= ?`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) RecentUsers(limit int) ([]User, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at, last_seen FROM users
		ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query recent users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *SQLiteStore) TotalConversations() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
