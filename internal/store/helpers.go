package store

import (
	"database/sql"
	"fmt"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// scanHistory collects conversation rows ordered oldest first.
func scanHistory(rows *sql.Rows) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.Role, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanUsers collects user rows, tolerating a NULL name.
func scanUsers(rows *sql.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var u User
		var name sql.NullString
		if err := rows.Scan(&u.ID, &name, &u.CreatedAt, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Name = name.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// scanPreferences collects preference rows into a key-value map.
func scanPreferences(rows *sql.Rows) (map[string]string, error) {
	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan preference row: %w", err)
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}
