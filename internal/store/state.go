package store

import (
	"database/sql"
	"errors"
	"time"
)

// State keys.
const (
	KeyLastPhone     = "selection.phone"
	KeyLastContactID = "selection.contact_id"
)

// GetState returns the value for key, or "" when unset.
func (db *DB) GetState(key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetState upserts key. An empty value deletes it.
func (db *DB) SetState(key, value string) error {
	if value == "" {
		_, err := db.Exec(`DELETE FROM state WHERE key = ?`, key)
		return err
	}
	_, err := db.Exec(`
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}
