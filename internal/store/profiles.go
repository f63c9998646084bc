package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LoadProfile decodes the profile stored under key into v. It reports false,
// leaving v untouched, when there is none.
func (db *DB) LoadProfile(key string, v any) (bool, error) {
	var data string
	err := db.QueryRow("SELECT data FROM profiles WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load profile %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("decode profile %s: %w", key, err)
	}
	return true, nil
}

// SaveProfile stores v as JSON under key, replacing any previous value.
func (db *DB) SaveProfile(key string, v any, at time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", key, err)
	}
	_, err = db.Exec(`
		INSERT INTO profiles (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, key, string(data), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("save profile %s: %w", key, err)
	}
	return nil
}
