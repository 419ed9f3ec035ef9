// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known setting keys
const (
	SettingLastFullSync        = "last_full_sync"
	SettingLastFullSyncAttempt = "last_full_sync_attempt"
	SettingAutoSyncEnabled     = "auto_sync_enabled"
)

// SetSetting stores v as JSON under key, replacing any previous value
func (s *Store) SetSetting(ctx context.Context, key string, v any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, string(b), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// GetSetting decodes the value stored under key into dst. It reports false,
// leaving dst untouched, when the key was never set.
func (s *Store) GetSetting(ctx context.Context, key string, dst any) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	var value string
	if err := db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return true, nil
}
