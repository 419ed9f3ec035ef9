// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// Tracker records when each entity type was last synced successfully.
// Rows live in the store's sync_tracking table; the engine is the only writer.
type Tracker struct {
	store *Store
	now   func() time.Time
}

// NewTracker creates a tracker over an initialized (or soon to be) store
func NewTracker(store *Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// LastSync returns the tracking row for entity, or nil if it was never synced
func (t *Tracker) LastSync(ctx context.Context, entity contentsync.EntityType) (*contentsync.SyncTracking, error) {
	db, err := t.store.conn()
	if err != nil {
		return nil, err
	}
	var row trackingRow
	err = db.GetContext(ctx, &row, `SELECT * FROM sync_tracking WHERE entity = ?`, string(entity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync tracking for %s: %w", entity, err)
	}
	tr := row.toTracking()
	return &tr, nil
}

// RecordSync upserts the tracking row for entity, stamped with the current time
func (t *Tracker) RecordSync(ctx context.Context, entity contentsync.EntityType, version string, count int) error {
	db, err := t.store.conn()
	if err != nil {
		return err
	}

	t.store.writeMu.Lock()
	defer t.store.writeMu.Unlock()

	_, err = db.ExecContext(ctx, `
		INSERT INTO sync_tracking (entity, last_sync_at, version, count) VALUES (?, ?, ?, ?)
		ON CONFLICT(entity) DO UPDATE SET
			last_sync_at=excluded.last_sync_at, version=excluded.version, count=excluded.count`,
		string(entity), t.now().UTC(), version, count)
	if err != nil {
		return fmt.Errorf("failed to record sync for %s: %w", entity, err)
	}
	return nil
}

// All returns every tracking row ordered by entity name
func (t *Tracker) All(ctx context.Context) ([]contentsync.SyncTracking, error) {
	db, err := t.store.conn()
	if err != nil {
		return nil, err
	}
	var rows []trackingRow
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM sync_tracking ORDER BY entity`); err != nil {
		return nil, fmt.Errorf("failed to load sync tracking: %w", err)
	}
	out := make([]contentsync.SyncTracking, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toTracking())
	}
	return out, nil
}
