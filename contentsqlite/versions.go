// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mobiletoly/go-contentsync/contentsync"
)

var upsertVersionSQL = buildUpsert(tableVersions, "version", []string{
	"version", "build_number", "published", "force_update", "changelog",
	"min_app_version", "entity_counts", "published_at", "created_at", "installed_at",
})

// CurrentVersion returns the installed published version with the highest
// build number, or nil on a fresh install.
func (s *Store) CurrentVersion(ctx context.Context) (*contentsync.DatabaseVersion, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var row versionRow
	err = db.GetContext(ctx, &row, `
		SELECT * FROM database_versions
		WHERE published = 1
		ORDER BY build_number DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current version: %w", err)
	}
	return row.toVersion()
}

// SaveVersion records v as installed, replacing any row with the same version string
func (s *Store) SaveVersion(ctx context.Context, v *contentsync.DatabaseVersion) error {
	if v == nil || v.Version == "" {
		return fmt.Errorf("version is required")
	}
	row, err := toVersionRow(v, s.now())
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, upsertVersionSQL, row); err != nil {
			return fmt.Errorf("failed to save version %s: %w", v.Version, err)
		}
		return nil
	})
}
