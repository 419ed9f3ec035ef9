// Package contentsqlite is the on-device side of go-contentsync: a SQLite
// content store, the sync tracker, the full-sync engine and the dataset
// update oracle.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// StoreConfig configures the local SQLite store
type StoreConfig struct {
	Path        string        // database file; parent directory is created on Initialize
	BusyTimeout time.Duration // SQLite busy timeout, 5s when zero
	Logger      *slog.Logger
}

// Store owns the on-device database handle. It is opened once by Initialize
// and shared by the tracker, engine and oracle until Close.
type Store struct {
	path        string
	busyTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.RWMutex // guards db
	db      *sqlx.DB
	writeMu sync.Mutex // serialize write transactions to avoid SQLITE_BUSY churn
}

// NewStore creates an unopened store. Every operation except Initialize
// fails with ErrNotInitialized until Initialize succeeds.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	return &Store{
		path:        cfg.Path,
		busyTimeout: busy,
		logger:      logger,
		now:         time.Now,
	}
}

// Path returns the database file path
func (s *Store) Path() string { return s.path }

// Initialize opens the database and creates all tables and indexes. Calling
// it on an already initialized store is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if s.path == "" {
		return &StorageInitError{Path: s.path, Err: fmt.Errorf("database path is empty")}
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StorageInitError{Path: s.path, Err: fmt.Errorf("failed to create directory: %w", err)}
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", s.path, s.busyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return &StorageInitError{Path: s.path, Err: fmt.Errorf("failed to open database: %w", err)}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &StorageInitError{Path: s.path, Err: fmt.Errorf("failed to ping database: %w", err)}
	}
	if err := prepareSchema(ctx, db); err != nil {
		_ = db.Close()
		return &StorageInitError{Path: s.path, Err: err}
	}

	s.db = db
	s.logger.Info("Content store initialized", "path", s.path)
	return nil
}

func prepareSchema(ctx context.Context, db *sqlx.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	committed = true
	return nil
}

// Close releases the database handle. The store can be initialized again afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Reset drops every table, user data included, and recreates an empty schema
func (s *Store) Reset(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, table := range allTables {
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	if err := prepareSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	s.logger.Warn("Content store reset", "path", s.path)
	return nil
}

func (s *Store) conn() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// withTx runs fn in one write transaction and commits only if fn succeeds
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
