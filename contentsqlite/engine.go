// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// EngineConfig holds sync engine settings
type EngineConfig struct {
	PageSize        int           // rows per remote page, e.g. 500
	ProgressEvery   int           // emit a write-phase event every N rows, e.g. 50
	SyncInterval    time.Duration // IsSyncNeeded threshold, e.g. 24h
	AutoSync        bool          // default for the auto_sync_enabled setting
	StageMetrics    contentsync.StageMetricsRecorder
	LogStageTimings bool
}

// DefaultEngineConfig returns the default engine settings
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		PageSize:      500,
		ProgressEvery: 50,
		SyncInterval:  24 * time.Hour,
		AutoSync:      true,
	}
}

// SyncResult is the outcome of one entity type within a full sync
type SyncResult struct {
	Entity      contentsync.EntityType `json:"entity"`
	Success     bool                   `json:"success"`
	Count       int                    `json:"count"`
	Error       error                  `json:"-"`
	CompletedAt time.Time              `json:"completed_at"`
}

// SyncResults holds one result per entity type, in SyncOrder
type SyncResults []SyncResult

// AllSucceeded reports whether every entity synced
func (r SyncResults) AllSucceeded() bool {
	for _, res := range r {
		if !res.Success {
			return false
		}
	}
	return len(r) > 0
}

// SyncedCount is the total number of rows written by successful entities
func (r SyncResults) SyncedCount() int {
	n := 0
	for _, res := range r {
		if res.Success {
			n += res.Count
		}
	}
	return n
}

// Failed returns the failed results
func (r SyncResults) Failed() SyncResults {
	var out SyncResults
	for _, res := range r {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// EntityStatus is the per-entity part of SyncStatus
type EntityStatus struct {
	Entity   contentsync.EntityType    `json:"entity"`
	Tracking *contentsync.SyncTracking `json:"tracking,omitempty"` // nil if never synced
	Rows     int                       `json:"rows"`
}

// SyncStatus is a read-only snapshot of the engine and its bookkeeping
type SyncStatus struct {
	LastSync    *time.Time     `json:"last_sync,omitempty"`    // last fully successful sync
	LastAttempt *time.Time     `json:"last_attempt,omitempty"` // last sync attempt, any outcome
	Online      bool           `json:"online"`
	Syncing     bool           `json:"syncing"`
	Entities    []EntityStatus `json:"entities"`
}

// Engine runs full syncs from a Remote into the Store. Only one full sync
// runs at a time; a second caller gets ErrAlreadyInProgress.
type Engine struct {
	store   *Store
	tracker *Tracker
	remote  Remote
	config  *EngineConfig
	logger  *slog.Logger
	stages  contentsync.StageObserver
	now     func() time.Time

	listeners listenerRegistry
	syncing   atomic.Bool
	online    atomic.Bool
}

// NewEngine creates an engine. It starts online.
func NewEngine(store *Store, tracker *Tracker, remote Remote, config *EngineConfig, logger *slog.Logger) (*Engine, error) {
	if store == nil || tracker == nil || remote == nil {
		return nil, fmt.Errorf("store, tracker and remote are required")
	}
	if config == nil {
		config = DefaultEngineConfig()
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultEngineConfig().PageSize
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = DefaultEngineConfig().ProgressEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:   store,
		tracker: tracker,
		remote:  remote,
		config:  config,
		logger:  logger,
		stages: contentsync.StageObserver{
			Recorder:   config.StageMetrics,
			LogTimings: config.LogStageTimings,
			Logger:     logger,
		},
		now: time.Now,
	}
	e.listeners.logger = logger
	e.online.Store(true)
	return e, nil
}

// SetOnline records the latest connectivity state observed by the host
func (e *Engine) SetOnline(online bool) {
	if e.online.Swap(online) != online {
		e.logger.Info("Connectivity changed", "online", online)
	}
}

// Online reports the last pushed connectivity state
func (e *Engine) Online() bool { return e.online.Load() }

// Syncing reports whether a full sync is running
func (e *Engine) Syncing() bool { return e.syncing.Load() }

// AddProgressListener registers fn for progress events from now on.
// Cancel the returned subscription to remove it.
func (e *Engine) AddProgressListener(fn ProgressListener) *Subscription {
	return e.listeners.add(fn)
}

// FullSync fetches every entity type from the remote and replaces local rows,
// in SyncOrder. A failing entity does not stop the others; its result carries
// the error. The returned error is only ErrOffline or ErrAlreadyInProgress,
// in which case the store is not touched.
func (e *Engine) FullSync(ctx context.Context) (SyncResults, error) {
	return e.fullSync(ctx, nil)
}

// fullSync is FullSync with a prepare step that runs once the sync slot is
// held and before anything is fetched. A prepare error is returned as is and
// no entity is synced.
func (e *Engine) fullSync(ctx context.Context, prepare func(context.Context) error) (SyncResults, error) {
	if !e.online.Load() {
		return nil, ErrOffline
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInProgress
	}
	defer e.syncing.Store(false)

	if prepare != nil {
		if err := prepare(ctx); err != nil {
			return nil, err
		}
	}

	startedAt := e.now().UTC()
	start := e.stages.Start()
	e.logger.Info("Full sync started", "entities", len(SyncOrder))

	results := make(SyncResults, 0, len(SyncOrder))
	for _, entity := range SyncOrder {
		results = append(results, e.syncEntity(ctx, entity))
	}

	if err := e.store.SetSetting(ctx, SettingLastFullSyncAttempt, startedAt); err != nil {
		e.logger.Warn("Failed to persist sync attempt time", "error", err)
	}
	if results.AllSucceeded() {
		if err := e.store.SetSetting(ctx, SettingLastFullSync, e.now().UTC()); err != nil {
			e.logger.Warn("Failed to persist last sync time", "error", err)
		}
	}

	e.stages.Observe(ctx, contentsync.MetricsOpSync, contentsync.MetricsStageTotal, "", start, results.SyncedCount(), 1, !results.AllSucceeded())
	e.logger.Info("Full sync finished",
		"synced", results.SyncedCount(),
		"failed", len(results.Failed()),
		"duration", e.now().Sub(startedAt))
	return results, nil
}

// IsSyncNeeded reports whether auto-sync is enabled, the device is online and
// the last successful full sync is older than SyncInterval (or never happened).
// It does not write anything.
func (e *Engine) IsSyncNeeded(ctx context.Context) (bool, error) {
	enabled := e.config.AutoSync
	if _, err := e.store.GetSetting(ctx, SettingAutoSyncEnabled, &enabled); err != nil {
		return false, err
	}
	if !enabled || !e.online.Load() {
		return false, nil
	}

	var last time.Time
	found, err := e.store.GetSetting(ctx, SettingLastFullSync, &last)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return e.now().Sub(last) > e.config.SyncInterval, nil
}

// SetAutoSync persists the auto-sync preference
func (e *Engine) SetAutoSync(ctx context.Context, enabled bool) error {
	return e.store.SetSetting(ctx, SettingAutoSyncEnabled, enabled)
}

// Status returns the current sync status
func (e *Engine) Status(ctx context.Context) (*SyncStatus, error) {
	status := &SyncStatus{
		Online:  e.online.Load(),
		Syncing: e.syncing.Load(),
	}

	var last, attempt time.Time
	found, err := e.store.GetSetting(ctx, SettingLastFullSync, &last)
	if err != nil {
		return nil, err
	}
	if found {
		status.LastSync = &last
	}
	if found, err = e.store.GetSetting(ctx, SettingLastFullSyncAttempt, &attempt); err != nil {
		return nil, err
	} else if found {
		status.LastAttempt = &attempt
	}

	for _, entity := range SyncOrder {
		tr, err := e.tracker.LastSync(ctx, entity)
		if err != nil {
			return nil, err
		}
		rows, err := e.store.Count(ctx, entity)
		if err != nil {
			return nil, err
		}
		status.Entities = append(status.Entities, EntityStatus{Entity: entity, Tracking: tr, Rows: rows})
	}
	return status, nil
}
