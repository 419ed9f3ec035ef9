// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import (
	"context"
	"log/slog"
	"time"
)

const (
	MetricsOpSync    = "sync"
	MetricsOpList    = "list"
	MetricsOpUpsert  = "upsert"
	MetricsOpPublish = "publish"

	MetricsStageTotal = "total"

	// Client full-sync stages (per entity).
	MetricsStageFetch = "fetch"
	MetricsStageWrite = "write"
	MetricsStageTrack = "track"

	// Server stages.
	MetricsStageQuery  = "query"
	MetricsStageApply  = "apply"
	MetricsStageCounts = "counts"
)

type StageTiming struct {
	Operation string
	Stage     string
	Entity    EntityType
	Duration  time.Duration
	Count     int
	Attempt   int
	Error     bool
}

type StageMetricsRecorder interface {
	ObserveStage(ctx context.Context, timing StageTiming)
}

type StageMetricsRecorderFunc func(ctx context.Context, timing StageTiming)

func (f StageMetricsRecorderFunc) ObserveStage(ctx context.Context, timing StageTiming) {
	f(ctx, timing)
}

// StageObserver reports stage timings to a recorder and/or the debug log.
// The zero value is disabled.
type StageObserver struct {
	Recorder   StageMetricsRecorder
	LogTimings bool
	Logger     *slog.Logger
}

func (o StageObserver) enabled() bool {
	return o.Recorder != nil || o.LogTimings
}

// Start returns the stage start time, or the zero time when disabled
func (o StageObserver) Start() time.Time {
	if !o.enabled() {
		return time.Time{}
	}
	return time.Now()
}

// Observe records a stage that began at start
func (o StageObserver) Observe(ctx context.Context, op, stage string, entity EntityType, start time.Time, count, attempt int, hadError bool) {
	if start.IsZero() {
		return
	}

	timing := StageTiming{
		Operation: op,
		Stage:     stage,
		Entity:    entity,
		Duration:  time.Since(start),
		Count:     count,
		Attempt:   attempt,
		Error:     hadError,
	}

	if o.Recorder != nil {
		o.Recorder.ObserveStage(ctx, timing)
	}
	if o.LogTimings && o.Logger != nil {
		o.Logger.Debug("Stage timing",
			"op", timing.Operation,
			"stage", timing.Stage,
			"entity", timing.Entity,
			"duration", timing.Duration,
			"count", timing.Count,
			"attempt", timing.Attempt,
			"error", timing.Error,
		)
	}
}
