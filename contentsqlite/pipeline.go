// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"fmt"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// SyncOrder is the order FullSync processes entity types in
var SyncOrder = []contentsync.EntityType{
	contentsync.EntityWords,
	contentsync.EntityFlashcards,
	contentsync.EntityExams,
}

type fetchPageFunc[T any] func(ctx context.Context, after string, limit int) (*contentsync.ContentPage[T], error)

// fetchAll pages through a remote collection by ID until HasMore is false.
// It returns the items and the dataset version tag reported by the last page.
func fetchAll[T any](
	ctx context.Context,
	fetch fetchPageFunc[T],
	pageSize int,
	idOf func(*T) string,
	prog *entityProgress,
) ([]T, string, error) {
	var (
		items   []T
		after   string
		version string
	)
	for {
		page, err := fetch(ctx, after, pageSize)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch page after %q: %w", after, err)
		}
		if page == nil {
			return nil, "", fmt.Errorf("remote returned no page after %q", after)
		}
		items = append(items, page.Items...)
		if page.Version != "" {
			version = page.Version
		}
		prog.pageFetched(len(page.Items), page.Total)

		if !page.HasMore || len(page.Items) == 0 {
			break
		}
		next := page.NextAfter
		if next == "" {
			next = idOf(&page.Items[len(page.Items)-1])
		}
		if next == after {
			return nil, "", fmt.Errorf("remote paging did not advance past %q", after)
		}
		after = next
	}
	prog.fetchDone()
	return items, version, nil
}

// fetchBatch downloads the full remote collection for entity
func (e *Engine) fetchBatch(ctx context.Context, entity contentsync.EntityType, prog *entityProgress) (EntityBatch, string, error) {
	batch := EntityBatch{Entity: entity}
	var (
		version string
		err     error
	)
	switch entity {
	case contentsync.EntityWords:
		batch.Words, version, err = fetchAll(ctx, e.remote.FetchWords, e.config.PageSize,
			func(w *contentsync.Word) string { return w.ID }, prog)
	case contentsync.EntityFlashcards:
		batch.Flashcards, version, err = fetchAll(ctx, e.remote.FetchFlashcards, e.config.PageSize,
			func(f *contentsync.Flashcard) string { return f.ID }, prog)
	case contentsync.EntityExams:
		batch.Exams, version, err = fetchAll(ctx, e.remote.FetchExams, e.config.PageSize,
			func(x *contentsync.Exam) string { return x.ID }, prog)
	default:
		err = fmt.Errorf("unknown entity type %q", entity)
	}
	return batch, version, err
}

// syncEntity runs fetch, replace and track for one entity type. It always
// emits the terminal 100% progress event and never returns an error: failures,
// panics included, are reported in the result.
func (e *Engine) syncEntity(ctx context.Context, entity contentsync.EntityType) (result SyncResult) {
	prog := newEntityProgress(entity, e.config.ProgressEvery, e.listeners.emit)
	result = SyncResult{Entity: entity}

	fail := func(err error) SyncResult {
		result.Success = false
		result.Count = 0
		result.Error = err
		result.CompletedAt = e.now().UTC()
		prog.done(0)
		e.logger.Warn("Entity sync failed", "entity", entity, "error", err)
		return result
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Entity sync panicked", "entity", entity, "panic", r)
			fail(fmt.Errorf("panic during %s sync: %v", entity, r))
		}
	}()

	start := e.stages.Start()
	batch, version, err := e.fetchBatch(ctx, entity, prog)
	e.stages.Observe(ctx, contentsync.MetricsOpSync, contentsync.MetricsStageFetch, entity, start, batch.Len(), 1, err != nil)
	if err != nil {
		return fail(fmt.Errorf("failed to fetch %s: %w", entity, err))
	}

	start = e.stages.Start()
	written, err := e.store.ReplaceEntityBatch(ctx, batch, prog.rowWritten)
	e.stages.Observe(ctx, contentsync.MetricsOpSync, contentsync.MetricsStageWrite, entity, start, written, 1, err != nil)
	if err != nil {
		return fail(fmt.Errorf("failed to replace %s: %w", entity, err))
	}

	start = e.stages.Start()
	err = e.tracker.RecordSync(ctx, entity, version, written)
	e.stages.Observe(ctx, contentsync.MetricsOpSync, contentsync.MetricsStageTrack, entity, start, written, 1, err != nil)
	if err != nil {
		// rows are committed; the tracking row is stale until the next sync
		return fail(fmt.Errorf("failed to record %s sync: %w", entity, err))
	}

	result.Success = true
	result.Count = written
	result.CompletedAt = e.now().UTC()
	prog.done(written)
	e.logger.Info("Entity synced", "entity", entity, "count", written, "version", version)
	return result
}
