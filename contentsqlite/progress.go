// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"log/slog"
	"sync"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// SyncPhase tells which part of an entity sync a progress event belongs to
type SyncPhase string

const (
	PhaseFetching SyncPhase = "fetching"
	PhaseWriting  SyncPhase = "writing"
	PhaseDone     SyncPhase = "done"
)

// SyncProgress is emitted to listeners while one entity type syncs.
// Percentage never decreases within one entity and the PhaseDone event
// always carries 100, whether the entity succeeded or failed.
type SyncProgress struct {
	Entity     contentsync.EntityType `json:"entity"`
	Phase      SyncPhase              `json:"phase"`
	Processed  int                    `json:"processed"`
	Total      int                    `json:"total"`
	Percentage int                    `json:"percentage"`
}

// ProgressListener receives progress events on the syncing goroutine.
// It is never called while the store holds its write lock, so it may call
// back into the Store. A panic in a listener is logged and swallowed.
type ProgressListener func(SyncProgress)

// Subscription is the handle returned by AddProgressListener
type Subscription struct {
	reg  *listenerRegistry
	id   uint64
	once sync.Once
}

// Cancel removes the listener. Calling it more than once is harmless.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.reg.remove(s.id) })
}

type listenerEntry struct {
	id uint64
	fn ProgressListener
}

// listenerRegistry is owned by one Engine. Listeners are called in
// registration order, outside the lock.
type listenerRegistry struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listenerEntry
	logger    *slog.Logger // nil means slog.Default()
}

func (r *listenerRegistry) add(fn ProgressListener) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.listeners = append(r.listeners, listenerEntry{id: r.nextID, fn: fn})
	return &Subscription{reg: r, id: r.nextID}
}

func (r *listenerRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *listenerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

func (r *listenerRegistry) emit(p SyncProgress) {
	r.mu.Lock()
	snapshot := make([]listenerEntry, len(r.listeners))
	copy(snapshot, r.listeners)
	r.mu.Unlock()

	for _, l := range snapshot {
		r.call(l, p)
	}
}

func (r *listenerRegistry) call(l listenerEntry, p SyncProgress) {
	defer func() {
		if rec := recover(); rec != nil {
			logger := r.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("Progress listener panicked",
				"listener", l.id, "entity", p.Entity, "phase", p.Phase, "panic", rec)
		}
	}()
	l.fn(p)
}

// entityProgress computes percentages for one entity sync. Fetching and
// writing each count for half: (fetched + written) * 100 / (2 * total),
// capped at 99 until done.
type entityProgress struct {
	entity  contentsync.EntityType
	every   int
	emit    func(SyncProgress)
	total   int
	fetched int
	written int
	last    int
}

func newEntityProgress(entity contentsync.EntityType, every int, emit func(SyncProgress)) *entityProgress {
	if every <= 0 {
		every = 1
	}
	return &entityProgress{entity: entity, every: every, emit: emit}
}

func (p *entityProgress) percent() int {
	total := max(p.total, p.fetched)
	pct := 0
	if total > 0 {
		pct = (p.fetched + p.written) * 100 / (2 * total)
	}
	pct = min(pct, 99)
	pct = max(pct, p.last)
	p.last = pct
	return pct
}

// pageFetched records one fetched page; remoteTotal is the collection size the remote reported
func (p *entityProgress) pageFetched(n, remoteTotal int) {
	p.fetched += n
	p.total = max(remoteTotal, p.fetched)
	p.emit(SyncProgress{
		Entity:     p.entity,
		Phase:      PhaseFetching,
		Processed:  p.fetched,
		Total:      p.total,
		Percentage: p.percent(),
	})
}

// fetchDone fixes the total to what was actually fetched
func (p *entityProgress) fetchDone() {
	p.total = p.fetched
}

// rowWritten is the onRow callback for the batch replace. The store calls it
// after commit, so writing events only follow a successful replace.
func (p *entityProgress) rowWritten(done int) {
	p.written = done
	if done%p.every != 0 && done != p.total {
		return
	}
	p.emit(SyncProgress{
		Entity:     p.entity,
		Phase:      PhaseWriting,
		Processed:  done,
		Total:      p.total,
		Percentage: p.percent(),
	})
}

func (p *entityProgress) done(processed int) {
	p.last = 100
	p.emit(SyncProgress{
		Entity:     p.entity,
		Phase:      PhaseDone,
		Processed:  processed,
		Total:      p.total,
		Percentage: 100,
	})
}
