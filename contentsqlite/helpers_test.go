package contentsqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(StoreConfig{Path: filepath.Join(t.TempDir(), "content.db")})
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleWord(id string, rank int) contentsync.Word {
	return contentsync.Word{
		ID:   id,
		Term: "term-" + id,
		Translations: []contentsync.Translation{
			{Language: "en", Text: "hello " + id, Primary: true},
			{Language: "de", Text: "hallo " + id},
		},
		Definitions:   []contentsync.Definition{{Text: "a greeting", Example: "hello there", Level: "A1"}},
		Tags:          []string{"greeting", "basic"},
		Level:         "A1",
		FrequencyRank: rank,
		Category:      "phrases",
		CreatedAt:     testEpoch,
		UpdatedAt:     testEpoch.Add(time.Hour),
	}
}

func sampleFlashcard(id string, due time.Time, wordID *string) contentsync.Flashcard {
	return contentsync.Flashcard{
		ID:           id,
		Front:        "front-" + id,
		Back:         "back-" + id,
		WordID:       wordID,
		NextReviewAt: due,
		ReviewCount:  1,
		Difficulty:   "medium",
		IntervalDays: 3,
		EaseFactor:   2.5,
		CreatedAt:    testEpoch,
		UpdatedAt:    testEpoch,
	}
}

func sampleExam(id string, created time.Time, active bool) contentsync.Exam {
	return contentsync.Exam{
		ID:              id,
		Title:           "Exam " + id,
		Description:     "checks the basics",
		Level:           "A1",
		DurationMinutes: 30,
		Questions: []contentsync.Question{
			{ID: "q1", Type: "multiple_choice", Prompt: "pick one", Options: []string{"a", "b", "c"}, CorrectAnswer: "b", Points: 2, Order: 1},
			{ID: "q2", Type: "true_false", Prompt: "true?", CorrectAnswer: "true", Points: 1, Order: 2},
		},
		PassingScore: 2,
		Active:       active,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func ptr[T any](v T) *T { return &v }

// fakeRemote serves in-memory collections with keyset paging by ID
type fakeRemote struct {
	mu         sync.Mutex
	words      []contentsync.Word
	flashcards []contentsync.Flashcard
	exams      []contentsync.Exam
	version    string
	fetchErr   map[contentsync.EntityType]error
	fetchCalls map[contentsync.EntityType]int

	// block, when set, holds every fetch until closed; entered receives one value per blocked fetch
	block   chan struct{}
	entered chan struct{}

	latest      *contentsync.DatabaseVersion
	checkErr    error
	checkDelay  time.Duration
	latestErr   error
	checkBuilds []int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		version:    "1.0.0",
		fetchErr:   map[contentsync.EntityType]error{},
		fetchCalls: map[contentsync.EntityType]int{},
	}
}

func (f *fakeRemote) before(ctx context.Context, entity contentsync.EntityType) error {
	f.mu.Lock()
	f.fetchCalls[entity]++
	err := f.fetchErr[entity]
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func page[T any](items []T, idOf func(*T) string, after string, limit int, version string) *contentsync.ContentPage[T] {
	sorted := append([]T(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return idOf(&sorted[i]) < idOf(&sorted[j]) })

	start := 0
	if after != "" {
		start = sort.Search(len(sorted), func(i int) bool { return idOf(&sorted[i]) > after })
	}
	end := min(start+limit, len(sorted))
	out := &contentsync.ContentPage[T]{
		Items:   sorted[start:end],
		Total:   len(sorted),
		HasMore: end < len(sorted),
		Version: version,
	}
	if end > start {
		out.NextAfter = idOf(&sorted[end-1])
	}
	return out
}

func (f *fakeRemote) FetchWords(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Word], error) {
	if err := f.before(ctx, contentsync.EntityWords); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return page(f.words, func(w *contentsync.Word) string { return w.ID }, after, limit, f.version), nil
}

func (f *fakeRemote) FetchFlashcards(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Flashcard], error) {
	if err := f.before(ctx, contentsync.EntityFlashcards); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return page(f.flashcards, func(c *contentsync.Flashcard) string { return c.ID }, after, limit, f.version), nil
}

func (f *fakeRemote) FetchExams(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Exam], error) {
	if err := f.before(ctx, contentsync.EntityExams); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return page(f.exams, func(e *contentsync.Exam) string { return e.ID }, after, limit, f.version), nil
}

func (f *fakeRemote) CheckVersion(ctx context.Context, installedBuild int64, appVersion string) (*contentsync.VersionCheckResponse, error) {
	f.mu.Lock()
	f.checkBuilds = append(f.checkBuilds, installedBuild)
	delay, err, latest := f.checkDelay, f.checkErr, f.latest
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrRemoteUnreachable, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	res := contentsync.ClassifyUpdate(installedBuild, latest, appVersion)
	return &contentsync.VersionCheckResponse{Latest: latest, Status: res.Status, Reason: res.Reason}, nil
}

func (f *fakeRemote) LatestVersion(ctx context.Context) (*contentsync.DatabaseVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if f.latest == nil {
		return nil, nil
	}
	v := *f.latest
	return &v, nil
}

func newTestEngine(t *testing.T, remote Remote, cfg *EngineConfig) (*Engine, *Store, *Tracker) {
	t.Helper()
	store := newTestStore(t)
	tracker := NewTracker(store)
	engine, err := NewEngine(store, tracker, remote, cfg, nil)
	require.NoError(t, err)
	return engine, store, tracker
}
