// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool the content service uses.
// pgxmock.PgxPoolIface implements it as well.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// ServiceConfig holds content service settings
type ServiceConfig struct {
	MaxPublishRetries int           // attempts for a publish hitting serialization failures, e.g. 3
	RetryBaseDelay    time.Duration // first backoff, doubled per attempt
	RetryMaxDelay     time.Duration
	StageMetrics      StageMetricsRecorder
	LogStageTimings   bool
}

// DefaultServiceConfig returns the default content service settings
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxPublishRetries: 3,
		RetryBaseDelay:    50 * time.Millisecond,
		RetryMaxDelay:     time.Second,
	}
}

// ContentService serves the authoritative content collections and dataset
// versions out of Postgres
type ContentService struct {
	pool   PgxPool
	config *ServiceConfig
	logger *slog.Logger
	stages StageObserver
	now    func() time.Time
}

// NewContentService creates a content service over pool
func NewContentService(pool PgxPool, config *ServiceConfig, logger *slog.Logger) (*ContentService, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if config == nil {
		config = DefaultServiceConfig()
	}
	if config.MaxPublishRetries <= 0 {
		config.MaxPublishRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentService{
		pool:   pool,
		config: config,
		logger: logger,
		stages: StageObserver{Recorder: config.StageMetrics, LogTimings: config.LogStageTimings, Logger: logger},
		now:    time.Now,
	}, nil
}

const (
	selectWordsSQL = `SELECT id, term, translations, definitions, tags, level, frequency_rank, category, created_at, updated_at FROM words`

	selectFlashcardsSQL = `SELECT id, front, back, word_id, next_review_at, review_count, difficulty, interval_days, ease_factor, created_at, updated_at FROM flashcards`

	selectExamsSQL = `SELECT id, title, description, level, duration_minutes, questions, passing_score, active, created_at, updated_at FROM exams`

	selectLatestVersionSQL = `SELECT version, build_number, published, force_update, changelog, min_app_version, entity_counts, published_at, created_at
		FROM database_versions WHERE published ORDER BY build_number DESC LIMIT 1`

	latestVersionTagSQL = `SELECT COALESCE((SELECT version FROM database_versions WHERE published ORDER BY build_number DESC LIMIT 1), '')`

	upsertWordSQL = `INSERT INTO words (id, term, translations, definitions, tags, level, frequency_rank, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET term=EXCLUDED.term, translations=EXCLUDED.translations, definitions=EXCLUDED.definitions,
			tags=EXCLUDED.tags, level=EXCLUDED.level, frequency_rank=EXCLUDED.frequency_rank, category=EXCLUDED.category,
			updated_at=EXCLUDED.updated_at`

	upsertFlashcardSQL = `INSERT INTO flashcards (id, front, back, word_id, next_review_at, review_count, difficulty, interval_days, ease_factor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET front=EXCLUDED.front, back=EXCLUDED.back, word_id=EXCLUDED.word_id,
			next_review_at=EXCLUDED.next_review_at, review_count=EXCLUDED.review_count, difficulty=EXCLUDED.difficulty,
			interval_days=EXCLUDED.interval_days, ease_factor=EXCLUDED.ease_factor, updated_at=EXCLUDED.updated_at`

	upsertExamSQL = `INSERT INTO exams (id, title, description, level, duration_minutes, questions, passing_score, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description, level=EXCLUDED.level,
			duration_minutes=EXCLUDED.duration_minutes, questions=EXCLUDED.questions, passing_score=EXCLUDED.passing_score,
			active=EXCLUDED.active, updated_at=EXCLUDED.updated_at`

	insertVersionSQL = `INSERT INTO database_versions
		(version, build_number, published, force_update, changelog, min_app_version, entity_counts, published_at, created_at)
		VALUES ($1, $2, true, $3, $4, $5, $6, $7, $7)`
)

// ListWords returns one keyset page of words ordered by ID
func (s *ContentService) ListWords(ctx context.Context, after string, limit int) (*ContentPage[Word], error) {
	return listPage(ctx, s, EntityWords, selectWordsSQL, after, limit, scanWord, func(w *Word) string { return w.ID })
}

// ListFlashcards returns one keyset page of flashcards ordered by ID
func (s *ContentService) ListFlashcards(ctx context.Context, after string, limit int) (*ContentPage[Flashcard], error) {
	return listPage(ctx, s, EntityFlashcards, selectFlashcardsSQL, after, limit, scanFlashcard, func(f *Flashcard) string { return f.ID })
}

// ListExams returns one keyset page of exams ordered by ID
func (s *ContentService) ListExams(ctx context.Context, after string, limit int) (*ContentPage[Exam], error) {
	return listPage(ctx, s, EntityExams, selectExamsSQL, after, limit, scanExam, func(e *Exam) string { return e.ID })
}

// ClampPageLimit maps limit into [1, MaxPageLimit], defaulting to DefaultPageLimit
func ClampPageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	return min(limit, MaxPageLimit)
}

func listPage[T any](
	ctx context.Context,
	s *ContentService,
	entity EntityType,
	selectSQL, after string,
	limit int,
	scan func(pgx.Row) (T, error),
	idOf func(*T) string,
) (*ContentPage[T], error) {
	limit = ClampPageLimit(limit)
	start := s.stages.Start()

	page := &ContentPage[T]{Items: []T{}}
	err := s.readTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+string(entity)).Scan(&page.Total); err != nil {
			return fmt.Errorf("failed to count %s: %w", entity, err)
		}
		if err := tx.QueryRow(ctx, latestVersionTagSQL).Scan(&page.Version); err != nil {
			return fmt.Errorf("failed to read latest version: %w", err)
		}

		// one extra row tells whether another page follows
		rows, err := tx.Query(ctx, selectSQL+` WHERE id > $1 ORDER BY id LIMIT $2`, after, limit+1)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", entity, err)
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", entity, err)
			}
			page.Items = append(page.Items, item)
		}
		return rows.Err()
	})
	s.stages.Observe(ctx, MetricsOpList, MetricsStageQuery, entity, start, len(page.Items), 1, err != nil)
	if err != nil {
		return nil, err
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		page.HasMore = true
	}
	if n := len(page.Items); n > 0 {
		page.NextAfter = idOf(&page.Items[n-1])
	}
	return page, nil
}

// readTx runs fn in a read-only snapshot so counts, version and rows agree
func (s *ContentService) readTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// writeTx runs fn in a read-write transaction at the given isolation level
func (s *ContentService) writeTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// LatestVersion returns the published version with the highest build number,
// or nil when nothing is published
func (s *ContentService) LatestVersion(ctx context.Context) (*DatabaseVersion, error) {
	v, err := scanVersion(s.pool.QueryRow(ctx, selectLatestVersionSQL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}
	return v, nil
}

// CheckVersion classifies the latest published version for a client holding installedBuild
func (s *ContentService) CheckVersion(ctx context.Context, installedBuild int64, appVersion string) (*VersionCheckResponse, error) {
	latest, err := s.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	res := ClassifyUpdate(installedBuild, latest, appVersion)
	return &VersionCheckResponse{Latest: latest, Status: res.Status, Reason: res.Reason}, nil
}

// UpsertWords writes words in one transaction; remote-authoritative rows are replaced by ID
func (s *ContentService) UpsertWords(ctx context.Context, words []Word) (int, error) {
	return upsertAll(ctx, s, EntityWords, words, func(w *Word) string { return w.ID },
		func(ctx context.Context, tx pgx.Tx, w *Word, now time.Time) error {
			translations, err := marshalColumn(w.Translations, "[]")
			if err != nil {
				return err
			}
			definitions, err := marshalColumn(w.Definitions, "[]")
			if err != nil {
				return err
			}
			tags, err := marshalColumn(w.Tags, "[]")
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, upsertWordSQL, w.ID, w.Term, translations, definitions, tags,
				w.Level, w.FrequencyRank, w.Category, orNow(w.CreatedAt, now), orNow(w.UpdatedAt, now))
			return err
		})
}

// UpsertFlashcards writes flashcards in one transaction
func (s *ContentService) UpsertFlashcards(ctx context.Context, cards []Flashcard) (int, error) {
	return upsertAll(ctx, s, EntityFlashcards, cards, func(f *Flashcard) string { return f.ID },
		func(ctx context.Context, tx pgx.Tx, f *Flashcard, now time.Time) error {
			ease := f.EaseFactor
			if ease == 0 {
				ease = 2.5
			}
			_, err := tx.Exec(ctx, upsertFlashcardSQL, f.ID, f.Front, f.Back, f.WordID, orNow(f.NextReviewAt, now),
				f.ReviewCount, f.Difficulty, f.IntervalDays, ease, orNow(f.CreatedAt, now), orNow(f.UpdatedAt, now))
			return err
		})
}

// UpsertExams writes exams in one transaction
func (s *ContentService) UpsertExams(ctx context.Context, exams []Exam) (int, error) {
	return upsertAll(ctx, s, EntityExams, exams, func(e *Exam) string { return e.ID },
		func(ctx context.Context, tx pgx.Tx, e *Exam, now time.Time) error {
			questions, err := marshalColumn(e.Questions, "[]")
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, upsertExamSQL, e.ID, e.Title, e.Description, e.Level, e.DurationMinutes,
				questions, e.PassingScore, e.Active, orNow(e.CreatedAt, now), orNow(e.UpdatedAt, now))
			return err
		})
}

func upsertAll[T any](
	ctx context.Context,
	s *ContentService,
	entity EntityType,
	items []T,
	idOf func(*T) string,
	exec func(ctx context.Context, tx pgx.Tx, item *T, now time.Time) error,
) (int, error) {
	for i := range items {
		if idOf(&items[i]) == "" {
			return 0, fmt.Errorf("%s record %d has no id: %w", entity, i, ErrInvalidContent)
		}
	}

	start := s.stages.Start()
	now := s.now().UTC()
	err := s.writeTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		for i := range items {
			if err := exec(ctx, tx, &items[i], now); err != nil {
				return fmt.Errorf("failed to upsert %s %s: %w", entity, idOf(&items[i]), err)
			}
		}
		return nil
	})
	s.stages.Observe(ctx, MetricsOpUpsert, MetricsStageApply, entity, start, len(items), 1, err != nil)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Content imported", "entity", entity, "count", len(items))
	return len(items), nil
}

// PublishVersion publishes a new dataset version with the next build number
// and a snapshot of the entity counts. Serialization failures are retried.
func (s *ContentService) PublishVersion(ctx context.Context, req PublishRequest) (*DatabaseVersion, error) {
	if !ValidVersion(req.Version) {
		return nil, fmt.Errorf("version %q: %w", req.Version, ErrInvalidVersion)
	}
	if req.MinAppVersion != "" && !ValidVersion(req.MinAppVersion) {
		return nil, fmt.Errorf("min app version %q: %w", req.MinAppVersion, ErrInvalidVersion)
	}

	for attempt := 1; ; attempt++ {
		start := s.stages.Start()
		v, err := s.publishOnce(ctx, req)
		s.stages.Observe(ctx, MetricsOpPublish, MetricsStageTotal, "", start, 1, attempt, err != nil)
		if err == nil {
			s.logger.Info("Dataset version published", "version", v.Version, "build", v.BuildNumber, "force_update", v.ForceUpdate)
			return v, nil
		}
		if !isRetryablePGTxError(err) || attempt >= s.config.MaxPublishRetries {
			return nil, err
		}
		s.logger.Warn("Publish conflicted, retrying", "version", req.Version, "attempt", attempt, "error", err)
		if err := sleepWithContext(ctx, retryBackoff(s.config.RetryBaseDelay, s.config.RetryMaxDelay, attempt)); err != nil {
			return nil, err
		}
	}
}

func (s *ContentService) publishOnce(ctx context.Context, req PublishRequest) (*DatabaseVersion, error) {
	v := &DatabaseVersion{
		Version:       req.Version,
		Published:     true,
		ForceUpdate:   req.ForceUpdate,
		Changelog:     req.Changelog,
		MinAppVersion: req.MinAppVersion,
		EntityCounts:  make(map[EntityType]int, len(EntityTypes)),
	}
	if v.Changelog == nil {
		v.Changelog = []string{}
	}

	err := s.writeTx(ctx, pgx.Serializable, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(build_number), 0) + 1 FROM database_versions`).Scan(&v.BuildNumber); err != nil {
			return fmt.Errorf("failed to allocate build number: %w", err)
		}
		for _, entity := range EntityTypes {
			var n int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+string(entity)).Scan(&n); err != nil {
				return fmt.Errorf("failed to count %s: %w", entity, err)
			}
			v.EntityCounts[entity] = n
		}

		changelog, err := marshalColumn(v.Changelog, "[]")
		if err != nil {
			return err
		}
		counts, err := marshalColumn(v.EntityCounts, "{}")
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if _, err := tx.Exec(ctx, insertVersionSQL, v.Version, v.BuildNumber, v.ForceUpdate, changelog, v.MinAppVersion, counts, now); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("version %s: %w", v.Version, ErrVersionExists)
			}
			return fmt.Errorf("failed to insert version: %w", err)
		}
		v.PublishedAt = &now
		v.CreatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

func marshalColumn(v any, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}

func unmarshalColumn(field string, b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", field, err)
	}
	return nil
}

func scanWord(row pgx.Row) (Word, error) {
	var w Word
	var translations, definitions, tags []byte
	if err := row.Scan(&w.ID, &w.Term, &translations, &definitions, &tags, &w.Level,
		&w.FrequencyRank, &w.Category, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return w, err
	}
	if err := unmarshalColumn("translations", translations, &w.Translations); err != nil {
		return w, err
	}
	if err := unmarshalColumn("definitions", definitions, &w.Definitions); err != nil {
		return w, err
	}
	if err := unmarshalColumn("tags", tags, &w.Tags); err != nil {
		return w, err
	}
	return w, nil
}

func scanFlashcard(row pgx.Row) (Flashcard, error) {
	var f Flashcard
	err := row.Scan(&f.ID, &f.Front, &f.Back, &f.WordID, &f.NextReviewAt, &f.ReviewCount,
		&f.Difficulty, &f.IntervalDays, &f.EaseFactor, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func scanExam(row pgx.Row) (Exam, error) {
	var (
		e         Exam
		questions []byte
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Level, &e.DurationMinutes, &questions,
		&e.PassingScore, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return e, err
	}
	if err := unmarshalColumn("questions", questions, &e.Questions); err != nil {
		return e, err
	}
	return e, nil
}

func scanVersion(row pgx.Row) (*DatabaseVersion, error) {
	var (
		v                 DatabaseVersion
		changelog, counts []byte
	)
	if err := row.Scan(&v.Version, &v.BuildNumber, &v.Published, &v.ForceUpdate, &changelog,
		&v.MinAppVersion, &counts, &v.PublishedAt, &v.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalColumn("changelog", changelog, &v.Changelog); err != nil {
		return nil, err
	}
	if err := unmarshalColumn("entity_counts", counts, &v.EntityCounts); err != nil {
		return nil, err
	}
	return &v, nil
}
