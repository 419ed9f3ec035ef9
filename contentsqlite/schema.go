// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

// Table names owned by the local store
const (
	tableWords        = "words"
	tableFlashcards   = "flashcards"
	tableExams        = "exams"
	tableSyncTracking = "sync_tracking"
	tableVersions     = "database_versions"
	tableSettings     = "settings"
	tableExamResults  = "exam_results"
)

// allTables is the drop order used by Reset
var allTables = []string{
	tableExamResults,
	tableFlashcards,
	tableWords,
	tableExams,
	tableSyncTracking,
	tableVersions,
	tableSettings,
}

// schemaStatements creates every table and index. Nested content fields
// (translations, definitions, tags, questions, changelog, counts, answers)
// are JSON text and only codec.go reads or writes them.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS words (
		id              TEXT PRIMARY KEY CHECK (length(id) > 0),
		term            TEXT NOT NULL,
		translations    TEXT NOT NULL DEFAULT '[]',
		definitions     TEXT NOT NULL DEFAULT '[]',
		tags            TEXT NOT NULL DEFAULT '[]',
		level           TEXT NOT NULL DEFAULT '',
		frequency_rank  INTEGER NOT NULL DEFAULT 0,
		category        TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,

	// word_id is a soft reference: no FOREIGN KEY so flashcards can land
	// even when the words step of the same sync failed.
	`CREATE TABLE IF NOT EXISTS flashcards (
		id              TEXT PRIMARY KEY CHECK (length(id) > 0),
		front           TEXT NOT NULL,
		back            TEXT NOT NULL,
		word_id         TEXT,
		next_review_at  TIMESTAMP NOT NULL,
		review_count    INTEGER NOT NULL DEFAULT 0,
		difficulty      TEXT NOT NULL DEFAULT '',
		interval_days   INTEGER NOT NULL DEFAULT 0,
		ease_factor     REAL NOT NULL DEFAULT 2.5,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS exams (
		id               TEXT PRIMARY KEY CHECK (length(id) > 0),
		title            TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		level            TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		questions        TEXT NOT NULL DEFAULT '[]',
		passing_score    INTEGER NOT NULL DEFAULT 0,
		active           INTEGER NOT NULL DEFAULT 1,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sync_tracking (
		entity        TEXT PRIMARY KEY,
		last_sync_at  TIMESTAMP NOT NULL,
		version       TEXT NOT NULL DEFAULT '',
		count         INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS database_versions (
		version          TEXT PRIMARY KEY,
		build_number     INTEGER NOT NULL,
		published        INTEGER NOT NULL DEFAULT 0,
		force_update     INTEGER NOT NULL DEFAULT 0,
		changelog        TEXT NOT NULL DEFAULT '[]',
		min_app_version  TEXT NOT NULL DEFAULT '',
		entity_counts    TEXT NOT NULL DEFAULT '{}',
		published_at     TIMESTAMP,
		created_at       TIMESTAMP NOT NULL,
		installed_at     TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS exam_results (
		id            TEXT PRIMARY KEY,
		exam_id       TEXT NOT NULL,
		score         INTEGER NOT NULL,
		max_score     INTEGER NOT NULL,
		passed        INTEGER NOT NULL,
		answers       TEXT NOT NULL DEFAULT '{}',
		started_at    TIMESTAMP NOT NULL,
		completed_at  TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_words_level ON words(level)`,
	`CREATE INDEX IF NOT EXISTS idx_words_category ON words(category)`,
	`CREATE INDEX IF NOT EXISTS idx_flashcards_next_review ON flashcards(next_review_at)`,
	`CREATE INDEX IF NOT EXISTS idx_flashcards_word ON flashcards(word_id)`,
	`CREATE INDEX IF NOT EXISTS idx_exams_level ON exams(level)`,
	`CREATE INDEX IF NOT EXISTS idx_versions_build ON database_versions(published, build_number)`,
	`CREATE INDEX IF NOT EXISTS idx_exam_results_exam ON exam_results(exam_id, completed_at)`,
}
