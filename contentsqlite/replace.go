// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mobiletoly/go-contentsync/contentsync"
)

// EntityBatch is one entity type's full remote collection, ready to be written.
// Only the slice matching Entity is used.
type EntityBatch struct {
	Entity     contentsync.EntityType
	Words      []contentsync.Word
	Flashcards []contentsync.Flashcard
	Exams      []contentsync.Exam
}

// Len returns the number of records for the batch's entity type
func (b EntityBatch) Len() int {
	switch b.Entity {
	case contentsync.EntityWords:
		return len(b.Words)
	case contentsync.EntityFlashcards:
		return len(b.Flashcards)
	case contentsync.EntityExams:
		return len(b.Exams)
	default:
		return 0
	}
}

var (
	wordColumns = []string{"id", "term", "translations", "definitions", "tags", "level",
		"frequency_rank", "category", "created_at", "updated_at"}
	flashcardColumns = []string{"id", "front", "back", "word_id", "next_review_at", "review_count",
		"difficulty", "interval_days", "ease_factor", "created_at", "updated_at"}
	examColumns = []string{"id", "title", "description", "level", "duration_minutes", "questions",
		"passing_score", "active", "created_at", "updated_at"}

	upsertWordSQL      = buildUpsert(tableWords, "id", wordColumns)
	upsertFlashcardSQL = buildUpsert(tableFlashcards, "id", flashcardColumns)
	upsertExamSQL      = buildUpsert(tableExams, "id", examColumns)
)

// buildUpsert renders INSERT ... ON CONFLICT(key) DO UPDATE with named parameters
func buildUpsert(table, key string, cols []string) string {
	names := make([]string, len(cols))
	var sets []string
	for i, c := range cols {
		names[i] = ":" + c
		if c != key {
			sets = append(sets, fmt.Sprintf("%s=excluded.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), strings.Join(names, ", "), key, strings.Join(sets, ", "))
}

// ReplaceEntityBatch upserts every record of the batch inside one transaction.
// Remote data overwrites local rows with the same ID. Any failure rolls back
// the whole batch. onRow, when set, is called once per committed row with the
// running count, after the transaction ends and the write lock is released.
func (s *Store) ReplaceEntityBatch(ctx context.Context, batch EntityBatch, onRow func(done int)) (int, error) {
	switch batch.Entity {
	case contentsync.EntityWords:
		return s.ReplaceWords(ctx, batch.Words, onRow)
	case contentsync.EntityFlashcards:
		return s.ReplaceFlashcards(ctx, batch.Flashcards, onRow)
	case contentsync.EntityExams:
		return s.ReplaceExams(ctx, batch.Exams, onRow)
	default:
		return 0, fmt.Errorf("unknown entity type %q", batch.Entity)
	}
}

// ReplaceWords upserts words in one transaction
func (s *Store) ReplaceWords(ctx context.Context, words []contentsync.Word, onRow func(done int)) (int, error) {
	return replaceRows(ctx, s, tableWords, upsertWordSQL, words, func(w *contentsync.Word) (any, error) {
		return toWordRow(w)
	}, onRow)
}

// ReplaceFlashcards upserts flashcards in one transaction
func (s *Store) ReplaceFlashcards(ctx context.Context, cards []contentsync.Flashcard, onRow func(done int)) (int, error) {
	return replaceRows(ctx, s, tableFlashcards, upsertFlashcardSQL, cards, func(f *contentsync.Flashcard) (any, error) {
		return toFlashcardRow(f), nil
	}, onRow)
}

// ReplaceExams upserts exams in one transaction
func (s *Store) ReplaceExams(ctx context.Context, exams []contentsync.Exam, onRow func(done int)) (int, error) {
	return replaceRows(ctx, s, tableExams, upsertExamSQL, exams, func(e *contentsync.Exam) (any, error) {
		return toExamRow(e)
	}, onRow)
}

func replaceRows[T any](
	ctx context.Context,
	s *Store,
	table, query string,
	items []T,
	toRow func(*T) (any, error),
	onRow func(done int),
) (int, error) {
	written := 0
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s upsert: %w", table, err)
		}
		defer stmt.Close()

		for i := range items {
			row, err := toRow(&items[i])
			if err != nil {
				return fmt.Errorf("failed to encode %s row %d: %w", table, i, err)
			}
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("failed to upsert %s row %d: %w", table, i, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Batch replace rolled back", "table", table, "rows", len(items), "error", err)
		return 0, err
	}
	s.logger.Debug("Batch replace committed", "table", table, "rows", written)
	if onRow != nil {
		for done := 1; done <= written; done++ {
			onRow(done)
		}
	}
	return written, nil
}
