// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// WordQuery filters Words. Zero fields do not filter; Limit <= 0 means no limit.
type WordQuery struct {
	Level    string
	Category string
	Tag      string
	Limit    int
}

// FlashcardQuery filters Flashcards
type FlashcardQuery struct {
	DueBefore *time.Time // only cards with next_review_at <= DueBefore
	WordID    string
	Limit     int
}

// ExamQuery filters Exams
type ExamQuery struct {
	Level      string
	ActiveOnly bool
	Limit      int
}

// where accumulates AND-ed conditions with positional args
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

// Words returns words ordered by frequency rank, then term
func (s *Store) Words(ctx context.Context, q WordQuery) ([]contentsync.Word, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var w where
	if q.Level != "" {
		w.add("level = ?", q.Level)
	}
	if q.Category != "" {
		w.add("category = ?", q.Category)
	}
	if q.Tag != "" {
		w.add("EXISTS (SELECT 1 FROM json_each(words.tags) WHERE json_each.value = ?)", q.Tag)
	}

	var rows []wordRow
	query := "SELECT * FROM words" + w.sql() + " ORDER BY frequency_rank, term, id" + limitClause(q.Limit)
	if err := db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to query words: %w", err)
	}

	out := make([]contentsync.Word, 0, len(rows))
	for i := range rows {
		word, err := rows[i].toWord()
		if err != nil {
			return nil, fmt.Errorf("word %s: %w", rows[i].ID, err)
		}
		out = append(out, word)
	}
	return out, nil
}

// Word returns one word or ErrNotFound
func (s *Store) Word(ctx context.Context, id string) (*contentsync.Word, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var row wordRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM words WHERE id = ?", id); err != nil {
		return nil, notFound(err, "word", id)
	}
	word, err := row.toWord()
	if err != nil {
		return nil, fmt.Errorf("word %s: %w", id, err)
	}
	return &word, nil
}

// Flashcards returns flashcards ordered by next review time ascending
func (s *Store) Flashcards(ctx context.Context, q FlashcardQuery) ([]contentsync.Flashcard, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var w where
	if q.DueBefore != nil {
		w.add("next_review_at <= ?", q.DueBefore.UTC())
	}
	if q.WordID != "" {
		w.add("word_id = ?", q.WordID)
	}

	var rows []flashcardRow
	query := "SELECT * FROM flashcards" + w.sql() + " ORDER BY next_review_at, id" + limitClause(q.Limit)
	if err := db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to query flashcards: %w", err)
	}

	out := make([]contentsync.Flashcard, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toFlashcard())
	}
	return out, nil
}

// DueFlashcards is Flashcards with DueBefore = now
func (s *Store) DueFlashcards(ctx context.Context, now time.Time, limit int) ([]contentsync.Flashcard, error) {
	return s.Flashcards(ctx, FlashcardQuery{DueBefore: &now, Limit: limit})
}

// Flashcard returns one flashcard or ErrNotFound
func (s *Store) Flashcard(ctx context.Context, id string) (*contentsync.Flashcard, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var row flashcardRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM flashcards WHERE id = ?", id); err != nil {
		return nil, notFound(err, "flashcard", id)
	}
	card := row.toFlashcard()
	return &card, nil
}

// Exams returns exams, newest first
func (s *Store) Exams(ctx context.Context, q ExamQuery) ([]contentsync.Exam, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var w where
	if q.Level != "" {
		w.add("level = ?", q.Level)
	}
	if q.ActiveOnly {
		w.add("active = 1")
	}

	var rows []examRow
	query := "SELECT * FROM exams" + w.sql() + " ORDER BY created_at DESC, id" + limitClause(q.Limit)
	if err := db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to query exams: %w", err)
	}

	out := make([]contentsync.Exam, 0, len(rows))
	for i := range rows {
		exam, err := rows[i].toExam()
		if err != nil {
			return nil, fmt.Errorf("exam %s: %w", rows[i].ID, err)
		}
		out = append(out, exam)
	}
	return out, nil
}

// Exam returns one exam or ErrNotFound
func (s *Store) Exam(ctx context.Context, id string) (*contentsync.Exam, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var row examRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM exams WHERE id = ?", id); err != nil {
		return nil, notFound(err, "exam", id)
	}
	exam, err := row.toExam()
	if err != nil {
		return nil, fmt.Errorf("exam %s: %w", id, err)
	}
	return &exam, nil
}

// Count returns the number of rows stored for an entity type
func (s *Store) Count(ctx context.Context, entity contentsync.EntityType) (int, error) {
	if !entity.Valid() {
		return 0, fmt.Errorf("unknown entity type %q", entity)
	}
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	// entity is validated above, so it is always a table name
	if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+string(entity)); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", entity, err)
	}
	return n, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}
