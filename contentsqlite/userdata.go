// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mobiletoly/go-contentsync/contentsync"
)

// Writes made by the UI outside the sync path. A later full sync still
// overwrites flashcard scheduling fields with the remote values.

// UpdateFlashcardReview stores new review scheduling fields for one flashcard
func (s *Store) UpdateFlashcardReview(ctx context.Context, id string, upd contentsync.ReviewUpdate) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE flashcards
			SET next_review_at = ?, review_count = ?, difficulty = ?, interval_days = ?,
			    ease_factor = ?, updated_at = ?
			WHERE id = ?`,
			upd.NextReviewAt.UTC(), upd.ReviewCount, upd.Difficulty, upd.IntervalDays,
			upd.EaseFactor, s.now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to update flashcard %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update flashcard %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("flashcard %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// SaveExamResult stores one exam attempt and returns it with its ID assigned
func (s *Store) SaveExamResult(ctx context.Context, res contentsync.ExamResult) (contentsync.ExamResult, error) {
	if res.ExamID == "" {
		return res, fmt.Errorf("exam id is required")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	row, err := toExamResultRow(&res)
	if err != nil {
		return res, err
	}
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO exam_results (id, exam_id, score, max_score, passed, answers, started_at, completed_at)
			VALUES (:id, :exam_id, :score, :max_score, :passed, :answers, :started_at, :completed_at)
			ON CONFLICT(id) DO UPDATE SET
				score=excluded.score, max_score=excluded.max_score, passed=excluded.passed,
				answers=excluded.answers, started_at=excluded.started_at, completed_at=excluded.completed_at`,
			row)
		if err != nil {
			return fmt.Errorf("failed to save exam result: %w", err)
		}
		return nil
	})
	return res, err
}

// ExamResults returns attempts for one exam, most recent first
func (s *Store) ExamResults(ctx context.Context, examID string, limit int) ([]contentsync.ExamResult, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var rows []examResultRow
	query := `SELECT * FROM exam_results WHERE exam_id = ? ORDER BY completed_at DESC, id` + limitClause(limit)
	if err := db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("failed to query exam results: %w", err)
	}
	out := make([]contentsync.ExamResult, 0, len(rows))
	for i := range rows {
		r, err := rows[i].toExamResult()
		if err != nil {
			return nil, fmt.Errorf("exam result %s: %w", rows[i].ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}
