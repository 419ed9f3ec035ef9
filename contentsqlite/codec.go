// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// Row types mirror the SQLite tables. This file is the only place that
// turns nested content fields into JSON text and back.

type wordRow struct {
	ID            string    `db:"id"`
	Term          string    `db:"term"`
	Translations  string    `db:"translations"`
	Definitions   string    `db:"definitions"`
	Tags          string    `db:"tags"`
	Level         string    `db:"level"`
	FrequencyRank int       `db:"frequency_rank"`
	Category      string    `db:"category"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type flashcardRow struct {
	ID           string         `db:"id"`
	Front        string         `db:"front"`
	Back         string         `db:"back"`
	WordID       sql.NullString `db:"word_id"`
	NextReviewAt time.Time      `db:"next_review_at"`
	ReviewCount  int            `db:"review_count"`
	Difficulty   string         `db:"difficulty"`
	IntervalDays int            `db:"interval_days"`
	EaseFactor   float64        `db:"ease_factor"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type examRow struct {
	ID              string    `db:"id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	Level           string    `db:"level"`
	DurationMinutes int       `db:"duration_minutes"`
	Questions       string    `db:"questions"`
	PassingScore    int       `db:"passing_score"`
	Active          bool      `db:"active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type versionRow struct {
	Version       string       `db:"version"`
	BuildNumber   int64        `db:"build_number"`
	Published     bool         `db:"published"`
	ForceUpdate   bool         `db:"force_update"`
	Changelog     string       `db:"changelog"`
	MinAppVersion string       `db:"min_app_version"`
	EntityCounts  string       `db:"entity_counts"`
	PublishedAt   sql.NullTime `db:"published_at"`
	CreatedAt     time.Time    `db:"created_at"`
	InstalledAt   time.Time    `db:"installed_at"`
}

type trackingRow struct {
	Entity     string    `db:"entity"`
	LastSyncAt time.Time `db:"last_sync_at"`
	Version    string    `db:"version"`
	Count      int       `db:"count"`
}

type examResultRow struct {
	ID          string    `db:"id"`
	ExamID      string    `db:"exam_id"`
	Score       int       `db:"score"`
	MaxScore    int       `db:"max_score"`
	Passed      bool      `db:"passed"`
	Answers     string    `db:"answers"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt time.Time `db:"completed_at"`
}

func encodeJSON(field string, v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", field, err)
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func decodeJSON(field, text string, dst any) error {
	if text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", field, err)
	}
	return nil
}

func toWordRow(w *contentsync.Word) (wordRow, error) {
	translations, err := encodeJSON("translations", w.Translations, "[]")
	if err != nil {
		return wordRow{}, err
	}
	definitions, err := encodeJSON("definitions", w.Definitions, "[]")
	if err != nil {
		return wordRow{}, err
	}
	tags, err := encodeJSON("tags", w.Tags, "[]")
	if err != nil {
		return wordRow{}, err
	}
	return wordRow{
		ID:            w.ID,
		Term:          w.Term,
		Translations:  translations,
		Definitions:   definitions,
		Tags:          tags,
		Level:         w.Level,
		FrequencyRank: w.FrequencyRank,
		Category:      w.Category,
		CreatedAt:     w.CreatedAt.UTC(),
		UpdatedAt:     w.UpdatedAt.UTC(),
	}, nil
}

func (r *wordRow) toWord() (contentsync.Word, error) {
	w := contentsync.Word{
		ID:            r.ID,
		Term:          r.Term,
		Level:         r.Level,
		FrequencyRank: r.FrequencyRank,
		Category:      r.Category,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if err := decodeJSON("translations", r.Translations, &w.Translations); err != nil {
		return w, err
	}
	if err := decodeJSON("definitions", r.Definitions, &w.Definitions); err != nil {
		return w, err
	}
	if err := decodeJSON("tags", r.Tags, &w.Tags); err != nil {
		return w, err
	}
	return w, nil
}

func toFlashcardRow(f *contentsync.Flashcard) flashcardRow {
	row := flashcardRow{
		ID:           f.ID,
		Front:        f.Front,
		Back:         f.Back,
		NextReviewAt: f.NextReviewAt.UTC(),
		ReviewCount:  f.ReviewCount,
		Difficulty:   f.Difficulty,
		IntervalDays: f.IntervalDays,
		EaseFactor:   f.EaseFactor,
		CreatedAt:    f.CreatedAt.UTC(),
		UpdatedAt:    f.UpdatedAt.UTC(),
	}
	if f.WordID != nil {
		row.WordID = sql.NullString{String: *f.WordID, Valid: true}
	}
	return row
}

func (r *flashcardRow) toFlashcard() contentsync.Flashcard {
	f := contentsync.Flashcard{
		ID:           r.ID,
		Front:        r.Front,
		Back:         r.Back,
		NextReviewAt: r.NextReviewAt.UTC(),
		ReviewCount:  r.ReviewCount,
		Difficulty:   r.Difficulty,
		IntervalDays: r.IntervalDays,
		EaseFactor:   r.EaseFactor,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.WordID.Valid {
		id := r.WordID.String
		f.WordID = &id
	}
	return f
}

func toExamRow(e *contentsync.Exam) (examRow, error) {
	questions, err := encodeJSON("questions", e.Questions, "[]")
	if err != nil {
		return examRow{}, err
	}
	return examRow{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Level:           e.Level,
		DurationMinutes: e.DurationMinutes,
		Questions:       questions,
		PassingScore:    e.PassingScore,
		Active:          e.Active,
		CreatedAt:       e.CreatedAt.UTC(),
		UpdatedAt:       e.UpdatedAt.UTC(),
	}, nil
}

func (r *examRow) toExam() (contentsync.Exam, error) {
	e := contentsync.Exam{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Level:           r.Level,
		DurationMinutes: r.DurationMinutes,
		PassingScore:    r.PassingScore,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if err := decodeJSON("questions", r.Questions, &e.Questions); err != nil {
		return e, err
	}
	return e, nil
}

func toVersionRow(v *contentsync.DatabaseVersion, installedAt time.Time) (versionRow, error) {
	changelog, err := encodeJSON("changelog", v.Changelog, "[]")
	if err != nil {
		return versionRow{}, err
	}
	counts, err := encodeJSON("entity_counts", v.EntityCounts, "{}")
	if err != nil {
		return versionRow{}, err
	}
	row := versionRow{
		Version:       v.Version,
		BuildNumber:   v.BuildNumber,
		Published:     v.Published,
		ForceUpdate:   v.ForceUpdate,
		Changelog:     changelog,
		MinAppVersion: v.MinAppVersion,
		EntityCounts:  counts,
		CreatedAt:     v.CreatedAt.UTC(),
		InstalledAt:   installedAt.UTC(),
	}
	if v.PublishedAt != nil {
		row.PublishedAt = sql.NullTime{Time: v.PublishedAt.UTC(), Valid: true}
	}
	return row, nil
}

func (r *versionRow) toVersion() (*contentsync.DatabaseVersion, error) {
	v := &contentsync.DatabaseVersion{
		Version:       r.Version,
		BuildNumber:   r.BuildNumber,
		Published:     r.Published,
		ForceUpdate:   r.ForceUpdate,
		MinAppVersion: r.MinAppVersion,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.PublishedAt.Valid {
		t := r.PublishedAt.Time.UTC()
		v.PublishedAt = &t
	}
	if err := decodeJSON("changelog", r.Changelog, &v.Changelog); err != nil {
		return nil, err
	}
	if err := decodeJSON("entity_counts", r.EntityCounts, &v.EntityCounts); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *trackingRow) toTracking() contentsync.SyncTracking {
	return contentsync.SyncTracking{
		Entity:     contentsync.EntityType(r.Entity),
		LastSyncAt: r.LastSyncAt.UTC(),
		Version:    r.Version,
		Count:      r.Count,
	}
}

func toExamResultRow(res *contentsync.ExamResult) (examResultRow, error) {
	answers, err := encodeJSON("answers", res.Answers, "{}")
	if err != nil {
		return examResultRow{}, err
	}
	return examResultRow{
		ID:          res.ID,
		ExamID:      res.ExamID,
		Score:       res.Score,
		MaxScore:    res.MaxScore,
		Passed:      res.Passed,
		Answers:     answers,
		StartedAt:   res.StartedAt.UTC(),
		CompletedAt: res.CompletedAt.UTC(),
	}, nil
}

func (r *examResultRow) toExamResult() (contentsync.ExamResult, error) {
	res := contentsync.ExamResult{
		ID:          r.ID,
		ExamID:      r.ExamID,
		Score:       r.Score,
		MaxScore:    r.MaxScore,
		Passed:      r.Passed,
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: r.CompletedAt.UTC(),
	}
	if err := decodeJSON("answers", r.Answers, &res.Answers); err != nil {
		return res, err
	}
	return res, nil
}
