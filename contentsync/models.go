// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import (
	"time"
)

// EntityType identifies one category of synchronized content
type EntityType string

const (
	EntityWords      EntityType = "words"
	EntityFlashcards EntityType = "flashcards"
	EntityExams      EntityType = "exams"
)

// EntityTypes lists every entity type known to the protocol
var EntityTypes = []EntityType{EntityWords, EntityFlashcards, EntityExams}

// Valid reports whether the entity type is one of the known content types
func (e EntityType) Valid() bool {
	switch e {
	case EntityWords, EntityFlashcards, EntityExams:
		return true
	default:
		return false
	}
}

// Translation is a single translation of a word into another language
type Translation struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Primary  bool   `json:"primary"`
}

// Definition is a single dictionary definition of a word
type Definition struct {
	Text    string `json:"text"`
	Example string `json:"example,omitempty"`
	Level   string `json:"level,omitempty"`
}

// Word is a vocabulary entry
type Word struct {
	ID            string        `json:"id"`
	Term          string        `json:"term"`
	Translations  []Translation `json:"translations"`
	Definitions   []Definition  `json:"definitions"`
	Tags          []string      `json:"tags"`
	Level         string        `json:"level"`
	FrequencyRank int           `json:"frequency_rank"`
	Category      string        `json:"category"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Flashcard is a spaced-repetition card, optionally pointing back at a Word
type Flashcard struct {
	ID           string    `json:"id"`
	Front        string    `json:"front"`
	Back         string    `json:"back"`
	WordID       *string   `json:"word_id,omitempty"` // soft reference, not enforced by storage
	NextReviewAt time.Time `json:"next_review_at"`
	ReviewCount  int       `json:"review_count"`
	Difficulty   string    `json:"difficulty"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   float64   `json:"ease_factor"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Question is one item of an Exam
type Question struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"` // multiple_choice, true_false, fill_blank
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        int      `json:"points"`
	Order         int      `json:"order"`
}

// Exam is an ordered set of questions with a pass threshold
type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Level           string     `json:"level"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
	PassingScore    int        `json:"passing_score"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DatabaseVersion describes one published dataset release
type DatabaseVersion struct {
	Version       string             `json:"version"`      // semantic version, unique
	BuildNumber   int64              `json:"build_number"` // monotonically increasing
	Published     bool               `json:"published"`
	ForceUpdate   bool               `json:"force_update"`
	Changelog     []string           `json:"changelog"`
	MinAppVersion string             `json:"min_app_version,omitempty"`
	EntityCounts  map[EntityType]int `json:"entity_counts,omitempty"`
	PublishedAt   *time.Time         `json:"published_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// SyncTracking is the last-known-good bookkeeping row for one entity type.
// Absence of a row means the entity type was never synced.
type SyncTracking struct {
	Entity     EntityType `json:"entity"`
	LastSyncAt time.Time  `json:"last_sync_at"`
	Version    string     `json:"version"`
	Count      int        `json:"count"`
}

// ExamResult is one attempt at an exam, written by the UI layer
type ExamResult struct {
	ID          string            `json:"id"`
	ExamID      string            `json:"exam_id"`
	Score       int               `json:"score"`
	MaxScore    int               `json:"max_score"`
	Passed      bool              `json:"passed"`
	Answers     map[string]string `json:"answers,omitempty"` // question id -> answer
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// ReviewUpdate carries the scheduling fields the UI may change on a flashcard
type ReviewUpdate struct {
	NextReviewAt time.Time `json:"next_review_at"`
	ReviewCount  int       `json:"review_count"`
	Difficulty   string    `json:"difficulty"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   float64   `json:"ease_factor"`
}
