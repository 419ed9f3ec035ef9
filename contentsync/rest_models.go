// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import "time"

// REST/JSON models for HTTP API requests and responses

// ContentPage is one keyset page of a bulk content collection
type ContentPage[T any] struct {
	Items     []T    `json:"items"`
	Total     int    `json:"total"`      // Rows in the whole collection at read time
	HasMore   bool   `json:"has_more"`   // More pages available after NextAfter
	NextAfter string `json:"next_after"` // Last ID of this page, pass as ?after=
	Version   string `json:"version"`    // Latest published dataset version tag ("" if none)
}

// VersionCheckResponse is returned by the version-check endpoint
type VersionCheckResponse struct {
	Latest *DatabaseVersion `json:"latest,omitempty"` // Highest published version, nil if nothing published
	Status UpdateStatus     `json:"status"`
	Reason string           `json:"reason"`
}

// UpdateCheckResult is the transient outcome of one update check
type UpdateCheckResult struct {
	Status    UpdateStatus     `json:"status"`
	Reason    string           `json:"reason"`
	Candidate *DatabaseVersion `json:"candidate,omitempty"` // set when an update exists
	CheckedAt time.Time        `json:"checked_at"`
}

// UpdateAvailable reports whether a newer dataset exists, applicable or not
func (r UpdateCheckResult) UpdateAvailable() bool {
	switch r.Status {
	case UpdateOptional, UpdateForced, UpdateIncompatible:
		return true
	default:
		return false
	}
}

// PublishRequest is the admin request to publish a new dataset version
type PublishRequest struct {
	Version       string   `json:"version"`
	ForceUpdate   bool     `json:"force_update"`
	Changelog     []string `json:"changelog"`
	MinAppVersion string   `json:"min_app_version,omitempty"`
}

// UpsertResponse reports how many rows an admin import wrote
type UpsertResponse struct {
	Entity  EntityType `json:"entity"`
	Written int        `json:"written"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
