// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

// UpdateStatus classifies the outcome of an update check
type UpdateStatus string

// Update check statuses
const (
	UpdateNone         UpdateStatus = "no_update"
	UpdateOptional     UpdateStatus = "optional_update"
	UpdateForced       UpdateStatus = "forced_update"
	UpdateIncompatible UpdateStatus = "incompatible"
	UpdateUnreachable  UpdateStatus = "unreachable"
)

// Error codes used in ErrorResponse.Error
const (
	CodeMethodNotAllowed = "method_not_allowed"
	CodeAuthentication   = "authentication_failed"
	CodeForbidden        = "forbidden"
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeFetchFailed      = "fetch_failed"
	CodeImportFailed     = "import_failed"
	CodePublishFailed    = "publish_failed"
	CodeConflict         = "conflict"
)

// Roles carried in JWT claims
const (
	RoleDevice = "device"
	RoleAdmin  = "admin"
)

// Paging limits for bulk content endpoints
const (
	DefaultPageLimit = 500
	MaxPageLimit     = 2000
)
