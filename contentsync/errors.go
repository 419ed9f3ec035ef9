// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import "errors"

var (
	// ErrInvalidContent rejects an admin import with a malformed record
	ErrInvalidContent = errors.New("contentsync: invalid content")

	// ErrInvalidVersion rejects a publish request with a non-semver version
	ErrInvalidVersion = errors.New("contentsync: invalid version")

	// ErrVersionExists rejects publishing a version string twice
	ErrVersionExists = errors.New("contentsync: version already exists")
)
