// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by every store operation before Initialize or after Close
	ErrNotInitialized = errors.New("contentsqlite: store not initialized")

	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("contentsqlite: not found")

	// ErrOffline rejects a full sync while the engine believes the network is down
	ErrOffline = errors.New("contentsqlite: network unavailable")

	// ErrAlreadyInProgress rejects a full sync while another one is running
	ErrAlreadyInProgress = errors.New("contentsqlite: sync already in progress")

	// ErrRemoteUnreachable marks transport failures, timeouts and non-success HTTP statuses
	ErrRemoteUnreachable = errors.New("contentsqlite: remote unreachable")

	// ErrIncompatibleApp rejects installing a dataset that needs a newer app
	ErrIncompatibleApp = errors.New("contentsqlite: dataset requires a newer app version")
)

// StorageInitError reports that the on-device database could not be opened or prepared
type StorageInitError struct {
	Path string
	Err  error
}

func (e *StorageInitError) Error() string {
	return fmt.Sprintf("contentsqlite: failed to initialize storage at %q: %v", e.Path, e.Err)
}

func (e *StorageInitError) Unwrap() error { return e.Err }

// RemoteError is a non-success HTTP response from the content service
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrRemoteUnreachable) match any non-success response
func (e *RemoteError) Is(target error) bool { return target == ErrRemoteUnreachable }
