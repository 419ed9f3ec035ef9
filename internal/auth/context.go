// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
)

type contextKey string

const (
	subjectKey  contextKey = "subject"
	deviceIDKey contextKey = "device_id"
	roleKey     contextKey = "role"
)

// Identity is the authenticated caller of a content API request
type Identity struct {
	Subject  string
	DeviceID string
	Role     string
}

// WithIdentity stores the caller identity in the context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, subjectKey, id.Subject)
	ctx = context.WithValue(ctx, deviceIDKey, id.DeviceID)
	ctx = context.WithValue(ctx, roleKey, id.Role)
	return ctx
}

// GetSubject retrieves the subject (user or service account) from the context
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// GetDeviceID retrieves the device ID from the context
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(deviceIDKey).(string)
	return deviceID, ok
}

// GetRole retrieves the role from the context
func GetRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok
}
