// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// OracleConfig holds update-check settings
type OracleConfig struct {
	AppVersion   string        // running app version, compared against MinAppVersion
	CheckTimeout time.Duration // bound on one version check, e.g. 10s
}

// DefaultOracleConfig returns the default oracle settings for appVersion
func DefaultOracleConfig(appVersion string) *OracleConfig {
	return &OracleConfig{
		AppVersion:   appVersion,
		CheckTimeout: 10 * time.Second,
	}
}

// Oracle decides whether the installed dataset is stale
type Oracle struct {
	store  *Store
	remote Remote
	config *OracleConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewOracle creates an update oracle
func NewOracle(store *Store, remote Remote, config *OracleConfig, logger *slog.Logger) (*Oracle, error) {
	if store == nil || remote == nil {
		return nil, fmt.Errorf("store and remote are required")
	}
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{store: store, remote: remote, config: config, logger: logger, now: time.Now}, nil
}

// CheckForUpdate classifies the latest remote version against installed
// (nil on a fresh install). It never fails: transport errors, timeouts and
// non-success responses resolve to UpdateUnreachable.
func (o *Oracle) CheckForUpdate(ctx context.Context, installed *contentsync.DatabaseVersion) contentsync.UpdateCheckResult {
	var build int64
	if installed != nil {
		build = installed.BuildNumber
	}

	checkCtx, cancel := context.WithTimeout(ctx, o.config.CheckTimeout)
	defer cancel()

	resp, err := o.remote.CheckVersion(checkCtx, build, o.config.AppVersion)
	if err != nil {
		o.logger.Warn("Version check failed", "installed_build", build, "error", err)
		return contentsync.UpdateCheckResult{
			Status:    contentsync.UpdateUnreachable,
			Reason:    fmt.Sprintf("version check failed: %v", err),
			CheckedAt: o.now().UTC(),
		}
	}

	// Classify locally; the server's own status is advisory.
	var latest *contentsync.DatabaseVersion
	if resp != nil {
		latest = resp.Latest
	}
	res := contentsync.ClassifyUpdate(build, latest, o.config.AppVersion)
	res.CheckedAt = o.now().UTC()
	o.logger.Debug("Version check", "installed_build", build, "status", res.Status, "reason", res.Reason)
	return res
}

// CheckInstalled reads the installed version and calls CheckForUpdate. The
// error is only for a local storage failure.
func (o *Oracle) CheckInstalled(ctx context.Context) (contentsync.UpdateCheckResult, error) {
	installed, err := o.store.CurrentVersion(ctx)
	if err != nil {
		return contentsync.UpdateCheckResult{}, fmt.Errorf("failed to read installed version: %w", err)
	}
	return o.CheckForUpdate(ctx, installed), nil
}

// ApplyUpdate fetches the latest published version and records it as
// installed. Content rows are moved by FullSync, not here. On any failure the
// installed version is left as it was.
func (o *Oracle) ApplyUpdate(ctx context.Context) (*contentsync.DatabaseVersion, error) {
	checkCtx, cancel := context.WithTimeout(ctx, o.config.CheckTimeout)
	defer cancel()

	latest, err := o.remote.LatestVersion(checkCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest version: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("no published version: %w", ErrNotFound)
	}
	if !contentsync.SatisfiesMinVersion(o.config.AppVersion, latest.MinAppVersion) {
		return nil, fmt.Errorf("version %s requires app %s, running %s: %w",
			latest.Version, latest.MinAppVersion, o.config.AppVersion, ErrIncompatibleApp)
	}
	latest.Published = true
	if err := o.store.SaveVersion(ctx, latest); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}
	o.logger.Info("Dataset version installed", "version", latest.Version, "build", latest.BuildNumber)
	return latest, nil
}
