// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// Config holds configuration for the content client
type Config struct {
	BaseURL    string                                // content service, e.g. "https://api.example.com"
	AppVersion string                                // e.g. "1.4.0"
	Token      func(context.Context) (string, error) // returns JWT, may be nil
	HTTP       *http.Client                          // nil means http.DefaultClient
	Engine     *EngineConfig
	Oracle     *OracleConfig
	Logger     *slog.Logger
}

// DefaultConfig returns a configuration with default engine and oracle settings
func DefaultConfig(baseURL, appVersion string) *Config {
	return &Config{
		BaseURL:    baseURL,
		AppVersion: appVersion,
		Engine:     DefaultEngineConfig(),
		Oracle:     DefaultOracleConfig(appVersion),
	}
}

// Client wires the store, tracker, engine and oracle around one database file
type Client struct {
	Store   *Store
	Tracker *Tracker
	Engine  *Engine
	Oracle  *Oracle
	Remote  Remote
	logger  *slog.Logger
}

// NewClient creates a content client over the SQLite file at dbPath.
// Call Open before use.
func NewClient(dbPath string, config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("config.BaseURL must be provided")
	}
	remote := NewHTTPRemote(config.BaseURL, config.Token)
	if config.HTTP != nil {
		remote.HTTP = config.HTTP
	}
	return NewClientWithRemote(dbPath, remote, config)
}

// NewClientWithRemote is NewClient with a caller-supplied Remote
func NewClientWithRemote(dbPath string, remote Remote, config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	oracleCfg := config.Oracle
	if oracleCfg == nil {
		oracleCfg = DefaultOracleConfig(config.AppVersion)
	}
	if oracleCfg.AppVersion == "" {
		oracleCfg.AppVersion = config.AppVersion
	}

	store := NewStore(StoreConfig{Path: dbPath, Logger: logger})
	tracker := NewTracker(store)
	engine, err := NewEngine(store, tracker, remote, config.Engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	oracle, err := NewOracle(store, remote, oracleCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle: %w", err)
	}

	return &Client{
		Store:   store,
		Tracker: tracker,
		Engine:  engine,
		Oracle:  oracle,
		Remote:  remote,
		logger:  logger,
	}, nil
}

// Open initializes the local store
func (c *Client) Open(ctx context.Context) error {
	return c.Store.Initialize(ctx)
}

// Close closes the local store
func (c *Client) Close() error {
	return c.Store.Close()
}

// FullSync runs a full sync through the engine
func (c *Client) FullSync(ctx context.Context) (SyncResults, error) {
	return c.Engine.FullSync(ctx)
}

// CheckForUpdate checks the installed dataset version against the remote
func (c *Client) CheckForUpdate(ctx context.Context) (contentsync.UpdateCheckResult, error) {
	return c.Oracle.CheckInstalled(ctx)
}

// ApplyUpdate installs the latest version record and then pulls its content.
// The record is written only after the engine has accepted the sync, so
// ErrOffline and ErrAlreadyInProgress leave the installed version unchanged.
func (c *Client) ApplyUpdate(ctx context.Context) (*contentsync.DatabaseVersion, SyncResults, error) {
	var v *contentsync.DatabaseVersion
	results, err := c.Engine.fullSync(ctx, func(ctx context.Context) error {
		var err error
		v, err = c.Oracle.ApplyUpdate(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return v, results, nil
}

// CurrentVersion returns the installed dataset version, nil on a fresh install
func (c *Client) CurrentVersion(ctx context.Context) (*contentsync.DatabaseVersion, error) {
	return c.Store.CurrentVersion(ctx)
}
