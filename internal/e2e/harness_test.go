package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mobiletoly/go-contentsync/contentsqlite"
	"github.com/mobiletoly/go-contentsync/contentsync"
	"github.com/mobiletoly/go-contentsync/internal/migrate"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const jwtSecret = "e2e-secret"

// harness runs the content server against a throwaway Postgres container
type harness struct {
	t           *testing.T
	ctx         context.Context
	container   *postgres.PostgresContainer
	pool        *pgxpool.Pool
	server      *httptest.Server
	logger      *slog.Logger
	adminToken  string
	deviceToken string
}

func newHarness(t *testing.T) *harness {
	if testing.Short() {
		t.Skip("skipping Postgres integration test in -short mode")
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("contentsync_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrate.Up(ctx, connStr))

	version, err := migrate.Version(ctx, connStr)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	service, err := contentsync.NewContentService(pool, nil, logger)
	require.NoError(t, err)

	jwtAuth := contentsync.NewJWTAuth(jwtSecret)
	mux := http.NewServeMux()
	contentsync.NewHTTPContentHandlers(service, logger).Register(mux, jwtAuth)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	adminToken, err := jwtAuth.GenerateToken("ops", "", contentsync.RoleAdmin, time.Hour)
	require.NoError(t, err)
	deviceToken, err := jwtAuth.GenerateToken("user-1", "device-1", contentsync.RoleDevice, time.Hour)
	require.NoError(t, err)

	return &harness{
		t:           t,
		ctx:         ctx,
		container:   container,
		pool:        pool,
		server:      server,
		logger:      logger,
		adminToken:  adminToken,
		deviceToken: deviceToken,
	}
}

// postAdmin sends an admin JSON request and returns the status code
func (h *harness) postAdmin(path string, body any, out any) int {
	payload, err := json.Marshal(body)
	require.NoError(h.t, err)
	req, err := http.NewRequestWithContext(h.ctx, http.MethodPost, h.server.URL+path, bytes.NewReader(payload))
	require.NoError(h.t, err)
	req.Header.Set("Authorization", "Bearer "+h.adminToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) publish(req contentsync.PublishRequest) *contentsync.DatabaseVersion {
	var v contentsync.DatabaseVersion
	require.Equal(h.t, http.StatusCreated, h.postAdmin("/admin/versions", req, &v))
	return &v
}

// newClient opens a device client backed by a fresh SQLite file
func (h *harness) newClient(appVersion string) *contentsqlite.Client {
	cfg := contentsqlite.DefaultConfig(h.server.URL, appVersion)
	cfg.Token = func(context.Context) (string, error) { return h.deviceToken, nil }
	cfg.Engine.PageSize = 2
	cfg.Engine.ProgressEvery = 1
	cfg.Logger = h.logger

	client, err := contentsqlite.NewClient(h.t.TempDir()+"/content.db", cfg)
	require.NoError(h.t, err)
	require.NoError(h.t, client.Open(h.ctx))
	h.t.Cleanup(func() { _ = client.Close() })
	return client
}
