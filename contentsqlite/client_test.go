package contentsqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("x.db", nil)
	require.Error(t, err)

	_, err = NewClient("x.db", DefaultConfig("", "1.0.0"))
	require.Error(t, err)

	cfg := DefaultConfig("http://localhost:8080", "1.0.0")
	require.Equal(t, 500, cfg.Engine.PageSize)
	require.Equal(t, 50, cfg.Engine.ProgressEvery)
	require.Equal(t, 10*time.Second, cfg.Oracle.CheckTimeout)

	client, err := NewClient(filepath.Join(t.TempDir(), "c.db"), cfg)
	require.NoError(t, err)
	require.IsType(t, &HTTPRemote{}, client.Remote)
}

func TestClientUpdateFlow(t *testing.T) {
	ctx := context.Background()
	remote := seededRemote(3, 2, 1)
	remote.latest = &contentsync.DatabaseVersion{Version: "1.0.0", BuildNumber: 1, MinAppVersion: "1.0.0", CreatedAt: testEpoch}

	client, err := NewClientWithRemote(filepath.Join(t.TempDir(), "app", "content.db"), remote, DefaultConfig("unused", "1.0.0"))
	require.NoError(t, err)
	require.NoError(t, client.Open(ctx))
	defer client.Close()

	cur, err := client.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Nil(t, cur)

	res, err := client.CheckForUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, contentsync.UpdateOptional, res.Status)

	v, results, err := client.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), v.BuildNumber)
	require.True(t, results.AllSucceeded())
	require.Equal(t, 6, results.SyncedCount())

	res, err = client.CheckForUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, contentsync.UpdateNone, res.Status)

	words, err := client.Store.Words(ctx, WordQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, words, 2)
}

func TestClientApplyUpdateRejectedSyncKeepsVersion(t *testing.T) {
	ctx := context.Background()
	remote := seededRemote(2, 1, 1)
	remote.latest = &contentsync.DatabaseVersion{Version: "1.0.0", BuildNumber: 1, CreatedAt: testEpoch}

	client, err := NewClientWithRemote(filepath.Join(t.TempDir(), "content.db"), remote, DefaultConfig("unused", "1.0.0"))
	require.NoError(t, err)
	require.NoError(t, client.Open(ctx))
	defer client.Close()

	_, _, err = client.ApplyUpdate(ctx)
	require.NoError(t, err)

	remote.mu.Lock()
	remote.latest = &contentsync.DatabaseVersion{Version: "2.0.0", BuildNumber: 2, CreatedAt: testEpoch}
	remote.mu.Unlock()

	requireInstalled := func(version string) {
		t.Helper()
		cur, err := client.CurrentVersion(ctx)
		require.NoError(t, err)
		require.Equal(t, version, cur.Version)
	}

	client.Engine.SetOnline(false)
	v, results, err := client.ApplyUpdate(ctx)
	require.ErrorIs(t, err, ErrOffline)
	require.Nil(t, v)
	require.Nil(t, results)
	requireInstalled("1.0.0")
	client.Engine.SetOnline(true)

	remote.mu.Lock()
	remote.block = make(chan struct{})
	remote.entered = make(chan struct{}, 16)
	remote.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := client.FullSync(ctx)
		done <- err
	}()
	select {
	case <-remote.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("background sync never reached the remote")
	}

	_, _, err = client.ApplyUpdate(ctx)
	require.ErrorIs(t, err, ErrAlreadyInProgress)
	requireInstalled("1.0.0")

	close(remote.block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("background sync did not finish")
	}

	v, results, err = client.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, "2.0.0", v.Version)
	require.True(t, results.AllSucceeded())
	requireInstalled("2.0.0")
}
