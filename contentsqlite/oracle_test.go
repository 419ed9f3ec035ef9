package contentsqlite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mobiletoly/go-contentsync/contentsync"
	"github.com/stretchr/testify/require"
)

func newTestOracle(t *testing.T, remote Remote, appVersion string) (*Oracle, *Store) {
	t.Helper()
	store := newTestStore(t)
	oracle, err := NewOracle(store, remote, DefaultOracleConfig(appVersion), nil)
	require.NoError(t, err)
	return oracle, store
}

func TestCheckForUpdateOptional(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.latest = &contentsync.DatabaseVersion{
		Version: "1.1.0", BuildNumber: 2, Published: true, ForceUpdate: false, MinAppVersion: "1.0.0",
	}
	oracle, store := newTestOracle(t, remote, "1.0.0")
	require.NoError(t, store.SaveVersion(ctx, &contentsync.DatabaseVersion{Version: "1.0.0", BuildNumber: 1, Published: true, CreatedAt: testEpoch}))

	res, err := oracle.CheckInstalled(ctx)
	require.NoError(t, err)
	require.Equal(t, contentsync.UpdateOptional, res.Status)
	require.True(t, res.UpdateAvailable())
	require.NotNil(t, res.Candidate)
	require.Equal(t, int64(2), res.Candidate.BuildNumber)
	require.False(t, res.CheckedAt.IsZero())
	require.Equal(t, []int64{1}, remote.checkBuilds)
}

func TestCheckForUpdateClassification(t *testing.T) {
	ctx := context.Background()
	installed := &contentsync.DatabaseVersion{Version: "1.0.0", BuildNumber: 1}

	cases := []struct {
		name   string
		latest *contentsync.DatabaseVersion
		app    string
		want   contentsync.UpdateStatus
	}{
		{"same build", &contentsync.DatabaseVersion{Version: "1.0.0", BuildNumber: 1, ForceUpdate: true}, "1.0.0", contentsync.UpdateNone},
		{"forced", &contentsync.DatabaseVersion{Version: "1.1.0", BuildNumber: 2, ForceUpdate: true}, "1.0.0", contentsync.UpdateForced},
		{"incompatible", &contentsync.DatabaseVersion{Version: "2.0.0", BuildNumber: 5, MinAppVersion: "2.0.0"}, "1.9.9", contentsync.UpdateIncompatible},
		{"nothing published", nil, "1.0.0", contentsync.UpdateNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := newFakeRemote()
			remote.latest = tc.latest
			oracle, _ := newTestOracle(t, remote, tc.app)
			res := oracle.CheckForUpdate(ctx, installed)
			require.Equal(t, tc.want, res.Status)
		})
	}
}

func TestCheckForUpdateFreshInstall(t *testing.T) {
	remote := newFakeRemote()
	remote.latest = &contentsync.DatabaseVersion{Version: "0.1.0", BuildNumber: 1}
	oracle, _ := newTestOracle(t, remote, "1.0.0")

	res, err := oracle.CheckInstalled(context.Background())
	require.NoError(t, err)
	require.Equal(t, contentsync.UpdateOptional, res.Status)
	require.Equal(t, []int64{0}, remote.checkBuilds)
}

func TestCheckForUpdateTimeout(t *testing.T) {
	remote := newFakeRemote()
	remote.latest = &contentsync.DatabaseVersion{Version: "1.1.0", BuildNumber: 2}
	remote.checkDelay = time.Second
	store := newTestStore(t)
	oracle, err := NewOracle(store, remote, &OracleConfig{AppVersion: "1.0.0", CheckTimeout: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	res := oracle.CheckForUpdate(context.Background(), &contentsync.DatabaseVersion{BuildNumber: 1})
	require.Equal(t, contentsync.UpdateUnreachable, res.Status)
	require.NotEmpty(t, res.Reason)
	require.Nil(t, res.Candidate)
	require.False(t, res.UpdateAvailable(), "no fake update when unreachable")
}

func TestCheckForUpdateOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("build") {
		case "1":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(contentsync.VersionCheckResponse{
				Latest: &contentsync.DatabaseVersion{Version: "1.1.0", BuildNumber: 2, MinAppVersion: "1.0.0"},
				Status: contentsync.UpdateForced, // stale server label, client reclassifies
			})
		case "2":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(contentsync.ErrorResponse{Error: contentsync.CodeFetchFailed, Message: "db down"})
		}
	}))
	defer srv.Close()

	store := newTestStore(t)
	oracle, err := NewOracle(store, NewHTTPRemote(srv.URL, nil), &OracleConfig{AppVersion: "1.0.0", CheckTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	res := oracle.CheckForUpdate(ctx, &contentsync.DatabaseVersion{BuildNumber: 1})
	require.Equal(t, contentsync.UpdateOptional, res.Status)
	require.Equal(t, int64(2), res.Candidate.BuildNumber)

	res = oracle.CheckForUpdate(ctx, &contentsync.DatabaseVersion{BuildNumber: 2})
	require.Equal(t, contentsync.UpdateUnreachable, res.Status)

	res = oracle.CheckForUpdate(ctx, &contentsync.DatabaseVersion{BuildNumber: 3})
	require.Equal(t, contentsync.UpdateUnreachable, res.Status)
	require.Contains(t, res.Reason, "500")
}

func TestApplyUpdate(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.latest = &contentsync.DatabaseVersion{Version: "1.1.0", BuildNumber: 2, Changelog: []string{"new words"}, CreatedAt: testEpoch}
	oracle, store := newTestOracle(t, remote, "1.0.0")

	v, err := oracle.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, "1.1.0", v.Version)

	cur, err := store.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), cur.BuildNumber)
	require.Equal(t, []string{"new words"}, cur.Changelog)

	res, err := oracle.CheckInstalled(ctx)
	require.NoError(t, err)
	require.Equal(t, contentsync.UpdateNone, res.Status)
}

func TestApplyUpdateFailureKeepsInstalled(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	oracle, store := newTestOracle(t, remote, "1.0.0")
	installed := &contentsync.DatabaseVersion{Version: "1.0.0", BuildNumber: 1, Published: true, CreatedAt: testEpoch}
	require.NoError(t, store.SaveVersion(ctx, installed))

	remote.latestErr = ErrRemoteUnreachable
	_, err := oracle.ApplyUpdate(ctx)
	require.ErrorIs(t, err, ErrRemoteUnreachable)

	remote.latestErr = nil
	remote.latest = &contentsync.DatabaseVersion{Version: "3.0.0", BuildNumber: 9, MinAppVersion: "3.0.0"}
	_, err = oracle.ApplyUpdate(ctx)
	require.ErrorIs(t, err, ErrIncompatibleApp)

	remote.latest = nil
	_, err = oracle.ApplyUpdate(ctx)
	require.True(t, errors.Is(err, ErrNotFound))

	cur, err := store.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), cur.BuildNumber)
}
