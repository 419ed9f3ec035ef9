package contentsync

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mobiletoly/go-contentsync/internal/auth"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	j := NewJWTAuth(testSecret)

	token, err := j.GenerateToken("user-1", "device-1", RoleDevice, time.Hour)
	require.NoError(t, err)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "device-1", claims.DeviceID)
	require.Equal(t, RoleDevice, claims.Role)
	require.Equal(t, "go-contentsync", claims.Issuer)
}

func TestValidateTokenRejects(t *testing.T) {
	j := NewJWTAuth(testSecret)

	expired, err := j.GenerateToken("user-1", "device-1", RoleDevice, -time.Minute)
	require.NoError(t, err)
	_, err = j.ValidateToken(expired)
	require.Error(t, err)

	noDevice, err := j.GenerateToken("user-1", "", RoleDevice, time.Hour)
	require.NoError(t, err)
	_, err = j.ValidateToken(noDevice)
	require.ErrorContains(t, err, "missing did")

	unknownRole, err := j.GenerateToken("user-1", "device-1", "root", time.Hour)
	require.NoError(t, err)
	_, err = j.ValidateToken(unknownRole)
	require.ErrorContains(t, err, "unknown role")

	otherSecret, err := NewJWTAuth("other").GenerateToken("user-1", "device-1", RoleDevice, time.Hour)
	require.NoError(t, err)
	_, err = j.ValidateToken(otherSecret)
	require.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.ValidateToken(unsigned)
	require.Error(t, err)
}

func TestMiddlewarePutsIdentityInContext(t *testing.T) {
	j := NewJWTAuth(testSecret)
	token, err := j.GenerateToken("user-1", "device-1", RoleDevice, time.Hour)
	require.NoError(t, err)

	var gotDevice, gotRole string
	h := j.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDevice, _ = auth.GetDeviceID(r.Context())
		gotRole, _ = auth.GetRole(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/content/words", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "device-1", gotDevice)
	require.Equal(t, RoleDevice, gotRole)

	req = httptest.NewRequest(http.MethodGet, "/content/words", nil)
	req.Header.Set("Authorization", "Token "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	h := RequireRole(RoleAdmin, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/versions", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
