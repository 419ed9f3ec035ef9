// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mobiletoly/go-contentsync/internal/auth"
)

// JWTAuth handles JWT authentication for the content API
type JWTAuth struct {
	secret []byte
	logger *slog.Logger
}

// NewJWTAuth creates a new JWT authenticator
func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{
		secret: []byte(secret),
		logger: slog.Default(),
	}
}

// JWTClaims carries the device and role of a content API caller
type JWTClaims struct {
	DeviceID string `json:"did,omitempty"` // Device ID, empty for admin service tokens
	Role     string `json:"role"`          // RoleDevice or RoleAdmin
	jwt.RegisteredClaims
}

// GenerateToken generates an HS256 token for subject with the given role
func (j *JWTAuth) GenerateToken(subject, deviceID, role string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		DeviceID: deviceID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "go-contentsync",
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (j *JWTAuth) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.Subject == "" {
			return nil, fmt.Errorf("missing sub in token")
		}
		switch claims.Role {
		case RoleDevice:
			if claims.DeviceID == "" {
				return nil, fmt.Errorf("missing did (device ID) in device token")
			}
		case RoleAdmin:
		default:
			return nil, fmt.Errorf("unknown role %q in token", claims.Role)
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Middleware authenticates the bearer token and puts the caller identity in the request context
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeAuthError(w, http.StatusUnauthorized, CodeAuthentication, "Authorization header required")
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			writeAuthError(w, http.StatusUnauthorized, CodeAuthentication, "Invalid authorization header format")
			return
		}

		claims, err := j.ValidateToken(bearerToken[1])
		if err != nil {
			// Safely log token prefix (max 20 chars)
			tokenPrefix := bearerToken[1]
			if len(tokenPrefix) > 20 {
				tokenPrefix = tokenPrefix[:20]
			}
			j.logger.Warn("JWT validation failed", "error", err, "token_prefix", tokenPrefix)
			writeAuthError(w, http.StatusUnauthorized, CodeAuthentication, "Invalid token")
			return
		}

		ctx := auth.WithIdentity(r.Context(), auth.Identity{
			Subject:  claims.Subject,
			DeviceID: claims.DeviceID,
			Role:     claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose authenticated role is not role.
// It must run after Middleware.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := auth.GetRole(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, CodeAuthentication, "Authentication required")
			return
		}
		if got != role {
			writeAuthError(w, http.StatusForbidden, CodeForbidden, fmt.Sprintf("Role %q required", role))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: errorCode, Message: message})
}
