// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/munconf/auth"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	requestIDKey
)

// RoleLookup returns a user's current role, or sql.ErrNoRows when the
// account no longer exists
type RoleLookup func(ctx context.Context, userID string) (string, error)

// RequireAuth rejects requests without a valid bearer token. The role is
// read through lookup on every request, so role changes and deleted
// accounts take effect before the token expires. When roles are given,
// the current role must be one of them (admins always pass).
func RequireAuth(secret string, lookup RoleLookup, roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				ErrorResponse(w, http.StatusUnauthorized, "Authorization bearer token required")
				return
			}

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				slog.Warn("token validation failed", "error", err, "path", r.URL.Path)
				ErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			role, err := lookup(r.Context(), claims.UserID())
			if errors.Is(err, sql.ErrNoRows) {
				ErrorResponse(w, http.StatusUnauthorized, "Account no longer exists")
				return
			}
			if err != nil {
				slog.Error("failed to load session role", "error", err, "user_id", claims.UserID())
				ErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			claims.Role = role

			if !auth.RoleAllowed(claims.Role, roles...) {
				ErrorResponse(w, http.StatusForbidden, "Insufficient role")
				return
			}

			next(w, r.WithContext(WithClaims(r.Context(), claims)))
		}
	}
}

// WithClaims stores session claims in the context
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims stored by RequireAuth
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
