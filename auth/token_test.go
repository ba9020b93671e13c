// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/danielhkuo/munconf/models"
)

const testSecret = "test-secret-at-least-16"

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user123", models.RoleChair, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID() != "user123" {
		t.Errorf("UserID() = %q, want user123", claims.UserID())
	}
	if claims.Role != models.RoleChair {
		t.Errorf("Role = %q, want chair", claims.Role)
	}
	if claims.Issuer != Issuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, _ := IssueToken(testSecret, "user123", models.RoleDelegate, time.Hour)
	expired, _ := IssueToken(testSecret, "user123", models.RoleDelegate, -time.Minute)

	foreignIssuer := func() string {
		claims := &Claims{
			Role: models.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user123",
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		return s
	}()

	noExpiry := func() string {
		claims := &Claims{
			Role: models.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user123",
				Issuer:  Issuer,
			},
		}
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		return s
	}()

	badRole := func() string {
		claims := &Claims{
			Role: "secretary-general",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user123",
				Issuer:    Issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		return s
	}()

	unsigned := func() string {
		claims := &Claims{
			Role: models.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user123",
				Issuer:    Issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		return s
	}()

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "another-secret-value", valid},
		{"expired", testSecret, expired},
		{"foreign issuer", testSecret, foreignIssuer},
		{"no expiry", testSecret, noExpiry},
		{"unknown role", testSecret, badRole},
		{"alg none", testSecret, unsigned},
		{"garbage", testSecret, "not.a.token"},
		{"empty", testSecret, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
