// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/munconf/models"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "correct horse", nil},
		{"exactly 8", "12345678", nil},
		{"too short", "short", ErrPasswordLength},
		{"too long", strings.Repeat("a", 73), ErrPasswordLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password, bcrypt.MinCost)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HashPassword() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if hash == tt.password {
				t.Error("HashPassword() returned the plaintext")
			}
			if err := CheckPassword(hash, tt.password); err != nil {
				t.Errorf("CheckPassword() rejected the original password: %v", err)
			}
		})
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("diplomacy-first", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	if err := CheckPassword(hash, "diplomacy-first"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "diplomacy-last"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := CheckPassword("not-a-hash", "diplomacy-first"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for malformed hash, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

func TestRoleAllowed(t *testing.T) {
	tests := []struct {
		role    string
		allowed []string
		want    bool
	}{
		{models.RoleDelegate, nil, true},
		{models.RoleDelegate, []string{models.RoleChair}, false},
		{models.RoleChair, []string{models.RoleChair}, true},
		{models.RoleAdmin, []string{models.RoleDelegate}, true},
		{models.RoleChair, []string{models.RoleDelegate, models.RoleChair}, true},
	}

	for _, tt := range tests {
		if got := RoleAllowed(tt.role, tt.allowed...); got != tt.want {
			t.Errorf("RoleAllowed(%q, %v) = %v, want %v", tt.role, tt.allowed, got, tt.want)
		}
	}

	if ValidRole("secretary-general") {
		t.Error("ValidRole() accepted unknown role")
	}
}

func BenchmarkGenerateID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateID(16)
	}
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashPassword("benchmark-password", bcrypt.MinCost)
	}
}
