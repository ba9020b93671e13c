// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/munconf/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordLength     = errors.New("password must be 8-72 bytes")
)

const (
	MinPasswordLen = 8
	// bcrypt ignores anything past 72 bytes
	MaxPasswordLen = 72
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword hashes a plaintext password with bcrypt at the given cost
func HashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return "", ErrPasswordLength
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidRole reports whether role is one of the known user roles
func ValidRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleChair, models.RoleDelegate:
		return true
	}
	return false
}

// RoleAllowed reports whether role is in allowed. An empty allowed list
// admits every role; admins are always admitted.
func RoleAllowed(role string, allowed ...string) bool {
	if len(allowed) == 0 || role == models.RoleAdmin {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}
