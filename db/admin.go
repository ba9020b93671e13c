// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/models"
)

// EnsureAdmin creates the bootstrap administrator if no user with that
// email exists. An existing account is left untouched, including its
// password. Returns true when a user was created.
func EnsureAdmin(ctx context.Context, conn *sql.DB, email, password string, cost int) (bool, error) {
	email = auth.NormalizeEmail(email)

	var existing string
	err := conn.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to query admin: %w", err)
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return false, err
	}
	id, err := auth.GenerateID(16)
	if err != nil {
		return false, err
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, institution, role, experience, created_at)
		VALUES ($1, $2, $3, $4, '', $5, 0, $6)
	`, id, email, hash, "Administrator", models.RoleAdmin, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert admin: %w", err)
	}
	return true, nil
}

// UserRole returns the current role of a user, or sql.ErrNoRows when the
// user does not exist
func UserRole(ctx context.Context, conn *sql.DB, userID string) (string, error) {
	var role string
	err := conn.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	return role, err
}
