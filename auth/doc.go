// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides password hashing, session tokens and ID generation.

# Passwords

Passwords are hashed with bcrypt at a configurable cost:

	hash, err := auth.HashPassword(pw, cfg.BcryptCost)
	err = auth.CheckPassword(hash, pw)

Passwords must be 8-72 bytes; bcrypt silently truncates anything longer,
so longer inputs are rejected with ErrPasswordLength. CheckPassword returns
ErrInvalidCredentials on mismatch so callers can't tell a wrong password
from a malformed hash.

# Session Tokens

Sessions are HS256 JWTs carrying the user ID (sub) and role:

	token, err := auth.IssueToken(cfg.JWTSecret, userID, role, cfg.TokenTTL)
	claims, err := auth.ParseToken(cfg.JWTSecret, token)

ParseToken rejects non-HMAC algorithms, foreign issuers, missing or past
expiry and unknown roles. All failures wrap ErrInvalidToken.

# Roles

Three roles exist: admin, chair and delegate. RoleAllowed always admits
admins:

	auth.RoleAllowed(models.RoleChair, models.RoleChair)    // true
	auth.RoleAllowed(models.RoleAdmin, models.RoleDelegate) // true

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
