// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Precedence

CLI flags win over environment variables. The environment is read after
loading a dotenv file (--env-file, default .env) that never overrides
variables already set. A missing dotenv file is not an error.

# Settings

	Flag              Env                    Default
	-p                PORT                   3318
	-d                DATABASE_URL           (required)
	-t                DATABASE_TYPE          sqlite
	--jwt-secret      JWT_SECRET             (required, >= 16 bytes)
	--token-ttl       TOKEN_TTL              24h
	--bcrypt-cost     BCRYPT_COST            bcrypt.DefaultCost
	--cors-origins    CORS_ALLOWED_ORIGINS   any origin
	--login-rps       LOGIN_RATE_LIMIT       5
	--login-burst                            10
	--trust-proxy     TRUST_PROXY            false
	--admin-email     ADMIN_EMAIL
	--admin-password  ADMIN_PASSWORD
	--seed            SEED_FILE
	--log-format      LOG_FORMAT             text
	--log-level       LOG_LEVEL              info

# Validation

ParseFlags returns an error when:

  - the database URL or JWT secret is missing
  - the database type or log format is unknown
  - the token TTL or bcrypt cost is out of range
  - only one of the admin email and password is set
*/
package cliparse
