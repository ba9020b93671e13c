// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the munconf API server.

munconf runs a Model United Nations conference: delegate registration,
committee and country allocation, resolution blocks, document review and
voting, chair scoring with awards, and attendance roll calls.

# Starting the Server

SQLite is the default store:

	JWT_SECRET=change-me-please-123 go run . -d munconf.db

For PostgreSQL:

	go run . -t postgres -d "postgres://..."

# Configuration

Settings come from flags, then the environment, then an optional .env file:

  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - DATABASE_URL (-d): file path or PostgreSQL connection string (required)
  - JWT_SECRET (--jwt-secret): token signing secret, at least 16 bytes
  - PORT (-p): server port (default: 3318)
  - ADMIN_EMAIL, ADMIN_PASSWORD: bootstrap admin account
  - SEED_FILE (--seed): YAML countries and committees loaded at startup
  - LOG_FORMAT, LOG_LEVEL: slog output

# Architecture

  - handlers: HTTP request handlers per resource
  - router: Route definitions and access levels using Go 1.22+ routing
  - middleware: auth, CORS, logging, request IDs, rate limiting, JSON helpers
  - models: Request/response types
  - auth: Password hashing and session tokens
  - metrics: Prometheus collectors
  - db: Connection, schema, seed data and admin bootstrap
  - cliparse: Configuration parsing

The server shuts down gracefully on SIGINT or SIGTERM.
*/
package main
