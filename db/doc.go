// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema creation and seeding.

# Connections

Open supports PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite):

	conn, err := db.Open(db.TypePostgres, "postgres://...")
	conn, err := db.Open(db.TypeSQLite, "file:munconf.db")

SQLite connections enable foreign keys and busy_timeout via _pragma
parameters and are limited to one open connection. Callers must not
hold a *sql.Rows open while issuing another query on the same *sql.DB,
or the pool will block.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The SQL sticks to the subset both databases accept; placeholders are $N.

# Tables

	users 1──? delegate *──? committee
	committee *──* country (via committee_country)
	delegate ?──1 country (unique per committee)
	committee 1──* block *──* delegate (via block_member)
	committee 1──* document 1──* vote
	committee 1──* score, attendance, event

# Constraint Errors

IsUniqueViolation and IsForeignKeyViolation classify driver errors by
code (pq SQLSTATE, sqlite extended result code):

	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Email already registered")
	}

# Seeding

A YAML seed file lists countries and committees:

	countries:
	  - {name: United States, code: US, importance: 5}
	committees:
	  - name: Security Council
	    capacity: 15
	    countries: [US]

ApplySeed is idempotent: countries match by code, committees by name.
EnsureAdmin creates the bootstrap administrator on first start.
*/
package db
