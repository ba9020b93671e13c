// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Tables lists every table in dependency order (parents first)
var Tables = []string{
	"users",
	"committee",
	"country",
	"committee_country",
	"delegate",
	"block",
	"block_member",
	"document",
	"vote",
	"score",
	"attendance",
	"event",
}

// The SQL below is restricted to what both PostgreSQL and SQLite accept.
const schema = `
-- Users
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name TEXT NOT NULL,
    institution TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT 'delegate' CHECK (role IN ('admin', 'chair', 'delegate')),
    experience INTEGER NOT NULL DEFAULT 0 CHECK (experience >= 0),
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

-- Committees
CREATE TABLE IF NOT EXISTS committee (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    abbreviation TEXT NOT NULL DEFAULT '',
    topic TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    capacity INTEGER NOT NULL CHECK (capacity > 0),
    chair_id TEXT REFERENCES users(id) ON DELETE SET NULL,
    created_at TIMESTAMP NOT NULL
);

-- Countries
CREATE TABLE IF NOT EXISTS country (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    code TEXT NOT NULL UNIQUE,
    importance INTEGER NOT NULL DEFAULT 1 CHECK (importance BETWEEN 1 AND 5),
    created_at TIMESTAMP NOT NULL
);

-- Country matrix
CREATE TABLE IF NOT EXISTS committee_country (
    committee_id TEXT NOT NULL REFERENCES committee(id) ON DELETE CASCADE,
    country_id TEXT NOT NULL REFERENCES country(id) ON DELETE CASCADE,
    PRIMARY KEY (committee_id, country_id)
);

-- Delegates
CREATE TABLE IF NOT EXISTS delegate (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    committee_id TEXT REFERENCES committee(id) ON DELETE SET NULL,
    country_id TEXT REFERENCES country(id) ON DELETE SET NULL,
    assigned_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (committee_id, country_id)
);

CREATE INDEX IF NOT EXISTS idx_delegate_committee_id ON delegate(committee_id);

-- Blocks
CREATE TABLE IF NOT EXISTS block (
    id TEXT PRIMARY KEY,
    committee_id TEXT NOT NULL REFERENCES committee(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    created_by TEXT REFERENCES delegate(id) ON DELETE SET NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (committee_id, name)
);

CREATE TABLE IF NOT EXISTS block_member (
    block_id TEXT NOT NULL REFERENCES block(id) ON DELETE CASCADE,
    delegate_id TEXT NOT NULL REFERENCES delegate(id) ON DELETE CASCADE,
    joined_at TIMESTAMP NOT NULL,
    PRIMARY KEY (block_id, delegate_id)
);

-- A delegate sits in one committee, so one block overall
CREATE UNIQUE INDEX IF NOT EXISTS uq_block_member_delegate ON block_member(delegate_id);

-- Documents
CREATE TABLE IF NOT EXISTS document (
    id TEXT PRIMARY KEY,
    committee_id TEXT NOT NULL REFERENCES committee(id) ON DELETE CASCADE,
    author_id TEXT NOT NULL REFERENCES delegate(id) ON DELETE CASCADE,
    block_id TEXT REFERENCES block(id) ON DELETE SET NULL,
    parent_id TEXT REFERENCES document(id) ON DELETE CASCADE,
    kind TEXT NOT NULL CHECK (kind IN ('position_paper', 'draft_resolution', 'amendment')),
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'submitted' CHECK (status IN ('submitted', 'approved', 'rejected', 'published', 'failed')),
    review_note TEXT,
    reviewed_by TEXT REFERENCES users(id) ON DELETE SET NULL,
    reviewed_at TIMESTAMP,
    submitted_at TIMESTAMP NOT NULL,
    published_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_document_committee_id ON document(committee_id);
CREATE INDEX IF NOT EXISTS idx_document_status ON document(status);

-- Votes
CREATE TABLE IF NOT EXISTS vote (
    document_id TEXT NOT NULL REFERENCES document(id) ON DELETE CASCADE,
    delegate_id TEXT NOT NULL REFERENCES delegate(id) ON DELETE CASCADE,
    position TEXT NOT NULL CHECK (position IN ('for', 'against', 'abstain')),
    cast_at TIMESTAMP NOT NULL,
    PRIMARY KEY (document_id, delegate_id)
);

-- Scores
CREATE TABLE IF NOT EXISTS score (
    id TEXT PRIMARY KEY,
    committee_id TEXT NOT NULL REFERENCES committee(id) ON DELETE CASCADE,
    delegate_id TEXT NOT NULL REFERENCES delegate(id) ON DELETE CASCADE,
    chair_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    category TEXT NOT NULL CHECK (category IN ('speech', 'position_paper', 'diplomacy', 'resolution')),
    session INTEGER NOT NULL CHECK (session >= 1),
    points DOUBLE PRECISION NOT NULL CHECK (points >= 0 AND points <= 10),
    comment TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_score_committee_id ON score(committee_id);
CREATE INDEX IF NOT EXISTS idx_score_delegate_id ON score(delegate_id);

-- Attendance
CREATE TABLE IF NOT EXISTS attendance (
    committee_id TEXT NOT NULL REFERENCES committee(id) ON DELETE CASCADE,
    delegate_id TEXT NOT NULL REFERENCES delegate(id) ON DELETE CASCADE,
    session INTEGER NOT NULL CHECK (session >= 1),
    status TEXT NOT NULL CHECK (status IN ('present', 'present_and_voting', 'late', 'absent')),
    recorded_by TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    PRIMARY KEY (committee_id, delegate_id, session)
);

-- Events
CREATE TABLE IF NOT EXISTS event (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    committee_id TEXT REFERENCES committee(id) ON DELETE CASCADE,
    starts_at TIMESTAMP NOT NULL,
    ends_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_starts_at ON event(starts_at);
`
