// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the munconf API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - AuthHandler, UserHandler: accounts, sessions and roles
  - CommitteeHandler, CountryHandler: committees and their country matrix
  - DelegateHandler, AllocationHandler: delegate placement
  - BlockHandler: resolution blocks
  - DocumentHandler, VoteHandler: submissions, review, voting, publication
  - ScoreHandler, AttendanceHandler: chair scoring, awards, roll calls
  - EventHandler, StatsHandler: schedule and conference statistics

Handlers are created via constructor functions that accept *sql.DB and Config:

	committeeHandler := handlers.NewCommitteeHandler(db, cfg)

Role gates live in the router; handlers check committee membership, since
a chair only moderates the committee they chair.

# Document Lifecycle

	submitted → approved | rejected     (ReviewDocument)
	approved  → published | failed     (Publish, after voting)

Position papers skip voting and are published directly once approved.
The tally in tally.go decides the outcome; fewer than MinVotesToPublish
votes blocks publication.

# Allocation

AllocateCommittee and AllocateDelegate place delegates into free country
seats greedily: experienced delegates first, important countries first.
Re-running allocation never moves a delegate that already has a seat.
*/
package handlers
