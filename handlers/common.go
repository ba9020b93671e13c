// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

var (
	ErrCommitteeFull   = errors.New("committee is at capacity")
	ErrNotInCommittee  = errors.New("delegate is not in this committee")
	ErrNoDelegate      = errors.New("no delegate record for user")
	ErrCountryTaken    = errors.New("country is already assigned")
	ErrCountryNotSeat  = errors.New("country is not part of this committee")
	ErrNotEnoughVotes  = errors.New("not enough votes to publish")
	ErrAlreadyAssigned = errors.New("delegate already has a country")
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session returns the caller's claims, answering 401 when absent
func session(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return claims, true
}

// now is the timestamp written to every created_at style column
func now() time.Time {
	return time.Now().UTC()
}

// committeeChair returns the committee's chair, or sql.ErrNoRows when the
// committee does not exist
func committeeChair(ctx context.Context, q querier, committeeID string) (*string, error) {
	var chairID *string
	err := q.QueryRowContext(ctx, `SELECT chair_id FROM committee WHERE id = $1`, committeeID).Scan(&chairID)
	return chairID, err
}

// canModerate reports whether the caller may act as chair of a committee
func canModerate(claims *auth.Claims, chairID *string) bool {
	if claims.Role == models.RoleAdmin {
		return true
	}
	return claims.Role == models.RoleChair && chairID != nil && *chairID == claims.UserID()
}

// requireModerator loads the committee and checks the caller chairs it.
// It writes the error response and returns false on failure.
func requireModerator(w http.ResponseWriter, r *http.Request, q querier, claims *auth.Claims, committeeID string) bool {
	chairID, err := committeeChair(r.Context(), q, committeeID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return false
	}
	if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return false
	}
	if !canModerate(claims, chairID) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the committee chair may do this")
		return false
	}
	return true
}

// seat is the committee and country a delegate currently holds
type seat struct {
	DelegateID  string
	CommitteeID *string
	CountryID   *string
}

// delegateSeat looks up a delegate by ID
func delegateSeat(ctx context.Context, q querier, delegateID string) (seat, error) {
	s := seat{DelegateID: delegateID}
	err := q.QueryRowContext(ctx, `
		SELECT committee_id, country_id FROM delegate WHERE id = $1
	`, delegateID).Scan(&s.CommitteeID, &s.CountryID)
	return s, err
}

// delegateSeatForUser looks up the delegate record owned by a user.
// Returns ErrNoDelegate when the user has none.
func delegateSeatForUser(ctx context.Context, q querier, userID string) (seat, error) {
	var s seat
	err := q.QueryRowContext(ctx, `
		SELECT id, committee_id, country_id FROM delegate WHERE user_id = $1
	`, userID).Scan(&s.DelegateID, &s.CommitteeID, &s.CountryID)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNoDelegate
	}
	return s, err
}

// inCommittee reports whether the seat belongs to committeeID
func (s seat) inCommittee(committeeID string) bool {
	return s.CommitteeID != nil && *s.CommitteeID == committeeID
}

// rollback is deferred after BeginTx; it is a no-op once committed
func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Warn("transaction rollback failed", "error", err)
	}
}

// nonNil turns a nil slice into an empty one so JSON shows []
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
