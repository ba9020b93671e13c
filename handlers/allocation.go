// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/metrics"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

// SeatCandidate is a delegate waiting for a country
type SeatCandidate struct {
	DelegateID string
	FullName   string
	Experience int
	CreatedAt  time.Time
}

// FreeSeat is a matrix country nobody in the committee holds yet
type FreeSeat struct {
	CountryID  string
	Name       string
	Importance int
}

// AllocationResult is the outcome of one allocation pass
type AllocationResult struct {
	Assignments []models.AllocationAssignment
	Unassigned  []string // delegate IDs left without a country
	Remaining   []string // country IDs nobody received
}

// Allocate pairs delegates with countries by rank: the most experienced
// delegate gets the most important country, and so on down both lists.
// Ties fall back to registration order and country name, then IDs, so
// the same input always yields the same pairing. Inputs are not modified.
func Allocate(delegates []SeatCandidate, seats []FreeSeat) AllocationResult {
	ds := append([]SeatCandidate(nil), delegates...)
	cs := append([]FreeSeat(nil), seats...)

	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]

		// 1. More experience first
		if a.Experience != b.Experience {
			return a.Experience > b.Experience
		}

		// 2. Earlier registration first
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		// 3. Stable tiebreaker
		return a.DelegateID < b.DelegateID
	})

	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CountryID < b.CountryID
	})

	n := min(len(ds), len(cs))
	result := AllocationResult{
		Assignments: make([]models.AllocationAssignment, 0, n),
		Unassigned:  []string{},
		Remaining:   []string{},
	}
	for i := 0; i < n; i++ {
		result.Assignments = append(result.Assignments, models.AllocationAssignment{
			DelegateID:  ds[i].DelegateID,
			FullName:    ds[i].FullName,
			Experience:  ds[i].Experience,
			CountryID:   cs[i].CountryID,
			CountryName: cs[i].Name,
			Importance:  cs[i].Importance,
		})
	}
	for _, d := range ds[n:] {
		result.Unassigned = append(result.Unassigned, d.DelegateID)
	}
	for _, c := range cs[n:] {
		result.Remaining = append(result.Remaining, c.CountryID)
	}

	return result
}

// seatCandidates returns the committee's delegates that hold no country
func seatCandidates(ctx context.Context, q querier, committeeID string) ([]SeatCandidate, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT d.id, u.full_name, u.experience, d.created_at
		FROM delegate d
		JOIN users u ON u.id = d.user_id
		WHERE d.committee_id = $1 AND d.country_id IS NULL
	`, committeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []SeatCandidate
	for rows.Next() {
		var c SeatCandidate
		if err := rows.Scan(&c.DelegateID, &c.FullName, &c.Experience, &c.CreatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// freeSeats returns the committee's matrix countries no delegate holds
func freeSeats(ctx context.Context, q querier, committeeID string) ([]FreeSeat, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.name, c.importance
		FROM committee_country cc
		JOIN country c ON c.id = cc.country_id
		WHERE cc.committee_id = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM delegate d
		      WHERE d.committee_id = cc.committee_id AND d.country_id = cc.country_id
		  )
	`, committeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []FreeSeat
	for rows.Next() {
		var s FreeSeat
		if err := rows.Scan(&s.CountryID, &s.Name, &s.Importance); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// applyAssignments writes the planned seats and returns those that took.
// A plan goes stale when another run seats the delegate or the country
// first; those rows match nothing and are left out.
func applyAssignments(ctx context.Context, tx *sql.Tx, assignments []models.AllocationAssignment) ([]models.AllocationAssignment, error) {
	at := now()
	applied := make([]models.AllocationAssignment, 0, len(assignments))
	for _, a := range assignments {
		res, err := tx.ExecContext(ctx, `
			UPDATE delegate SET country_id = $1, assigned_at = $2
			WHERE id = $3 AND country_id IS NULL
			  AND NOT EXISTS (
			      SELECT 1 FROM delegate o
			      WHERE o.committee_id = delegate.committee_id AND o.country_id = $1
			  )
		`, a.CountryID, at, a.DelegateID)
		if err != nil {
			return nil, fmt.Errorf("failed to assign %s to %s: %w", a.CountryID, a.DelegateID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to assign %s to %s: %w", a.CountryID, a.DelegateID, err)
		}
		if n == 1 {
			applied = append(applied, a)
		}
	}
	return applied, nil
}

type AllocationHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewAllocationHandler(db *sql.DB, cfg cliparse.Config) *AllocationHandler {
	return &AllocationHandler{db: db, cfg: cfg}
}

// AllocateCommittee handles POST /committees/{id}/allocate. Delegates that
// already hold a country keep it, so re-running only fills gaps.
func (h *AllocationHandler) AllocateCommittee(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")
	ctx := r.Context()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rollback(tx)

	if _, err := committeeChair(ctx, tx, committeeID); errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	} else if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	candidates, err := seatCandidates(ctx, tx, committeeID)
	if err != nil {
		slog.Error("failed to query delegates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	seats, err := freeSeats(ctx, tx, committeeID)
	if err != nil {
		slog.Error("failed to query free countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	result := Allocate(candidates, seats)

	result.Assignments, err = applyAssignments(ctx, tx, result.Assignments)
	if err != nil {
		slog.Error("failed to apply allocation", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Allocation failed")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit allocation", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Allocation failed")
		return
	}

	metrics.RecordAllocation("committee", len(result.Assignments))
	slog.Info("committee allocated",
		"committee_id", committeeID,
		"assigned", len(result.Assignments),
		"unassigned", len(result.Unassigned),
		"remaining", len(result.Remaining),
	)

	middleware.JSONResponse(w, http.StatusOK, models.AllocationResponse{
		CommitteeID: committeeID,
		Assignments: result.Assignments,
		Unassigned:  result.Unassigned,
		Remaining:   result.Remaining,
	})
}

// AllocateDelegate handles POST /delegates/{id}/allocate. The body is
// optional; without a preferred country the most important free one is
// chosen.
func (h *AllocationHandler) AllocateDelegate(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("id")

	var req models.AllocateDelegateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := r.Context()
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rollback(tx)

	var c SeatCandidate
	var committeeID, countryID *string
	err = tx.QueryRowContext(ctx, `
		SELECT d.id, u.full_name, u.experience, d.created_at, d.committee_id, d.country_id
		FROM delegate d
		JOIN users u ON u.id = d.user_id
		WHERE d.id = $1
	`, delegateID).Scan(&c.DelegateID, &c.FullName, &c.Experience, &c.CreatedAt, &committeeID, &countryID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if committeeID == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "Delegate is not in a committee")
		return
	}
	if countryID != nil {
		middleware.ErrorResponse(w, http.StatusConflict, ErrAlreadyAssigned.Error())
		return
	}

	seats, err := freeSeats(ctx, tx, *committeeID)
	if err != nil {
		slog.Error("failed to query free countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if req.CountryID != nil {
		var preferred []FreeSeat
		for _, s := range seats {
			if s.CountryID == *req.CountryID {
				preferred = append(preferred, s)
			}
		}
		if len(preferred) == 0 {
			middleware.ErrorResponse(w, http.StatusConflict, "Preferred country is not available in this committee")
			return
		}
		seats = preferred
	}

	result := Allocate([]SeatCandidate{c}, seats)
	if len(result.Assignments) == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "No free country left in this committee")
		return
	}

	applied, err := applyAssignments(ctx, tx, result.Assignments)
	if err != nil {
		slog.Error("failed to apply allocation", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Allocation failed")
		return
	}
	if len(applied) == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Seat was taken by another allocation")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit allocation", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Allocation failed")
		return
	}

	a := applied[0]
	metrics.RecordAllocation("single", 1)
	slog.Info("delegate allocated", "delegate_id", delegateID, "country_id", a.CountryID)

	middleware.JSONResponse(w, http.StatusOK, a)
}
