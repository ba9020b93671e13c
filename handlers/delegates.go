// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/db"
	"github.com/danielhkuo/munconf/metrics"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type DelegateHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewDelegateHandler(db *sql.DB, cfg cliparse.Config) *DelegateHandler {
	return &DelegateHandler{db: db, cfg: cfg}
}

const delegateSelect = `
	SELECT d.id, d.user_id, u.full_name, u.email, u.institution, u.experience,
	       d.committee_id, d.country_id, c.name, d.assigned_at, d.created_at
	FROM delegate d
	JOIN users u ON u.id = d.user_id
	LEFT JOIN country c ON c.id = d.country_id`

func scanDelegate(row interface{ Scan(...any) error }) (models.Delegate, error) {
	var d models.Delegate
	err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Email, &d.Institution, &d.Experience,
		&d.CommitteeID, &d.CountryID, &d.CountryName, &d.AssignedAt, &d.CreatedAt)
	return d, err
}

func loadDelegate(ctx context.Context, q querier, delegateID string) (models.Delegate, error) {
	return scanDelegate(q.QueryRowContext(ctx, delegateSelect+` WHERE d.id = $1`, delegateID))
}

// queryDelegates runs delegateSelect with an optional WHERE clause
func queryDelegates(ctx context.Context, q querier, where string, args ...any) ([]models.Delegate, error) {
	rows, err := q.QueryContext(ctx, delegateSelect+where+` ORDER BY u.full_name, d.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	delegates := []models.Delegate{}
	for rows.Next() {
		d, err := scanDelegate(rows)
		if err != nil {
			return nil, err
		}
		delegates = append(delegates, d)
	}
	return delegates, rows.Err()
}

// respondDelegate reloads a delegate and writes it
func respondDelegate(w http.ResponseWriter, r *http.Request, q querier, delegateID string, status int) {
	d, err := loadDelegate(r.Context(), q, delegateID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, status, d)
}

// ListDelegates handles GET /delegates
func (h *DelegateHandler) ListDelegates(w http.ResponseWriter, r *http.Request) {
	var where string
	var args []any
	add := func(cond string, arg ...any) {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += cond
		args = append(args, arg...)
	}

	if committeeID := r.URL.Query().Get("committee_id"); committeeID != "" {
		add("d.committee_id = $"+strconv.Itoa(len(args)+1), committeeID)
	}
	if v := r.URL.Query().Get("unassigned"); v != "" {
		unassigned, err := strconv.ParseBool(v)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "unassigned must be true or false")
			return
		}
		if unassigned {
			add("d.country_id IS NULL")
		} else {
			add("d.country_id IS NOT NULL")
		}
	}

	delegates, err := queryDelegates(r.Context(), h.db, where, args...)
	if err != nil {
		slog.Error("failed to query delegates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, delegates)
}

// GetMe handles GET /delegates/me
func (h *DelegateHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	s, err := delegateSeatForUser(r.Context(), h.db, claims.UserID())
	if errors.Is(err, ErrNoDelegate) {
		middleware.ErrorResponse(w, http.StatusNotFound, "No delegate record for this account")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	respondDelegate(w, r, h.db, s.DelegateID, http.StatusOK)
}

// GetDelegate handles GET /delegates/{id}
func (h *DelegateHandler) GetDelegate(w http.ResponseWriter, r *http.Request) {
	respondDelegate(w, r, h.db, r.PathValue("id"), http.StatusOK)
}

// CreateDelegate handles POST /delegates for an existing delegate-role user
// that lost or never had a delegate record
func (h *DelegateHandler) CreateDelegate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDelegateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx := r.Context()
	user, err := loadUser(ctx, h.db, req.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user.Role != models.RoleDelegate {
		middleware.ErrorResponse(w, http.StatusConflict, "User does not have the delegate role")
		return
	}

	err = insertDelegateRecord(ctx, h.db, user.ID)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "User already has a delegate record")
		return
	}
	if err != nil {
		slog.Error("failed to insert delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create delegate")
		return
	}

	s, err := delegateSeatForUser(ctx, h.db, user.ID)
	if err != nil {
		slog.Error("failed to reload delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("delegate created", "delegate_id", s.DelegateID, "user_id", user.ID)

	respondDelegate(w, r, h.db, s.DelegateID, http.StatusCreated)
}

// AssignCommittee handles PUT /delegates/{id}/committee. Moving a delegate
// clears its country and block memberships.
func (h *DelegateHandler) AssignCommittee(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("id")

	var req models.AssignCommitteeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CommitteeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "committee_id is required")
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

	s, err := delegateSeat(ctx, tx, delegateID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !s.inCommittee(req.CommitteeID) {
		err = joinCommittee(ctx, tx, delegateID, req.CommitteeID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
			return
		case errors.Is(err, ErrCommitteeFull):
			middleware.ErrorResponse(w, http.StatusConflict, "Committee is at capacity")
			return
		case err != nil:
			slog.Error("failed to assign committee", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign committee")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit committee assignment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign committee")
		return
	}

	slog.Info("delegate assigned to committee", "delegate_id", delegateID, "committee_id", req.CommitteeID)

	respondDelegate(w, r, h.db, delegateID, http.StatusOK)
}

// joinCommittee moves a delegate into a committee with room for it.
// Returns sql.ErrNoRows for an unknown committee.
//
// The no-op update takes the committee row lock so concurrent joins queue
// behind each other; the capacity check then rides in the UPDATE itself.
func joinCommittee(ctx context.Context, tx *sql.Tx, delegateID, committeeID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE committee SET capacity = capacity WHERE id = $1`, committeeID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE delegate SET committee_id = $1, country_id = NULL, assigned_at = NULL
		WHERE id = $2
		  AND (SELECT COUNT(*) FROM delegate WHERE committee_id = $1) <
		      (SELECT capacity FROM committee WHERE id = $1)
	`, committeeID, delegateID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCommitteeFull
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM block_member WHERE delegate_id = $1`, delegateID)
	return err
}

// AssignCountry handles PUT /delegates/{id}/country
func (h *DelegateHandler) AssignCountry(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("id")

	var req models.AssignCountryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CountryID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "country_id is required")
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

	s, err := delegateSeat(ctx, tx, delegateID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if s.CommitteeID == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "Delegate is not in a committee")
		return
	}
	if s.CountryID != nil && *s.CountryID == req.CountryID {
		respondDelegate(w, r, tx, delegateID, http.StatusOK)
		return
	}

	err = takeSeat(ctx, tx, delegateID, *s.CommitteeID, req.CountryID)
	switch {
	case errors.Is(err, ErrCountryNotSeat):
		middleware.ErrorResponse(w, http.StatusConflict, "Country is not part of this committee")
		return
	case errors.Is(err, ErrCountryTaken):
		middleware.ErrorResponse(w, http.StatusConflict, "Country is already assigned")
		return
	case err != nil:
		slog.Error("failed to assign country", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign country")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit country assignment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign country")
		return
	}

	metrics.RecordAllocation("manual", 1)
	slog.Info("country assigned", "delegate_id", delegateID, "country_id", req.CountryID)

	respondDelegate(w, r, h.db, delegateID, http.StatusOK)
}

// takeSeat gives a delegate a country from its committee's matrix
func takeSeat(ctx context.Context, tx *sql.Tx, delegateID, committeeID, countryID string) error {
	var inMatrix int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM committee_country WHERE committee_id = $1 AND country_id = $2
	`, committeeID, countryID).Scan(&inMatrix)
	if err != nil {
		return err
	}
	if inMatrix == 0 {
		return ErrCountryNotSeat
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE delegate SET country_id = $1, assigned_at = $2 WHERE id = $3
	`, countryID, now(), delegateID)
	if db.IsUniqueViolation(err) {
		return ErrCountryTaken
	}
	return err
}

// ClearAssignment handles DELETE /delegates/{id}/assignment
func (h *DelegateHandler) ClearAssignment(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("id")
	ctx := r.Context()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rollback(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE delegate SET committee_id = NULL, country_id = NULL, assigned_at = NULL WHERE id = $1
	`, delegateID)
	if err != nil {
		slog.Error("failed to clear assignment", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to clear assignment")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
		return
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM block_member WHERE delegate_id = $1`, delegateID); err != nil {
		slog.Error("failed to clear block memberships", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to clear assignment")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit assignment clear", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to clear assignment")
		return
	}

	slog.Info("delegate assignment cleared", "delegate_id", delegateID)

	respondDelegate(w, r, h.db, delegateID, http.StatusOK)
}

// DeleteDelegate handles DELETE /delegates/{id}. The user account stays.
func (h *DelegateHandler) DeleteDelegate(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("id")

	result, err := h.db.ExecContext(r.Context(), `DELETE FROM delegate WHERE id = $1`, delegateID)
	if err != nil {
		slog.Error("failed to delete delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete delegate")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
		return
	}

	slog.Info("delegate deleted", "delegate_id", delegateID)

	w.WriteHeader(http.StatusNoContent)
}
