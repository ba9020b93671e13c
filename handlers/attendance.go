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
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type AttendanceHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewAttendanceHandler(db *sql.DB, cfg cliparse.Config) *AttendanceHandler {
	return &AttendanceHandler{db: db, cfg: cfg}
}

func validAttendance(status string) bool {
	switch status {
	case models.AttendancePresent, models.AttendancePresentAndVoting, models.AttendanceLate, models.AttendanceAbsent:
		return true
	}
	return false
}

// countsTowardQuorum reports whether a status makes the delegate present
func countsTowardQuorum(status string) bool {
	return status == models.AttendancePresent ||
		status == models.AttendancePresentAndVoting ||
		status == models.AttendanceLate
}

// HasQuorum reports whether more than half of the committee is present
func HasQuorum(present, total int) bool {
	return total > 0 && present*2 > total
}

func committeeSize(ctx context.Context, q querier, committeeID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM delegate WHERE committee_id = $1`, committeeID).Scan(&n)
	return n, err
}

// loadRollCall reads one session's roll call. Only current members are
// listed, so delegates who moved away count neither as present nor in total.
func loadRollCall(ctx context.Context, q querier, committeeID string, session int) (models.RollCallResponse, error) {
	rc := models.RollCallResponse{CommitteeID: committeeID, Session: session, Records: []models.AttendanceRecord{}}

	rows, err := q.QueryContext(ctx, `
		SELECT a.committee_id, a.delegate_id, u.full_name, c.name, a.session, a.status, a.recorded_by, a.recorded_at
		FROM attendance a
		JOIN delegate d ON d.id = a.delegate_id AND d.committee_id = a.committee_id
		JOIN users u ON u.id = d.user_id
		LEFT JOIN country c ON c.id = d.country_id
		WHERE a.committee_id = $1 AND a.session = $2
		ORDER BY c.name, u.full_name
	`, committeeID, session)
	if err != nil {
		return rc, err
	}
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.CommitteeID, &rec.DelegateID, &rec.FullName, &rec.CountryName,
			&rec.Session, &rec.Status, &rec.RecordedBy, &rec.RecordedAt); err != nil {
			rows.Close()
			return rc, err
		}
		if countsTowardQuorum(rec.Status) {
			rc.Present++
		}
		rc.Records = append(rc.Records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rc, err
	}

	rc.Total, err = committeeSize(ctx, q, committeeID)
	if err != nil {
		return rc, err
	}
	rc.HasQuorum = HasQuorum(rc.Present, rc.Total)
	return rc, nil
}

// RecordAttendance handles PUT /committees/{id}/attendance. The whole roll
// call is written or none of it is.
func (h *AttendanceHandler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")

	var req models.RecordAttendanceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Session < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session must be at least 1")
		return
	}
	if len(req.Records) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "records is required")
		return
	}
	for _, rec := range req.Records {
		if rec.DelegateID == "" || !validAttendance(rec.Status) {
			middleware.ErrorResponse(w, http.StatusBadRequest,
				"each record needs a delegate_id and a status of present, present_and_voting, late or absent")
			return
		}
	}

	ctx := r.Context()
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rollback(tx)

	if !requireModerator(w, r, tx, claims, committeeID) {
		return
	}

	recordedAt := now()
	for _, rec := range req.Records {
		s, err := delegateSeat(ctx, tx, rec.DelegateID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			slog.Error("failed to query delegate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if errors.Is(err, sql.ErrNoRows) || !s.inCommittee(committeeID) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "delegate "+rec.DelegateID+" is not in this committee")
			return
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO attendance (committee_id, delegate_id, session, status, recorded_by, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (committee_id, delegate_id, session)
			DO UPDATE SET status = excluded.status, recorded_by = excluded.recorded_by, recorded_at = excluded.recorded_at
		`, committeeID, rec.DelegateID, req.Session, rec.Status, claims.UserID(), recordedAt)
		if err != nil {
			slog.Error("failed to record attendance", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record attendance")
			return
		}
	}

	rc, err := loadRollCall(ctx, tx, committeeID, req.Session)
	if err != nil {
		slog.Error("failed to reload roll call", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit attendance", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record attendance")
		return
	}

	slog.Info("attendance recorded",
		"committee_id", committeeID,
		"session", req.Session,
		"records", len(req.Records),
		"quorum", rc.HasQuorum,
	)

	middleware.JSONResponse(w, http.StatusOK, rc)
}

// GetRollCall handles GET /committees/{id}/attendance?session=N
func (h *AttendanceHandler) GetRollCall(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")

	sessionNum, err := strconv.Atoi(r.URL.Query().Get("session"))
	if err != nil || sessionNum < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session query parameter must be a positive integer")
		return
	}

	if !requireModerator(w, r, h.db, claims, committeeID) {
		return
	}

	rc, err := loadRollCall(r.Context(), h.db, committeeID, sessionNum)
	if err != nil {
		slog.Error("failed to query roll call", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, rc)
}

// SummarizeAttendance folds attendance rows into per-delegate counts.
// sessions is the number of distinct sessions recorded for the committee;
// a delegate missing from a session's roll call counts as absent there.
func SummarizeAttendance(delegates []models.AttendanceSummary, records []models.AttendanceRecord) []models.AttendanceSummary {
	sessions := map[int]bool{}
	index := make(map[string]int, len(delegates))
	out := make([]models.AttendanceSummary, len(delegates))
	for i, d := range delegates {
		out[i] = models.AttendanceSummary{DelegateID: d.DelegateID, FullName: d.FullName, CountryName: d.CountryName}
		index[d.DelegateID] = i
	}

	for _, rec := range records {
		sessions[rec.Session] = true
		i, ok := index[rec.DelegateID]
		if !ok {
			continue
		}
		switch rec.Status {
		case models.AttendancePresent, models.AttendancePresentAndVoting:
			out[i].Present++
		case models.AttendanceLate:
			out[i].Late++
		}
	}

	for i := range out {
		out[i].Sessions = len(sessions)
		out[i].Absent = out[i].Sessions - out[i].Present - out[i].Late
		if out[i].Sessions > 0 {
			out[i].Rate = float64(out[i].Present+out[i].Late) / float64(out[i].Sessions)
		}
	}
	return out
}

// GetSummary handles GET /committees/{id}/attendance/summary
func (h *AttendanceHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")
	ctx := r.Context()

	if !requireModerator(w, r, h.db, claims, committeeID) {
		return
	}

	delegates, err := queryDelegates(ctx, h.db, ` WHERE d.committee_id = $1`, committeeID)
	if err != nil {
		slog.Error("failed to query delegates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	base := make([]models.AttendanceSummary, len(delegates))
	for i, d := range delegates {
		base[i] = models.AttendanceSummary{DelegateID: d.ID, FullName: d.FullName, CountryName: d.CountryName}
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT delegate_id, session, status FROM attendance WHERE committee_id = $1
	`, committeeID)
	if err != nil {
		slog.Error("failed to query attendance", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.DelegateID, &rec.Session, &rec.Status); err != nil {
			slog.Error("failed to scan attendance", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate attendance", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, SummarizeAttendance(base, records))
}
