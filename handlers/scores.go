// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

// MaxPoints is the highest score a chair can give in one entry
const MaxPoints = 10

type ScoreHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewScoreHandler(db *sql.DB, cfg cliparse.Config) *ScoreHandler {
	return &ScoreHandler{db: db, cfg: cfg}
}

func validCategory(category string) bool {
	switch category {
	case models.CategorySpeech, models.CategoryPositionPaper, models.CategoryDiplomacy, models.CategoryResolution:
		return true
	}
	return false
}

// CreateScore handles POST /committees/{id}/scores
func (h *ScoreHandler) CreateScore(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")

	var req models.CreateScoreRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.DelegateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "delegate_id is required")
		return
	}
	if !validCategory(req.Category) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "category must be speech, position_paper, diplomacy or resolution")
		return
	}
	if req.Session < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session must be at least 1")
		return
	}
	if req.Points < 0 || req.Points > MaxPoints {
		middleware.ErrorResponse(w, http.StatusBadRequest, "points must be between 0 and 10")
		return
	}

	ctx := r.Context()
	if !requireModerator(w, r, h.db, claims, committeeID) {
		return
	}

	s, err := delegateSeat(ctx, h.db, req.DelegateID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !s.inCommittee(committeeID) {
		middleware.ErrorResponse(w, http.StatusBadRequest, ErrNotInCommittee.Error())
		return
	}

	scoreID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate score ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record score")
		return
	}

	score := models.Score{
		ID:          scoreID,
		CommitteeID: committeeID,
		DelegateID:  req.DelegateID,
		ChairID:     claims.UserID(),
		Category:    req.Category,
		Session:     req.Session,
		Points:      req.Points,
		Comment:     strings.TrimSpace(req.Comment),
		CreatedAt:   now(),
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO score (id, committee_id, delegate_id, chair_id, category, session, points, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, score.ID, score.CommitteeID, score.DelegateID, score.ChairID, score.Category, score.Session,
		score.Points, score.Comment, score.CreatedAt)
	if err != nil {
		slog.Error("failed to insert score", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record score")
		return
	}

	slog.Info("score recorded", "score_id", score.ID, "committee_id", committeeID, "delegate_id", req.DelegateID)

	middleware.JSONResponse(w, http.StatusCreated, score)
}

// ListScores handles GET /committees/{id}/scores. Delegates only ever see
// their own scores.
func (h *ScoreHandler) ListScores(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")
	delegateID := r.URL.Query().Get("delegate_id")
	ctx := r.Context()

	v, err := resolveViewer(ctx, h.db, claims, committeeID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	}
	if err != nil {
		slog.Error("failed to resolve viewer", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !v.moderator {
		if v.delegateID == "" || (delegateID != "" && delegateID != v.delegateID) {
			middleware.ErrorResponse(w, http.StatusForbidden, "You can only view your own scores")
			return
		}
		delegateID = v.delegateID
	}

	query := `
		SELECT id, committee_id, delegate_id, chair_id, category, session, points, comment, created_at
		FROM score WHERE committee_id = $1`
	args := []any{committeeID}
	if delegateID != "" {
		query += ` AND delegate_id = $2`
		args = append(args, delegateID)
	}
	query += ` ORDER BY session, created_at, id`

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to query scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	scores := []models.Score{}
	for rows.Next() {
		var s models.Score
		if err := rows.Scan(&s.ID, &s.CommitteeID, &s.DelegateID, &s.ChairID, &s.Category, &s.Session,
			&s.Points, &s.Comment, &s.CreatedAt); err != nil {
			slog.Error("failed to scan score", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, scores)
}

// GetAwards handles GET /committees/{id}/awards
func (h *ScoreHandler) GetAwards(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")

	if !requireModerator(w, r, h.db, claims, committeeID) {
		return
	}

	standings, err := loadStandings(r.Context(), h.db, committeeID)
	if err != nil {
		slog.Error("failed to compute standings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.AwardsResponse{
		CommitteeID: committeeID,
		Standings:   nonNil(RankStandings(standings)),
	})
}
