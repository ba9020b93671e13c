// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/metrics"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type VoteHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVoteHandler(db *sql.DB, cfg cliparse.Config) *VoteHandler {
	return &VoteHandler{db: db, cfg: cfg}
}

// CastVote handles POST /documents/{id}/votes. Voting again replaces the
// earlier position.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	documentID := r.PathValue("id")

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	switch req.Position {
	case models.VoteFor, models.VoteAgainst, models.VoteAbstain:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "position must be for, against or abstain")
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

	doc, err := loadDocument(ctx, tx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		slog.Error("failed to query document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	s, err := delegateSeatForUser(ctx, tx, claims.UserID())
	if errors.Is(err, ErrNoDelegate) || (err == nil && !s.inCommittee(doc.CommitteeID)) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only delegates of this committee may vote")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if doc.Kind == models.KindPositionPaper {
		middleware.ErrorResponse(w, http.StatusConflict, "Position papers are not voted on")
		return
	}
	if s.CountryID == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "You need an assigned country to vote")
		return
	}

	// Locks the document while it is still approved so a concurrent
	// publish cannot close voting underneath this vote.
	res, err := tx.ExecContext(ctx, `
		UPDATE document SET status = status WHERE id = $1 AND status = $2
	`, documentID, models.DocApproved)
	if err != nil {
		slog.Error("failed to lock document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, err := res.RowsAffected(); err != nil {
		slog.Error("failed to lock document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	} else if n == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Voting is only open on approved documents")
		return
	}

	castAt := now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vote (document_id, delegate_id, position, cast_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, delegate_id)
		DO UPDATE SET position = excluded.position, cast_at = excluded.cast_at
	`, documentID, s.DelegateID, req.Position, castAt)
	if err != nil {
		slog.Error("failed to record vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	metrics.RecordVote(req.Position)
	slog.Info("vote cast", "document_id", documentID, "delegate_id", s.DelegateID, "position", req.Position)

	h.respondVotes(w, r, doc)
}

// GetVotes handles GET /documents/{id}/votes
func (h *VoteHandler) GetVotes(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	doc, _, ok := visibleDocument(w, r, h.db, claims)
	if !ok {
		return
	}

	h.respondVotes(w, r, doc)
}

func (h *VoteHandler) respondVotes(w http.ResponseWriter, r *http.Request, doc models.Document) {
	votes, err := loadVotes(r.Context(), h.db, doc.ID)
	if err != nil {
		slog.Error("failed to query votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.DocumentVotesResponse{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Tally:      ComputeTally(votes),
		Votes:      votes,
	})
}

// Publish handles POST /documents/{id}/publish. The vote count gates
// publication; the tally decides between published and failed.
func (h *VoteHandler) Publish(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	documentID := r.PathValue("id")
	ctx := r.Context()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rollback(tx)

	doc, err := loadDocument(ctx, tx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		slog.Error("failed to query document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !requireModerator(w, r, tx, claims, doc.CommitteeID) {
		return
	}
	// Holding the row lock keeps late votes out of the tally below
	res, err := tx.ExecContext(ctx, `
		UPDATE document SET status = status WHERE id = $1 AND status = $2
	`, documentID, models.DocApproved)
	if err != nil {
		slog.Error("failed to lock document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, err := res.RowsAffected(); err != nil {
		slog.Error("failed to lock document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	} else if n == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Only approved documents can be published")
		return
	}

	votes, err := loadVotes(ctx, tx, documentID)
	if err != nil {
		slog.Error("failed to query votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	tally := ComputeTally(votes)

	status, err := PublicationOutcome(doc.Kind, tally)
	if errors.Is(err, ErrNotEnoughVotes) {
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to decide publication", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish")
		return
	}

	var publishedAt *time.Time
	if status == models.DocPublished {
		t := now()
		publishedAt = &t
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE document SET status = $1, published_at = $2 WHERE id = $3
	`, status, publishedAt, documentID)
	if err != nil {
		slog.Error("failed to publish document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit publication", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish")
		return
	}

	slog.Info("document publication decided",
		"document_id", documentID,
		"status", status,
		"for", tally.For,
		"against", tally.Against,
		"abstain", tally.Abstain,
	)

	middleware.JSONResponse(w, http.StatusOK, models.PublishResponse{
		DocumentID: documentID,
		Status:     status,
		Tally:      tally,
	})
}
