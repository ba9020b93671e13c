// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/db"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type BlockHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewBlockHandler(db *sql.DB, cfg cliparse.Config) *BlockHandler {
	return &BlockHandler{db: db, cfg: cfg}
}

// blockOf returns the block a delegate belongs to within a committee, or ""
func blockOf(ctx context.Context, q querier, committeeID, delegateID string) (string, error) {
	var blockID string
	err := q.QueryRowContext(ctx, `
		SELECT b.id FROM block_member m
		JOIN block b ON b.id = m.block_id
		WHERE b.committee_id = $1 AND m.delegate_id = $2
	`, committeeID, delegateID).Scan(&blockID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return blockID, err
}

// loadBlocks returns the committee's blocks with their members
func loadBlocks(ctx context.Context, q querier, committeeID string) ([]models.Block, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, committee_id, name, created_by, created_at
		FROM block WHERE committee_id = $1
		ORDER BY name
	`, committeeID)
	if err != nil {
		return nil, err
	}

	blocks := []models.Block{}
	index := map[string]int{}
	for rows.Next() {
		var b models.Block
		if err := rows.Scan(&b.ID, &b.CommitteeID, &b.Name, &b.CreatedBy, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		b.Members = []models.BlockMember{}
		index[b.ID] = len(blocks)
		blocks = append(blocks, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := q.QueryContext(ctx, `
		SELECT m.block_id, m.delegate_id, u.full_name, c.name, m.joined_at
		FROM block_member m
		JOIN block b ON b.id = m.block_id
		JOIN delegate d ON d.id = m.delegate_id
		JOIN users u ON u.id = d.user_id
		LEFT JOIN country c ON c.id = d.country_id
		WHERE b.committee_id = $1
		ORDER BY m.joined_at, m.delegate_id
	`, committeeID)
	if err != nil {
		return nil, err
	}
	defer members.Close()

	for members.Next() {
		var blockID string
		var m models.BlockMember
		if err := members.Scan(&blockID, &m.DelegateID, &m.FullName, &m.CountryName, &m.JoinedAt); err != nil {
			return nil, err
		}
		if i, ok := index[blockID]; ok {
			blocks[i].Members = append(blocks[i].Members, m)
		}
	}
	return blocks, members.Err()
}

// ListBlocks handles GET /committees/{id}/blocks
func (h *BlockHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")

	if _, err := committeeChair(r.Context(), h.db, committeeID); errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	} else if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	blocks, err := loadBlocks(r.Context(), h.db, committeeID)
	if err != nil {
		slog.Error("failed to query blocks", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, blocks)
}

// CreateBlock handles POST /committees/{id}/blocks. A delegate founding a
// block becomes its first member; chairs may create empty blocks.
func (h *BlockHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")

	var req models.CreateBlockRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
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

	chairID, err := committeeChair(ctx, tx, committeeID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	}
	if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var founder *string
	if !canModerate(claims, chairID) {
		s, err := delegateSeatForUser(ctx, tx, claims.UserID())
		if errors.Is(err, ErrNoDelegate) || (err == nil && !s.inCommittee(committeeID)) {
			middleware.ErrorResponse(w, http.StatusForbidden, "Only delegates of this committee may create blocks")
			return
		}
		if err != nil {
			slog.Error("failed to query delegate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		current, err := blockOf(ctx, tx, committeeID, s.DelegateID)
		if err != nil {
			slog.Error("failed to query block membership", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if current != "" {
			middleware.ErrorResponse(w, http.StatusConflict, "You already belong to a block")
			return
		}
		founder = &s.DelegateID
	}

	blockID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate block ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create block")
		return
	}

	createdAt := now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO block (id, committee_id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, blockID, committeeID, req.Name, founder, createdAt)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "A block with that name already exists")
		return
	}
	if err != nil {
		slog.Error("failed to insert block", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create block")
		return
	}

	if founder != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO block_member (block_id, delegate_id, joined_at) VALUES ($1, $2, $3)
		`, blockID, *founder, createdAt)
		if db.IsUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "You already belong to a block")
			return
		}
		if err != nil {
			slog.Error("failed to insert block founder", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create block")
			return
		}
	}

	blocks, err := loadBlocks(ctx, tx, committeeID)
	if err != nil {
		slog.Error("failed to reload blocks", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit block", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create block")
		return
	}

	slog.Info("block created", "block_id", blockID, "committee_id", committeeID)

	for _, b := range blocks {
		if b.ID == blockID {
			middleware.JSONResponse(w, http.StatusCreated, b)
			return
		}
	}
	middleware.JSONResponse(w, http.StatusCreated, models.CreatedResponse{ID: blockID})
}

// blockCommittee returns the committee owning a block
func blockCommittee(ctx context.Context, q querier, blockID string) (string, error) {
	var committeeID string
	err := q.QueryRowContext(ctx, `SELECT committee_id FROM block WHERE id = $1`, blockID).Scan(&committeeID)
	return committeeID, err
}

// AddMember handles POST /blocks/{id}/members. Delegates join themselves;
// the committee chair may add any delegate of the committee.
func (h *BlockHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	blockID := r.PathValue("id")

	var req models.AddBlockMemberRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
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

	committeeID, err := blockCommittee(ctx, tx, blockID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Block not found")
		return
	}
	if err != nil {
		slog.Error("failed to query block", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	chairID, err := committeeChair(ctx, tx, committeeID)
	if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var target seat
	if canModerate(claims, chairID) {
		if req.DelegateID == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "delegate_id is required")
			return
		}
		target, err = delegateSeat(ctx, tx, req.DelegateID)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Delegate not found")
			return
		}
	} else {
		target, err = delegateSeatForUser(ctx, tx, claims.UserID())
		if errors.Is(err, ErrNoDelegate) {
			middleware.ErrorResponse(w, http.StatusForbidden, "Only delegates may join blocks")
			return
		}
		if err == nil && req.DelegateID != "" && req.DelegateID != target.DelegateID {
			middleware.ErrorResponse(w, http.StatusForbidden, "You can only add yourself")
			return
		}
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !target.inCommittee(committeeID) {
		middleware.ErrorResponse(w, http.StatusConflict, ErrNotInCommittee.Error())
		return
	}
	current, err := blockOf(ctx, tx, committeeID, target.DelegateID)
	if err != nil {
		slog.Error("failed to query block membership", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if current != "" {
		middleware.ErrorResponse(w, http.StatusConflict, "Delegate already belongs to a block")
		return
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO block_member (block_id, delegate_id, joined_at) VALUES ($1, $2, $3)
	`, blockID, target.DelegateID, now())
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Delegate already belongs to a block")
		return
	}
	if err != nil {
		slog.Error("failed to insert block member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join block")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit block member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join block")
		return
	}

	slog.Info("block member added", "block_id", blockID, "delegate_id", target.DelegateID)

	middleware.JSONResponse(w, http.StatusCreated, models.MessageResponse{Message: "Joined block"})
}

// RemoveMember handles DELETE /blocks/{id}/members/{delegateId}
func (h *BlockHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	blockID := r.PathValue("id")
	delegateID := r.PathValue("delegateId")
	ctx := r.Context()

	committeeID, err := blockCommittee(ctx, h.db, blockID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Block not found")
		return
	}
	if err != nil {
		slog.Error("failed to query block", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	chairID, err := committeeChair(ctx, h.db, committeeID)
	if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !canModerate(claims, chairID) {
		s, err := delegateSeatForUser(ctx, h.db, claims.UserID())
		if err != nil && !errors.Is(err, ErrNoDelegate) {
			slog.Error("failed to query delegate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if s.DelegateID != delegateID {
			middleware.ErrorResponse(w, http.StatusForbidden, "You can only remove yourself")
			return
		}
	}

	result, err := h.db.ExecContext(ctx, `
		DELETE FROM block_member WHERE block_id = $1 AND delegate_id = $2
	`, blockID, delegateID)
	if err != nil {
		slog.Error("failed to delete block member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to leave block")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Delegate is not a member of this block")
		return
	}

	slog.Info("block member removed", "block_id", blockID, "delegate_id", delegateID)

	w.WriteHeader(http.StatusNoContent)
}

// DeleteBlock handles DELETE /blocks/{id}
func (h *BlockHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	blockID := r.PathValue("id")

	committeeID, err := blockCommittee(r.Context(), h.db, blockID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Block not found")
		return
	}
	if err != nil {
		slog.Error("failed to query block", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !requireModerator(w, r, h.db, claims, committeeID) {
		return
	}

	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM block WHERE id = $1`, blockID); err != nil {
		slog.Error("failed to delete block", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete block")
		return
	}

	slog.Info("block deleted", "block_id", blockID, "committee_id", committeeID)

	w.WriteHeader(http.StatusNoContent)
}
