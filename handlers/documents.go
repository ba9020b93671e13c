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
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/metrics"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type DocumentHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewDocumentHandler(db *sql.DB, cfg cliparse.Config) *DocumentHandler {
	return &DocumentHandler{db: db, cfg: cfg}
}

const documentColumns = `id, committee_id, author_id, block_id, parent_id, kind, title, body, status,
	review_note, reviewed_by, reviewed_at, submitted_at, published_at`

func scanDocument(row interface{ Scan(...any) error }) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.CommitteeID, &d.AuthorID, &d.BlockID, &d.ParentID, &d.Kind, &d.Title, &d.Body,
		&d.Status, &d.ReviewNote, &d.ReviewedBy, &d.ReviewedAt, &d.SubmittedAt, &d.PublishedAt)
	if err == nil {
		d.SizeHuman = humanize.Bytes(uint64(len(d.Body)))
	}
	return d, err
}

func loadDocument(ctx context.Context, q querier, documentID string) (models.Document, error) {
	return scanDocument(q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM document WHERE id = $1`, documentID))
}

func validKind(kind string) bool {
	switch kind {
	case models.KindPositionPaper, models.KindDraftResolution, models.KindAmendment:
		return true
	}
	return false
}

func validDocStatus(status string) bool {
	switch status {
	case models.DocSubmitted, models.DocApproved, models.DocRejected, models.DocPublished, models.DocFailed:
		return true
	}
	return false
}

// publicStatus reports whether any committee member may read a document
func publicStatus(status string) bool {
	return status == models.DocApproved || status == models.DocPublished || status == models.DocFailed
}

// viewer describes what the caller may see in one committee
type viewer struct {
	moderator  bool
	delegateID string // "" unless the caller is a delegate of the committee
}

func (v viewer) canSee(d models.Document) bool {
	return v.moderator || d.AuthorID == v.delegateID || publicStatus(d.Status)
}

// resolveViewer works out the caller's standing in a committee. Returns
// sql.ErrNoRows when the committee is missing.
func resolveViewer(ctx context.Context, q querier, claims *auth.Claims, committeeID string) (viewer, error) {
	chairID, err := committeeChair(ctx, q, committeeID)
	if err != nil {
		return viewer{}, err
	}
	if canModerate(claims, chairID) {
		return viewer{moderator: true}, nil
	}

	s, err := delegateSeatForUser(ctx, q, claims.UserID())
	if errors.Is(err, ErrNoDelegate) {
		return viewer{}, nil
	}
	if err != nil {
		return viewer{}, err
	}
	if !s.inCommittee(committeeID) {
		return viewer{}, nil
	}
	return viewer{delegateID: s.DelegateID}, nil
}

// SubmitDocument handles POST /committees/{id}/documents
func (h *DocumentHandler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")

	var req models.SubmitDocumentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if !validKind(req.Kind) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "kind must be position_paper, draft_resolution or amendment")
		return
	}
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "body is required")
		return
	}
	if req.Kind == models.KindAmendment && req.ParentID == nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "amendments need a parent_id")
		return
	}
	if req.Kind != models.KindAmendment && req.ParentID != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "only amendments take a parent_id")
		return
	}

	ctx := r.Context()
	s, err := delegateSeatForUser(ctx, h.db, claims.UserID())
	if errors.Is(err, ErrNoDelegate) || (err == nil && !s.inCommittee(committeeID)) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only delegates of this committee may submit documents")
		return
	}
	if err != nil {
		slog.Error("failed to query delegate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if req.BlockID != nil {
		current, err := blockOf(ctx, h.db, committeeID, s.DelegateID)
		if err != nil {
			slog.Error("failed to query block membership", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if current != *req.BlockID {
			middleware.ErrorResponse(w, http.StatusForbidden, "You can only submit for your own block")
			return
		}
	}

	if req.ParentID != nil {
		parent, err := loadDocument(ctx, h.db, *req.ParentID)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "parent document not found")
			return
		}
		if err != nil {
			slog.Error("failed to query parent document", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if parent.Kind != models.KindDraftResolution || parent.CommitteeID != committeeID {
			middleware.ErrorResponse(w, http.StatusBadRequest, "parent must be a draft resolution of this committee")
			return
		}
	}

	documentID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate document ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit document")
		return
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO document (id, committee_id, author_id, block_id, parent_id, kind, title, body, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, documentID, committeeID, s.DelegateID, req.BlockID, req.ParentID, req.Kind, req.Title, req.Body,
		models.DocSubmitted, now())
	if err != nil {
		slog.Error("failed to insert document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit document")
		return
	}

	metrics.RecordDocumentSubmitted(req.Kind)
	slog.Info("document submitted", "document_id", documentID, "committee_id", committeeID, "kind", req.Kind)

	doc, err := loadDocument(ctx, h.db, documentID)
	if err != nil {
		slog.Error("failed to reload document", "error", err)
		middleware.JSONResponse(w, http.StatusCreated, models.CreatedResponse{ID: documentID})
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /committees/{id}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	committeeID := r.PathValue("id")
	ctx := r.Context()

	status := r.URL.Query().Get("status")
	if status != "" && !validDocStatus(status) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind != "" && !validKind(kind) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid kind filter")
		return
	}

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
	if !v.moderator && v.delegateID == "" {
		middleware.ErrorResponse(w, http.StatusForbidden, "You are not part of this committee")
		return
	}

	query := `SELECT ` + documentColumns + ` FROM document WHERE committee_id = $1`
	args := []any{committeeID}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if kind != "" {
		args = append(args, kind)
		query += ` AND kind = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY submitted_at, id`

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to query documents", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			slog.Error("failed to scan document", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if v.canSee(d) {
			docs = append(docs, d)
		}
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate documents", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, docs)
}

// visibleDocument loads a document the caller may read, writing 404 for
// both missing and hidden documents
func visibleDocument(w http.ResponseWriter, r *http.Request, q querier, claims *auth.Claims) (models.Document, viewer, bool) {
	ctx := r.Context()
	doc, err := loadDocument(ctx, q, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Document not found")
		return doc, viewer{}, false
	}
	if err != nil {
		slog.Error("failed to query document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return doc, viewer{}, false
	}

	v, err := resolveViewer(ctx, q, claims, doc.CommitteeID)
	if err != nil {
		slog.Error("failed to resolve viewer", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return doc, viewer{}, false
	}
	if (!v.moderator && v.delegateID == "") || !v.canSee(doc) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Document not found")
		return doc, viewer{}, false
	}
	return doc, v, true
}

// GetDocument handles GET /documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	doc, _, ok := visibleDocument(w, r, h.db, claims)
	if !ok {
		return
	}

	middleware.JSONResponse(w, http.StatusOK, doc)
}

// ReviewDocument handles PUT /documents/{id}/review
func (h *DocumentHandler) ReviewDocument(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	documentID := r.PathValue("id")

	var req models.ReviewDocumentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var status string
	switch req.Decision {
	case "approve":
		status = models.DocApproved
	case "reject":
		status = models.DocRejected
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "decision must be approve or reject")
		return
	}

	ctx := r.Context()
	doc, err := loadDocument(ctx, h.db, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		slog.Error("failed to query document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !requireModerator(w, r, h.db, claims, doc.CommitteeID) {
		return
	}

	var note *string
	if n := strings.TrimSpace(req.Note); n != "" {
		note = &n
	}

	// Guarded on status so two concurrent reviews cannot both win
	result, err := h.db.ExecContext(ctx, `
		UPDATE document
		SET status = $1, review_note = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $5 AND status = $6
	`, status, note, claims.UserID(), now(), documentID, models.DocSubmitted)
	if err != nil {
		slog.Error("failed to review document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to review document")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Document has already been reviewed")
		return
	}

	slog.Info("document reviewed", "document_id", documentID, "status", status, "reviewer", claims.UserID())

	doc, err = loadDocument(ctx, h.db, documentID)
	if err != nil {
		slog.Error("failed to reload document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}. Authors may withdraw a
// document until it is reviewed; admins may delete anything.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}
	documentID := r.PathValue("id")
	ctx := r.Context()

	doc, err := loadDocument(ctx, h.db, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		slog.Error("failed to query document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if claims.Role != models.RoleAdmin {
		s, err := delegateSeatForUser(ctx, h.db, claims.UserID())
		if err != nil && !errors.Is(err, ErrNoDelegate) {
			slog.Error("failed to query delegate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if s.DelegateID != doc.AuthorID {
			middleware.ErrorResponse(w, http.StatusForbidden, "Only the author may withdraw this document")
			return
		}
		if doc.Status != models.DocSubmitted {
			middleware.ErrorResponse(w, http.StatusConflict, "Reviewed documents cannot be withdrawn")
			return
		}
	}

	if _, err := h.db.ExecContext(ctx, `DELETE FROM document WHERE id = $1`, documentID); err != nil {
		slog.Error("failed to delete document", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	slog.Info("document deleted", "document_id", documentID, "by", claims.UserID())

	w.WriteHeader(http.StatusNoContent)
}
