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

type CommitteeHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewCommitteeHandler(db *sql.DB, cfg cliparse.Config) *CommitteeHandler {
	return &CommitteeHandler{db: db, cfg: cfg}
}

const committeeSelect = `
	SELECT c.id, c.name, c.abbreviation, c.topic, c.description, c.capacity,
	       c.chair_id, u.full_name,
	       (SELECT COUNT(*) FROM delegate d WHERE d.committee_id = c.id),
	       c.created_at
	FROM committee c
	LEFT JOIN users u ON u.id = c.chair_id`

func scanCommittee(row interface{ Scan(...any) error }) (models.Committee, error) {
	var c models.Committee
	err := row.Scan(&c.ID, &c.Name, &c.Abbreviation, &c.Topic, &c.Description, &c.Capacity,
		&c.ChairID, &c.ChairName, &c.DelegateCount, &c.CreatedAt)
	return c, err
}

func loadCommittee(ctx context.Context, q querier, committeeID string) (models.Committee, error) {
	return scanCommittee(q.QueryRowContext(ctx, committeeSelect+` WHERE c.id = $1`, committeeID))
}

// loadCommitteeCountries returns the committee's country matrix, most
// important countries first
func loadCommitteeCountries(ctx context.Context, q querier, committeeID string) ([]models.CommitteeCountry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.name, c.code, c.importance, c.created_at, d.id
		FROM committee_country cc
		JOIN country c ON c.id = cc.country_id
		LEFT JOIN delegate d ON d.committee_id = cc.committee_id AND d.country_id = cc.country_id
		WHERE cc.committee_id = $1
		ORDER BY c.importance DESC, c.name, c.id
	`, committeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	countries := []models.CommitteeCountry{}
	for rows.Next() {
		var cc models.CommitteeCountry
		if err := rows.Scan(&cc.ID, &cc.Name, &cc.Code, &cc.Importance, &cc.CreatedAt, &cc.DelegateID); err != nil {
			return nil, err
		}
		cc.Taken = cc.DelegateID != nil
		countries = append(countries, cc)
	}
	return countries, rows.Err()
}

func validateCommittee(req *models.CommitteeRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	req.Abbreviation = strings.ToUpper(strings.TrimSpace(req.Abbreviation))

	if req.Name == "" {
		return "name is required"
	}
	if req.Capacity <= 0 {
		return "capacity must be positive"
	}
	return ""
}

// ListCommittees handles GET /committees
func (h *CommitteeHandler) ListCommittees(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), committeeSelect+` ORDER BY c.name`)
	if err != nil {
		slog.Error("failed to query committees", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	committees := []models.Committee{}
	for rows.Next() {
		c, err := scanCommittee(rows)
		if err != nil {
			slog.Error("failed to scan committee", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		committees = append(committees, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate committees", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, committees)
}

// GetCommittee handles GET /committees/{id}
func (h *CommitteeHandler) GetCommittee(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")

	committee, err := loadCommittee(r.Context(), h.db, committeeID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	}
	if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	countries, err := loadCommitteeCountries(r.Context(), h.db, committeeID)
	if err != nil {
		slog.Error("failed to query committee countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CommitteeWithCountries{
		Committee: committee,
		Countries: countries,
	})
}

// CreateCommittee handles POST /committees
func (h *CommitteeHandler) CreateCommittee(w http.ResponseWriter, r *http.Request) {
	var req models.CommitteeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateCommittee(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	committeeID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate committee ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create committee")
		return
	}

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO committee (id, name, abbreviation, topic, description, capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, committeeID, req.Name, req.Abbreviation, req.Topic, req.Description, req.Capacity, now())
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "A committee with that name already exists")
		return
	}
	if err != nil {
		slog.Error("failed to insert committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create committee")
		return
	}

	slog.Info("committee created", "committee_id", committeeID, "name", req.Name)

	committee, err := loadCommittee(r.Context(), h.db, committeeID)
	if err != nil {
		slog.Error("failed to reload committee", "error", err)
		middleware.JSONResponse(w, http.StatusCreated, models.CreatedResponse{ID: committeeID})
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, committee)
}

// UpdateCommittee handles PUT /committees/{id}
func (h *CommitteeHandler) UpdateCommittee(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")

	var req models.CommitteeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateCommittee(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
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

	current, err := loadCommittee(ctx, tx, committeeID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	}
	if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if req.Capacity < current.DelegateCount {
		middleware.ErrorResponse(w, http.StatusConflict, "capacity is below the current number of delegates")
		return
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE committee
		SET name = $1, abbreviation = $2, topic = $3, description = $4, capacity = $5
		WHERE id = $6
	`, req.Name, req.Abbreviation, req.Topic, req.Description, req.Capacity, committeeID)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "A committee with that name already exists")
		return
	}
	if err != nil {
		slog.Error("failed to update committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update committee")
		return
	}

	updated, err := loadCommittee(ctx, tx, committeeID)
	if err != nil {
		slog.Error("failed to reload committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit committee update", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update committee")
		return
	}

	slog.Info("committee updated", "committee_id", committeeID)

	middleware.JSONResponse(w, http.StatusOK, updated)
}

// DeleteCommittee handles DELETE /committees/{id}. Delegates are released,
// not deleted.
func (h *CommitteeHandler) DeleteCommittee(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")
	ctx := r.Context()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rollback(tx)

	// Clear countries first so released delegates keep no stale seat
	_, err = tx.ExecContext(ctx, `
		UPDATE delegate SET committee_id = NULL, country_id = NULL, assigned_at = NULL
		WHERE committee_id = $1
	`, committeeID)
	if err != nil {
		slog.Error("failed to release delegates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete committee")
		return
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM committee WHERE id = $1`, committeeID)
	if err != nil {
		slog.Error("failed to delete committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete committee")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit committee delete", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete committee")
		return
	}

	slog.Info("committee deleted", "committee_id", committeeID)

	w.WriteHeader(http.StatusNoContent)
}

// AssignChair handles PUT /committees/{id}/chair. A null user_id removes
// the chair.
func (h *CommitteeHandler) AssignChair(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")

	var req models.AssignChairRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := r.Context()
	if req.UserID != nil {
		user, err := loadUser(ctx, h.db, *req.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			slog.Error("failed to query user", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if user.Role != models.RoleChair {
			middleware.ErrorResponse(w, http.StatusConflict, "User does not have the chair role")
			return
		}
	}

	result, err := h.db.ExecContext(ctx, `UPDATE committee SET chair_id = $1 WHERE id = $2`, req.UserID, committeeID)
	if err != nil {
		slog.Error("failed to assign chair", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to assign chair")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	}

	slog.Info("committee chair set", "committee_id", committeeID, "chair_id", req.UserID)

	committee, err := loadCommittee(ctx, h.db, committeeID)
	if err != nil {
		slog.Error("failed to reload committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, committee)
}

// ListDelegates handles GET /committees/{id}/delegates
func (h *CommitteeHandler) ListDelegates(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")

	if _, err := committeeChair(r.Context(), h.db, committeeID); errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	} else if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	delegates, err := queryDelegates(r.Context(), h.db, ` WHERE d.committee_id = $1`, committeeID)
	if err != nil {
		slog.Error("failed to query delegates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, delegates)
}

// ListCountries handles GET /committees/{id}/countries
func (h *CommitteeHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")

	if _, err := committeeChair(r.Context(), h.db, committeeID); errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	} else if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	countries, err := loadCommitteeCountries(r.Context(), h.db, committeeID)
	if err != nil {
		slog.Error("failed to query committee countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, countries)
}

// AddCountries handles POST /committees/{id}/countries. Countries already
// in the matrix are ignored.
func (h *CommitteeHandler) AddCountries(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")

	var req models.AddCommitteeCountriesRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.CountryIDs) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "country_ids is required")
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

	if _, err := committeeChair(ctx, tx, committeeID); errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Committee not found")
		return
	} else if err != nil {
		slog.Error("failed to query committee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	for _, countryID := range req.CountryIDs {
		var exists string
		err := tx.QueryRowContext(ctx, `SELECT id FROM country WHERE id = $1`, countryID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Country not found: "+countryID)
			return
		}
		if err != nil {
			slog.Error("failed to query country", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO committee_country (committee_id, country_id) VALUES ($1, $2)
			ON CONFLICT (committee_id, country_id) DO NOTHING
		`, committeeID, countryID)
		if err != nil {
			slog.Error("failed to add committee country", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add countries")
			return
		}
	}

	countries, err := loadCommitteeCountries(ctx, tx, committeeID)
	if err != nil {
		slog.Error("failed to query committee countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit committee countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add countries")
		return
	}

	slog.Info("committee countries added", "committee_id", committeeID, "count", len(req.CountryIDs))

	middleware.JSONResponse(w, http.StatusOK, countries)
}

// RemoveCountry handles DELETE /committees/{id}/countries/{countryId}
func (h *CommitteeHandler) RemoveCountry(w http.ResponseWriter, r *http.Request) {
	committeeID := r.PathValue("id")
	countryID := r.PathValue("countryId")
	ctx := r.Context()

	var taken int
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM delegate WHERE committee_id = $1 AND country_id = $2
	`, committeeID, countryID).Scan(&taken)
	if err != nil {
		slog.Error("failed to query seat", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if taken > 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Country is assigned to a delegate")
		return
	}

	result, err := h.db.ExecContext(ctx, `
		DELETE FROM committee_country WHERE committee_id = $1 AND country_id = $2
	`, committeeID, countryID)
	if err != nil {
		slog.Error("failed to remove committee country", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove country")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Country is not part of this committee")
		return
	}

	slog.Info("committee country removed", "committee_id", committeeID, "country_id", countryID)

	w.WriteHeader(http.StatusNoContent)
}
