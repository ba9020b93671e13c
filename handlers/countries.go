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
	"github.com/danielhkuo/munconf/db"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type CountryHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewCountryHandler(db *sql.DB, cfg cliparse.Config) *CountryHandler {
	return &CountryHandler{db: db, cfg: cfg}
}

const countryColumns = `id, name, code, importance, created_at`

func scanCountry(row interface{ Scan(...any) error }) (models.Country, error) {
	var c models.Country
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.Importance, &c.CreatedAt)
	return c, err
}

func validateCountry(req *models.CountryRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Importance == 0 {
		req.Importance = 1
	}

	if req.Name == "" {
		return "name is required"
	}
	if !models.ValidCountryCode(req.Code) {
		return "code must be 2 or 3 letters"
	}
	if req.Importance < 1 || req.Importance > 5 {
		return "importance must be between 1 and 5"
	}
	return ""
}

// ListCountries handles GET /countries
func (h *CountryHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT `+countryColumns+` FROM country ORDER BY importance DESC, name
	`)
	if err != nil {
		slog.Error("failed to query countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	countries := []models.Country{}
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			slog.Error("failed to scan country", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate countries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, countries)
}

// GetCountry handles GET /countries/{id}
func (h *CountryHandler) GetCountry(w http.ResponseWriter, r *http.Request) {
	country, err := scanCountry(h.db.QueryRowContext(r.Context(),
		`SELECT `+countryColumns+` FROM country WHERE id = $1`, r.PathValue("id")))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Country not found")
		return
	}
	if err != nil {
		slog.Error("failed to query country", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, country)
}

// CreateCountry handles POST /countries
func (h *CountryHandler) CreateCountry(w http.ResponseWriter, r *http.Request) {
	var req models.CountryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateCountry(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	countryID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate country ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create country")
		return
	}

	country := models.Country{
		ID:         countryID,
		Name:       req.Name,
		Code:       req.Code,
		Importance: req.Importance,
		CreatedAt:  now(),
	}
	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO country (id, name, code, importance, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, country.ID, country.Name, country.Code, country.Importance, country.CreatedAt)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "A country with that name or code already exists")
		return
	}
	if err != nil {
		slog.Error("failed to insert country", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create country")
		return
	}

	slog.Info("country created", "country_id", country.ID, "code", country.Code)

	middleware.JSONResponse(w, http.StatusCreated, country)
}

// UpdateCountry handles PUT /countries/{id}
func (h *CountryHandler) UpdateCountry(w http.ResponseWriter, r *http.Request) {
	countryID := r.PathValue("id")

	var req models.CountryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateCountry(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.db.ExecContext(r.Context(), `
		UPDATE country SET name = $1, code = $2, importance = $3 WHERE id = $4
	`, req.Name, req.Code, req.Importance, countryID)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "A country with that name or code already exists")
		return
	}
	if err != nil {
		slog.Error("failed to update country", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update country")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Country not found")
		return
	}

	slog.Info("country updated", "country_id", countryID)

	h.GetCountry(w, r)
}

// DeleteCountry handles DELETE /countries/{id}. Delegates holding the
// country lose it; committee matrices drop it.
func (h *CountryHandler) DeleteCountry(w http.ResponseWriter, r *http.Request) {
	countryID := r.PathValue("id")

	result, err := h.db.ExecContext(r.Context(), `DELETE FROM country WHERE id = $1`, countryID)
	if err != nil {
		slog.Error("failed to delete country", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete country")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Country not found")
		return
	}

	slog.Info("country deleted", "country_id", countryID)

	w.WriteHeader(http.StatusNoContent)
}
