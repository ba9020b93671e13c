// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/db"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type UserHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewUserHandler(db *sql.DB, cfg cliparse.Config) *UserHandler {
	return &UserHandler{db: db, cfg: cfg}
}

const userColumns = `id, email, password_hash, full_name, institution, role, experience, created_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Institution, &u.Role, &u.Experience, &u.CreatedAt)
	return u, err
}

func loadUser(ctx context.Context, q querier, userID string) (models.User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// validateRegistration checks the fields shared by self-registration and
// admin-created accounts. Returns a client-facing message, or "".
func validateRegistration(req *models.RegisterRequest) string {
	req.Email = auth.NormalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Institution = strings.TrimSpace(req.Institution)

	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return "a valid email is required"
	}
	if req.FullName == "" {
		return "full_name is required"
	}
	if req.Experience < 0 {
		return "experience cannot be negative"
	}
	if len(req.Password) < auth.MinPasswordLen || len(req.Password) > auth.MaxPasswordLen {
		return fmt.Sprintf("password must be %d to %d bytes", auth.MinPasswordLen, auth.MaxPasswordLen)
	}
	return ""
}

// insertUser creates the user row and, for delegates, the matching
// unassigned delegate record. The caller owns the transaction.
func insertUser(ctx context.Context, tx *sql.Tx, req models.RegisterRequest, role string, cost int) (models.User, error) {
	hash, err := auth.HashPassword(req.Password, cost)
	if err != nil {
		return models.User{}, err
	}
	userID, err := auth.GenerateID(16)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to generate user ID: %w", err)
	}

	user := models.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Institution:  req.Institution,
		Role:         role,
		Experience:   req.Experience,
		CreatedAt:    now(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, institution, role, experience, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.PasswordHash, user.FullName, user.Institution, user.Role, user.Experience, user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}

	if role == models.RoleDelegate {
		if err := insertDelegateRecord(ctx, tx, userID); err != nil {
			return models.User{}, err
		}
	}

	return user, nil
}

func insertDelegateRecord(ctx context.Context, q querier, userID string) error {
	delegateID, err := auth.GenerateID(12)
	if err != nil {
		return fmt.Errorf("failed to generate delegate ID: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO delegate (id, user_id, created_at) VALUES ($1, $2, $3)
	`, delegateID, userID, now())
	return err
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && !auth.ValidRole(role) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid role filter")
		return
	}

	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, role)
	}
	query += ` ORDER BY full_name, id`

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		slog.Error("failed to query users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			slog.Error("failed to scan user", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, users)
}

// GetUser handles GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := loadUser(r.Context(), h.db, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, user)
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if !auth.ValidRole(req.Role) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "role must be admin, chair or delegate")
		return
	}
	if msg := validateRegistration(&req.RegisterRequest); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rollback(tx)

	user, err := insertUser(r.Context(), tx, req.RegisterRequest, req.Role, h.cfg.BcryptCost)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		slog.Error("failed to insert user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	slog.Info("user created", "user_id", user.ID, "role", user.Role)

	middleware.JSONResponse(w, http.StatusCreated, user)
}

// UpdateRole handles PUT /users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req models.UpdateRoleRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !auth.ValidRole(req.Role) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "role must be admin, chair or delegate")
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

	user, err := loadUser(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if user.Role == req.Role {
		middleware.JSONResponse(w, http.StatusOK, user)
		return
	}

	if user.Role == models.RoleChair {
		var chaired int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM committee WHERE chair_id = $1`, userID).Scan(&chaired)
		if err != nil {
			slog.Error("failed to count chaired committees", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if chaired > 0 {
			middleware.ErrorResponse(w, http.StatusConflict, "User still chairs a committee")
			return
		}
	}

	if user.Role == models.RoleDelegate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM delegate WHERE user_id = $1`, userID); err != nil {
			slog.Error("failed to delete delegate record", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update role")
			return
		}
	}
	if req.Role == models.RoleDelegate {
		if err := insertDelegateRecord(ctx, tx, userID); err != nil {
			slog.Error("failed to insert delegate record", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update role")
			return
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, req.Role, userID); err != nil {
		slog.Error("failed to update role", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit role change", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	slog.Info("user role changed", "user_id", userID, "from", user.Role, "to", req.Role)

	user.Role = req.Role
	middleware.JSONResponse(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := session(w, r)
	if !ok {
		return
	}

	userID := r.PathValue("id")
	if userID == claims.UserID() {
		middleware.ErrorResponse(w, http.StatusConflict, "You cannot delete your own account")
		return
	}

	result, err := h.db.ExecContext(r.Context(), `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		slog.Error("failed to delete user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}

	slog.Info("user deleted", "user_id", userID)

	w.WriteHeader(http.StatusNoContent)
}
