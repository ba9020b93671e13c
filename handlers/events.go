// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type EventHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewEventHandler(db *sql.DB, cfg cliparse.Config) *EventHandler {
	return &EventHandler{db: db, cfg: cfg}
}

const eventColumns = `id, title, description, location, committee_id, starts_at, ends_at, created_at`

func scanEvent(row interface{ Scan(...any) error }) (models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.CommitteeID, &e.StartsAt, &e.EndsAt, &e.CreatedAt)
	if err == nil {
		e.StartsHuman = humanize.Time(e.StartsAt)
	}
	return e, err
}

// eventTimes parses and checks the schedule of an event request
func eventTimes(req *models.EventRequest) (time.Time, time.Time, string) {
	starts, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return time.Time{}, time.Time{}, "starts_at must be an RFC 3339 timestamp"
	}
	ends, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return time.Time{}, time.Time{}, "ends_at must be an RFC 3339 timestamp"
	}
	if !ends.After(starts) {
		return time.Time{}, time.Time{}, "ends_at must be after starts_at"
	}
	return starts.UTC(), ends.UTC(), ""
}

// validateEvent checks an event request and that its committee exists
func (h *EventHandler) validateEvent(w http.ResponseWriter, r *http.Request, req *models.EventRequest) (time.Time, time.Time, bool) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return time.Time{}, time.Time{}, false
	}
	starts, ends, msg := eventTimes(req)
	if msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return time.Time{}, time.Time{}, false
	}

	if req.CommitteeID != nil {
		_, err := committeeChair(r.Context(), h.db, *req.CommitteeID)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "committee_id does not exist")
			return time.Time{}, time.Time{}, false
		}
		if err != nil {
			slog.Error("failed to query committee", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return time.Time{}, time.Time{}, false
		}
	}
	return starts, ends, true
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	query := `SELECT ` + eventColumns + ` FROM event`
	var args []any
	if committeeID := r.URL.Query().Get("committee_id"); committeeID != "" {
		query += ` WHERE committee_id = $1`
		args = append(args, committeeID)
	}
	query += ` ORDER BY starts_at, id`

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		slog.Error("failed to query events", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			slog.Error("failed to scan event", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate events", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := scanEvent(h.db.QueryRowContext(r.Context(),
		`SELECT `+eventColumns+` FROM event WHERE id = $1`, r.PathValue("id")))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		slog.Error("failed to query event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, event)
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.EventRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	starts, ends, ok := h.validateEvent(w, r, &req)
	if !ok {
		return
	}

	eventID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate event ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create event")
		return
	}

	event := models.Event{
		ID:          eventID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		CommitteeID: req.CommitteeID,
		StartsAt:    starts,
		EndsAt:      ends,
		StartsHuman: humanize.Time(starts),
		CreatedAt:   now(),
	}
	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO event (id, title, description, location, committee_id, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.Title, event.Description, event.Location, event.CommitteeID, event.StartsAt, event.EndsAt, event.CreatedAt)
	if err != nil {
		slog.Error("failed to insert event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create event")
		return
	}

	slog.Info("event created", "event_id", event.ID, "starts_at", event.StartsAt)

	middleware.JSONResponse(w, http.StatusCreated, event)
}

// UpdateEvent handles PUT /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	var req models.EventRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	starts, ends, ok := h.validateEvent(w, r, &req)
	if !ok {
		return
	}

	result, err := h.db.ExecContext(r.Context(), `
		UPDATE event
		SET title = $1, description = $2, location = $3, committee_id = $4, starts_at = $5, ends_at = $6
		WHERE id = $7
	`, req.Title, req.Description, req.Location, req.CommitteeID, starts, ends, eventID)
	if err != nil {
		slog.Error("failed to update event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update event")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Event not found")
		return
	}

	slog.Info("event updated", "event_id", eventID)

	h.GetEvent(w, r)
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	result, err := h.db.ExecContext(r.Context(), `DELETE FROM event WHERE id = $1`, eventID)
	if err != nil {
		slog.Error("failed to delete event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete event")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Event not found")
		return
	}

	slog.Info("event deleted", "event_id", eventID)

	w.WriteHeader(http.StatusNoContent)
}
