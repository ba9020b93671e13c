// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

type StatsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewStatsHandler(db *sql.DB, cfg cliparse.Config) *StatsHandler {
	return &StatsHandler{db: db, cfg: cfg}
}

func countRows(ctx context.Context, q querier, query string, dst *int) error {
	if err := q.QueryRowContext(ctx, query).Scan(dst); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	return nil
}

func countGrouped(ctx context.Context, q querier, query string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("grouped count failed: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// CollectStats gathers the conference overview. The counts are independent
// so they run concurrently.
func CollectStats(ctx context.Context, q querier) (models.StatsResponse, error) {
	var stats models.StatsResponse
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		stats.UsersByRole, err = countGrouped(ctx, q, `SELECT role, COUNT(*) FROM users GROUP BY role`)
		return err
	})
	g.Go(func() error {
		return countRows(ctx, q, `SELECT COUNT(*) FROM committee`, &stats.Committees)
	})
	g.Go(func() error {
		return countRows(ctx, q, `SELECT COUNT(*) FROM country`, &stats.Countries)
	})
	g.Go(func() error {
		return countRows(ctx, q, `SELECT COUNT(*) FROM delegate WHERE country_id IS NOT NULL`, &stats.DelegatesAssigned)
	})
	g.Go(func() error {
		return countRows(ctx, q, `SELECT COUNT(*) FROM delegate WHERE country_id IS NULL`, &stats.DelegatesUnassigned)
	})
	g.Go(func() error {
		var err error
		stats.DocumentsByStatus, err = countGrouped(ctx, q, `SELECT status, COUNT(*) FROM document GROUP BY status`)
		return err
	})
	g.Go(func() error {
		return countRows(ctx, q, `SELECT COUNT(*) FROM vote`, &stats.Votes)
	})

	if err := g.Wait(); err != nil {
		return models.StatsResponse{}, err
	}
	return stats, nil
}

// GetStats handles GET /stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := CollectStats(r.Context(), h.db)
	if err != nil {
		slog.Error("failed to collect stats", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, stats)
}
