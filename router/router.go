// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/db"
	"github.com/danielhkuo/munconf/handlers"
	"github.com/danielhkuo/munconf/metrics"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
)

// LimiterIdle is how long a client's login limiter survives without use
const LimiterIdle = 10 * time.Minute

// NewLoginLimiter builds the per-IP limiter guarding POST /auth/login
func NewLoginLimiter(cfg cliparse.Config) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst, LimiterIdle)
	rl.TrustProxy = cfg.TrustProxy
	rl.OnLimited = func(r *http.Request) { metrics.RecordLogin("limited") }
	return rl
}

// NewRouter registers every route with a fresh login limiter
func NewRouter(conn *sql.DB, cfg cliparse.Config) *http.ServeMux {
	return NewRouterWithLimiter(conn, cfg, NewLoginLimiter(cfg))
}

// NewRouterWithLimiter registers every route, throttling logins with rl.
// The caller owns rl and its cleanup loop.
func NewRouterWithLimiter(conn *sql.DB, cfg cliparse.Config, rl *middleware.RateLimiter) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(conn, cfg)
	userHandler := handlers.NewUserHandler(conn, cfg)
	committeeHandler := handlers.NewCommitteeHandler(conn, cfg)
	countryHandler := handlers.NewCountryHandler(conn, cfg)
	delegateHandler := handlers.NewDelegateHandler(conn, cfg)
	allocationHandler := handlers.NewAllocationHandler(conn, cfg)
	blockHandler := handlers.NewBlockHandler(conn, cfg)
	documentHandler := handlers.NewDocumentHandler(conn, cfg)
	voteHandler := handlers.NewVoteHandler(conn, cfg)
	scoreHandler := handlers.NewScoreHandler(conn, cfg)
	attendanceHandler := handlers.NewAttendanceHandler(conn, cfg)
	eventHandler := handlers.NewEventHandler(conn, cfg)
	statsHandler := handlers.NewStatsHandler(conn, cfg)

	// Roles come from the database so demotions and deletions apply at once
	roleOf := func(ctx context.Context, userID string) (string, error) {
		return db.UserRole(ctx, conn, userID)
	}

	public := middleware.WithLogging
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAuth(cfg.JWTSecret, roleOf)(h))
	}
	chair := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAuth(cfg.JWTSecret, roleOf, models.RoleChair)(h))
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAuth(cfg.JWTSecret, roleOf, models.RoleAdmin)(h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Authentication
	mux.HandleFunc("POST /auth/register", public(authHandler.Register))
	mux.HandleFunc("POST /auth/login", public(rl.Limit(authHandler.Login)))
	mux.HandleFunc("GET /auth/me", authed(authHandler.Me))
	mux.HandleFunc("PUT /auth/password", authed(authHandler.ChangePassword))

	// Users (admin)
	mux.HandleFunc("GET /users", admin(userHandler.ListUsers))
	mux.HandleFunc("POST /users", admin(userHandler.CreateUser))
	mux.HandleFunc("GET /users/{id}", admin(userHandler.GetUser))
	mux.HandleFunc("PUT /users/{id}/role", admin(userHandler.UpdateRole))
	mux.HandleFunc("DELETE /users/{id}", admin(userHandler.DeleteUser))

	// Committees and their country matrix
	mux.HandleFunc("GET /committees", public(committeeHandler.ListCommittees))
	mux.HandleFunc("POST /committees", admin(committeeHandler.CreateCommittee))
	mux.HandleFunc("GET /committees/{id}", public(committeeHandler.GetCommittee))
	mux.HandleFunc("PUT /committees/{id}", admin(committeeHandler.UpdateCommittee))
	mux.HandleFunc("DELETE /committees/{id}", admin(committeeHandler.DeleteCommittee))
	mux.HandleFunc("PUT /committees/{id}/chair", admin(committeeHandler.AssignChair))
	mux.HandleFunc("GET /committees/{id}/delegates", authed(committeeHandler.ListDelegates))
	mux.HandleFunc("GET /committees/{id}/countries", public(committeeHandler.ListCountries))
	mux.HandleFunc("POST /committees/{id}/countries", admin(committeeHandler.AddCountries))
	mux.HandleFunc("DELETE /committees/{id}/countries/{countryId}", admin(committeeHandler.RemoveCountry))
	mux.HandleFunc("POST /committees/{id}/allocate", admin(allocationHandler.AllocateCommittee))

	// Countries
	mux.HandleFunc("GET /countries", public(countryHandler.ListCountries))
	mux.HandleFunc("POST /countries", admin(countryHandler.CreateCountry))
	mux.HandleFunc("GET /countries/{id}", public(countryHandler.GetCountry))
	mux.HandleFunc("PUT /countries/{id}", admin(countryHandler.UpdateCountry))
	mux.HandleFunc("DELETE /countries/{id}", admin(countryHandler.DeleteCountry))

	// Delegates
	mux.HandleFunc("GET /delegates", chair(delegateHandler.ListDelegates))
	mux.HandleFunc("POST /delegates", admin(delegateHandler.CreateDelegate))
	mux.HandleFunc("GET /delegates/me", authed(delegateHandler.GetMe))
	mux.HandleFunc("GET /delegates/{id}", authed(delegateHandler.GetDelegate))
	mux.HandleFunc("DELETE /delegates/{id}", admin(delegateHandler.DeleteDelegate))
	mux.HandleFunc("PUT /delegates/{id}/committee", admin(delegateHandler.AssignCommittee))
	mux.HandleFunc("PUT /delegates/{id}/country", admin(delegateHandler.AssignCountry))
	mux.HandleFunc("DELETE /delegates/{id}/assignment", admin(delegateHandler.ClearAssignment))
	mux.HandleFunc("POST /delegates/{id}/allocate", admin(allocationHandler.AllocateDelegate))

	// Blocks
	mux.HandleFunc("GET /committees/{id}/blocks", authed(blockHandler.ListBlocks))
	mux.HandleFunc("POST /committees/{id}/blocks", authed(blockHandler.CreateBlock))
	mux.HandleFunc("POST /blocks/{id}/members", authed(blockHandler.AddMember))
	mux.HandleFunc("DELETE /blocks/{id}/members/{delegateId}", authed(blockHandler.RemoveMember))
	mux.HandleFunc("DELETE /blocks/{id}", authed(blockHandler.DeleteBlock))

	// Documents and voting
	mux.HandleFunc("POST /committees/{id}/documents", authed(documentHandler.SubmitDocument))
	mux.HandleFunc("GET /committees/{id}/documents", authed(documentHandler.ListDocuments))
	mux.HandleFunc("GET /documents/{id}", authed(documentHandler.GetDocument))
	mux.HandleFunc("PUT /documents/{id}/review", chair(documentHandler.ReviewDocument))
	mux.HandleFunc("DELETE /documents/{id}", authed(documentHandler.DeleteDocument))
	mux.HandleFunc("POST /documents/{id}/votes", authed(voteHandler.CastVote))
	mux.HandleFunc("GET /documents/{id}/votes", authed(voteHandler.GetVotes))
	mux.HandleFunc("POST /documents/{id}/publish", chair(voteHandler.Publish))

	// Scoring, awards and attendance
	mux.HandleFunc("POST /committees/{id}/scores", chair(scoreHandler.CreateScore))
	mux.HandleFunc("GET /committees/{id}/scores", authed(scoreHandler.ListScores))
	mux.HandleFunc("GET /committees/{id}/awards", chair(scoreHandler.GetAwards))
	mux.HandleFunc("PUT /committees/{id}/attendance", chair(attendanceHandler.RecordAttendance))
	mux.HandleFunc("GET /committees/{id}/attendance", chair(attendanceHandler.GetRollCall))
	mux.HandleFunc("GET /committees/{id}/attendance/summary", chair(attendanceHandler.GetSummary))

	// Events
	mux.HandleFunc("GET /events", public(eventHandler.ListEvents))
	mux.HandleFunc("POST /events", admin(eventHandler.CreateEvent))
	mux.HandleFunc("GET /events/{id}", public(eventHandler.GetEvent))
	mux.HandleFunc("PUT /events/{id}", admin(eventHandler.UpdateEvent))
	mux.HandleFunc("DELETE /events/{id}", admin(eventHandler.DeleteEvent))

	mux.HandleFunc("GET /stats", admin(statsHandler.GetStats))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("munconf API v1"))
	})

	return mux
}
