// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the munconf API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

The server builds the login limiter itself so it can run the cleanup loop:

	rl := router.NewLoginLimiter(cfg)
	rl.StartCleanup(ctx, time.Minute)
	mux := router.NewRouterWithLimiter(db, cfg, rl)

# Access Levels

Every route is wrapped in request logging. Protected routes also pass
through middleware.RequireAuth:

  - public: no token (registration, login, committee, country and event reads)
  - authed: any valid token; handlers apply committee membership rules
  - chair: chairs and admins (reviews, publication, scores, attendance)
  - admin: admins only (users, allocation, CRUD on reference data, stats)

POST /auth/login is additionally throttled per client IP.

# Endpoints

Operational:

	GET /health  - Liveness probe
	GET /metrics - Prometheus metrics
	GET /        - Banner

Authentication:

	POST /auth/register, POST /auth/login, GET /auth/me, PUT /auth/password

Administration:

	/users, /committees, /countries, /delegates, /events, GET /stats

Committee floor:

	/committees/{id}/blocks, /blocks/{id}/members
	/committees/{id}/documents, /documents/{id}/review, /documents/{id}/votes
	/committees/{id}/scores, /committees/{id}/awards
	/committees/{id}/attendance
*/
package router
