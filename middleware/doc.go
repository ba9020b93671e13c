// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start and completion with status, duration_ms and the
request ID assigned by WithRequestID.

# Authentication

RequireAuth validates the bearer token, reloads the caller's role through
a RoleLookup and optionally restricts roles:

	chairOnly := middleware.RequireAuth(cfg.JWTSecret, roleOf, models.RoleChair)
	mux.HandleFunc("POST /committees/{id}/scores", chairOnly(h.CreateScore))

Admins pass every role check. Handlers read the session with
ClaimsFromContext.

# Rate Limiting

RateLimiter keeps a token bucket per client IP:

	rl := middleware.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst, 10*time.Minute)
	rl.StartCleanup(ctx, time.Minute)
	mux.HandleFunc("POST /auth/login", rl.Limit(h.Login))

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(cfg.CORSOrigins)(mux),
	}

An empty origin list allows every origin. Allowed headers are
Content-Type, Authorization and X-Request-ID.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

ParseJSONBody caps bodies at MaxBodyBytes and rejects unknown fields.

# Client IP Extraction

	ip := middleware.GetClientIP(r, cfg.TrustProxy)

X-Forwarded-For and X-Real-IP are honored only when trustProxy is set;
otherwise the socket address is used. Used as the rate limit key.
*/
package middleware
