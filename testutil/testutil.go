// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/cliparse"
	"github.com/danielhkuo/munconf/db"
	"github.com/danielhkuo/munconf/middleware"
	"github.com/danielhkuo/munconf/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every user created by CreateTestUser
const TestPassword = "correct-horse-battery"

// SetupTestDB opens a fresh in-memory SQLite database with the full schema.
// The connection is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  ":memory:",
		DatabaseType: db.TypeSQLite,
		JWTSecret:    "test-secret-at-least-16-bytes",
		TokenTTL:     time.Hour,
		BcryptCost:   bcrypt.MinCost,
		LoginRPS:     1000,
		LoginBurst:   1000,
		LogFormat:    "text",
		LogLevel:     "info",
	}
}

func newID(t *testing.T) string {
	t.Helper()
	id, err := auth.GenerateID(12)
	if err != nil {
		t.Fatalf("Failed to generate ID: %v", err)
	}
	return id
}

// CreateTestUser inserts a user with TestPassword and returns its ID.
// Delegate users do not get a delegate record; use CreateTestDelegate.
func CreateTestUser(t *testing.T, conn *sql.DB, role, email string) string {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	userID := newID(t)
	_, err = conn.Exec(`
		INSERT INTO users (id, email, password_hash, full_name, institution, role, experience, created_at)
		VALUES ($1, $2, $3, $4, 'Test School', $5, 0, $6)
	`, userID, email, hash, "User "+email, role, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}

// TokenFor issues a session token for the given user
func TokenFor(t *testing.T, cfg cliparse.Config, userID, role string) string {
	t.Helper()

	token, err := auth.IssueToken(cfg.JWTSecret, userID, role, cfg.TokenTTL)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// WithSession attaches claims to a request as RequireAuth would, so
// handlers can be called directly
func WithSession(req *http.Request, userID, role string) *http.Request {
	claims := &auth.Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID, Issuer: auth.Issuer},
	}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

// Bearer builds the Authorization header map for MakeRequest
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// CreateTestCommittee inserts a committee and returns its ID
func CreateTestCommittee(t *testing.T, conn *sql.DB, name string, capacity int) string {
	t.Helper()

	committeeID := newID(t)
	_, err := conn.Exec(`
		INSERT INTO committee (id, name, abbreviation, topic, description, capacity, created_at)
		VALUES ($1, $2, '', 'Test Topic', '', $3, $4)
	`, committeeID, name, capacity, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test committee: %v", err)
	}

	return committeeID
}

// SetTestChair makes userID the chair of committeeID
func SetTestChair(t *testing.T, conn *sql.DB, committeeID, userID string) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE committee SET chair_id = $1 WHERE id = $2`, userID, committeeID); err != nil {
		t.Fatalf("Failed to set test chair: %v", err)
	}
}

// CreateTestCountry inserts a country and returns its ID
func CreateTestCountry(t *testing.T, conn *sql.DB, name, code string, importance int) string {
	t.Helper()

	countryID := newID(t)
	_, err := conn.Exec(`
		INSERT INTO country (id, name, code, importance, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, countryID, name, code, importance, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test country: %v", err)
	}

	return countryID
}

// AddTestSeat adds a country to a committee's matrix
func AddTestSeat(t *testing.T, conn *sql.DB, committeeID, countryID string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO committee_country (committee_id, country_id) VALUES ($1, $2)
	`, committeeID, countryID)
	if err != nil {
		t.Fatalf("Failed to add test seat: %v", err)
	}
}

// CreateTestDelegate creates a delegate user plus its delegate record and
// returns both IDs. An empty committeeID leaves the delegate unassigned.
func CreateTestDelegate(t *testing.T, conn *sql.DB, email string, experience int, committeeID string) (delegateID, userID string) {
	t.Helper()

	userID = CreateTestUser(t, conn, models.RoleDelegate, email)
	if _, err := conn.Exec(`UPDATE users SET experience = $1 WHERE id = $2`, experience, userID); err != nil {
		t.Fatalf("Failed to set experience: %v", err)
	}

	var committee *string
	if committeeID != "" {
		committee = &committeeID
	}

	delegateID = newID(t)
	_, err := conn.Exec(`
		INSERT INTO delegate (id, user_id, committee_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, delegateID, userID, committee, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test delegate: %v", err)
	}

	return delegateID, userID
}

// AssignTestCountry gives a delegate a country directly
func AssignTestCountry(t *testing.T, conn *sql.DB, delegateID, countryID string) {
	t.Helper()

	_, err := conn.Exec(`
		UPDATE delegate SET country_id = $1, assigned_at = $2 WHERE id = $3
	`, countryID, time.Now().UTC(), delegateID)
	if err != nil {
		t.Fatalf("Failed to assign test country: %v", err)
	}
}

// CreateTestDocument inserts a document with the given kind and status
func CreateTestDocument(t *testing.T, conn *sql.DB, committeeID, authorID, kind, status string) string {
	t.Helper()

	documentID := newID(t)
	_, err := conn.Exec(`
		INSERT INTO document (id, committee_id, author_id, kind, title, body, status, submitted_at)
		VALUES ($1, $2, $3, $4, 'Test Document', 'Operative clauses...', $5, $6)
	`, documentID, committeeID, authorID, kind, status, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test document: %v", err)
	}

	return documentID
}

// CastTestVote records a vote directly
func CastTestVote(t *testing.T, conn *sql.DB, documentID, delegateID, position string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO vote (document_id, delegate_id, position, cast_at) VALUES ($1, $2, $3, $4)
	`, documentID, delegateID, position, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to cast test vote: %v", err)
	}
}

// AddTestScore records a score directly
func AddTestScore(t *testing.T, conn *sql.DB, committeeID, delegateID, chairID string, points float64) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO score (id, committee_id, delegate_id, chair_id, category, session, points, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, '', $7)
	`, newID(t), committeeID, delegateID, chairID, models.CategorySpeech, points, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to add test score: %v", err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
