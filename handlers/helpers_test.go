// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/munconf/models"
	"github.com/danielhkuo/munconf/testutil"
)

// serve runs a handler against a request with path values and a session
func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// committeeFixture is a committee with a chair, a small country matrix
// and three delegates with distinct experience
type committeeFixture struct {
	CommitteeID string
	ChairID     string
	AdminID     string
	Countries   map[string]string // code -> id
	Delegates   []string          // delegate IDs, most experienced first
	Users       []string          // matching user IDs
}

func newCommitteeFixture(t *testing.T, db *sql.DB) committeeFixture {
	t.Helper()

	f := committeeFixture{Countries: map[string]string{}}
	f.CommitteeID = testutil.CreateTestCommittee(t, db, "Security Council", 5)
	f.ChairID = testutil.CreateTestUser(t, db, models.RoleChair, "chair@mun.test")
	f.AdminID = testutil.CreateTestUser(t, db, models.RoleAdmin, "admin@mun.test")
	testutil.SetTestChair(t, db, f.CommitteeID, f.ChairID)

	for _, c := range []struct {
		name, code string
		importance int
	}{
		{"United States", "USA", 5},
		{"France", "FRA", 5},
		{"Brazil", "BRA", 3},
		{"Kenya", "KEN", 2},
	} {
		id := testutil.CreateTestCountry(t, db, c.name, c.code, c.importance)
		testutil.AddTestSeat(t, db, f.CommitteeID, id)
		f.Countries[c.code] = id
	}

	for i, email := range []string{"ada@mun.test", "ben@mun.test", "cy@mun.test"} {
		delegateID, userID := testutil.CreateTestDelegate(t, db, email, 6-2*i, f.CommitteeID)
		f.Delegates = append(f.Delegates, delegateID)
		f.Users = append(f.Users, userID)
	}

	return f
}

// asChair, asAdmin and asDelegate attach a session for the fixture's people
func (f committeeFixture) asChair(req *http.Request) *http.Request {
	return testutil.WithSession(req, f.ChairID, models.RoleChair)
}

func (f committeeFixture) asAdmin(req *http.Request) *http.Request {
	return testutil.WithSession(req, f.AdminID, models.RoleAdmin)
}

func (f committeeFixture) asDelegate(i int, req *http.Request) *http.Request {
	return testutil.WithSession(req, f.Users[i], models.RoleDelegate)
}
