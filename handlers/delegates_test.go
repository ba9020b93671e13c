// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/danielhkuo/munconf/models"
	"github.com/danielhkuo/munconf/testutil"
)

func TestListDelegates_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewDelegateHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	testutil.CreateTestDelegate(t, db, "free@mun.test", 1, "")
	testutil.AssignTestCountry(t, db, f.Delegates[0], f.Countries["USA"])

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{"all", "", http.StatusOK, 4},
		{"by committee", "?committee_id=" + f.CommitteeID, http.StatusOK, 3},
		{"without country", "?unassigned=true", http.StatusOK, 3},
		{"with country", "?unassigned=false", http.StatusOK, 1},
		{"bad flag", "?unassigned=maybe", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(handler.ListDelegates, testutil.MakeRequest("GET", "/delegates"+tt.query, nil, nil))
			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var delegates []models.Delegate
			testutil.AssertJSON(t, w, &delegates)
			if len(delegates) != tt.expectedCount {
				t.Errorf("Expected %d delegates, got %d", tt.expectedCount, len(delegates))
			}
		})
	}
}

func TestGetMe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewDelegateHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	testutil.AssignTestCountry(t, db, f.Delegates[1], f.Countries["BRA"])

	w := serve(handler.GetMe, f.asDelegate(1, testutil.MakeRequest("GET", "/delegates/me", nil, nil)))
	testutil.AssertStatus(t, w, http.StatusOK)

	var d models.Delegate
	testutil.AssertJSON(t, w, &d)
	if d.ID != f.Delegates[1] {
		t.Errorf("Expected delegate %s, got %s", f.Delegates[1], d.ID)
	}
	if d.CountryName == nil || *d.CountryName != "Brazil" {
		t.Errorf("Expected Brazil, got %v", d.CountryName)
	}

	w = serve(handler.GetMe, f.asChair(testutil.MakeRequest("GET", "/delegates/me", nil, nil)))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestAssignCommittee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewDelegateHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	small := testutil.CreateTestCommittee(t, db, "Small Committee", 1)
	newcomer, _ := testutil.CreateTestDelegate(t, db, "new@mun.test", 1, "")

	assign := func(delegateID, committeeID string) int {
		req := testutil.MakeRequest("PUT", "/", models.AssignCommitteeRequest{CommitteeID: committeeID}, nil)
		req.SetPathValue("id", delegateID)
		return serve(handler.AssignCommittee, req).Code
	}

	t.Run("moving clears the country", func(t *testing.T) {
		testutil.AssignTestCountry(t, db, f.Delegates[0], f.Countries["USA"])
		if code := assign(f.Delegates[0], small); code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		var country *string
		db.QueryRow("SELECT country_id FROM delegate WHERE id = $1", f.Delegates[0]).Scan(&country)
		if country != nil {
			t.Errorf("Expected country cleared, got %s", *country)
		}
	})

	t.Run("full committee", func(t *testing.T) {
		if code := assign(newcomer, small); code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", code)
		}
	})

	t.Run("same committee is a no-op", func(t *testing.T) {
		if code := assign(f.Delegates[0], small); code != http.StatusOK {
			t.Errorf("Expected 200, got %d", code)
		}
	})

	t.Run("unknown committee", func(t *testing.T) {
		if code := assign(newcomer, "missing"); code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", code)
		}
	})

	t.Run("unknown delegate", func(t *testing.T) {
		if code := assign("missing", f.CommitteeID); code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", code)
		}
	})
}

func TestAssignCountry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewDelegateHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	outside := testutil.CreateTestCountry(t, db, "Iceland", "ISL", 1)
	unplaced, _ := testutil.CreateTestDelegate(t, db, "new@mun.test", 1, "")

	assign := func(delegateID, countryID string) int {
		req := testutil.MakeRequest("PUT", "/", models.AssignCountryRequest{CountryID: countryID}, nil)
		req.SetPathValue("id", delegateID)
		return serve(handler.AssignCountry, req).Code
	}

	tests := []struct {
		name           string
		delegateID     string
		countryID      string
		expectedStatus int
	}{
		{"free seat", f.Delegates[0], f.Countries["USA"], http.StatusOK},
		{"same seat again", f.Delegates[0], f.Countries["USA"], http.StatusOK},
		{"taken seat", f.Delegates[1], f.Countries["USA"], http.StatusConflict},
		{"country outside the matrix", f.Delegates[1], outside, http.StatusConflict},
		{"delegate without committee", unplaced, f.Countries["KEN"], http.StatusConflict},
		{"switch seat", f.Delegates[0], f.Countries["KEN"], http.StatusOK},
		{"released seat is free", f.Delegates[1], f.Countries["USA"], http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := assign(tt.delegateID, tt.countryID); code != tt.expectedStatus {
				t.Errorf("Expected %d, got %d", tt.expectedStatus, code)
			}
		})
	}
}

func TestClearAssignment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewDelegateHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	testutil.AssignTestCountry(t, db, f.Delegates[2], f.Countries["KEN"])

	req := testutil.MakeRequest("DELETE", "/", nil, nil)
	req.SetPathValue("id", f.Delegates[2])
	w := serve(handler.ClearAssignment, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var d models.Delegate
	testutil.AssertJSON(t, w, &d)
	if d.CommitteeID != nil || d.CountryID != nil || d.AssignedAt != nil {
		t.Errorf("Expected a cleared delegate, got %+v", d)
	}

	missing := testutil.MakeRequest("DELETE", "/", nil, nil)
	missing.SetPathValue("id", "nobody")
	testutil.AssertStatus(t, serve(handler.ClearAssignment, missing), http.StatusNotFound)
}
