// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/danielhkuo/munconf/models"
	"github.com/danielhkuo/munconf/testutil"
)

func TestCreateCommittee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewCommitteeHandler(db, testutil.GetTestConfig())

	tests := []struct {
		name           string
		body           models.CommitteeRequest
		expectedStatus int
	}{
		{"valid", models.CommitteeRequest{Name: "Human Rights Council", Abbreviation: "hrc", Capacity: 20}, http.StatusCreated},
		{"duplicate name", models.CommitteeRequest{Name: "Human Rights Council", Capacity: 10}, http.StatusConflict},
		{"missing name", models.CommitteeRequest{Name: "  ", Capacity: 10}, http.StatusBadRequest},
		{"zero capacity", models.CommitteeRequest{Name: "WHO", Capacity: 0}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(handler.CreateCommittee, testutil.MakeRequest("POST", "/committees", tt.body, nil))
			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusCreated {
				var c models.Committee
				testutil.AssertJSON(t, w, &c)
				if c.Abbreviation != "HRC" || c.DelegateCount != 0 {
					t.Errorf("Unexpected committee: %+v", c)
				}
			}
		})
	}
}

func TestGetCommittee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewCommitteeHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	testutil.AssignTestCountry(t, db, f.Delegates[0], f.Countries["USA"])

	req := testutil.MakeRequest("GET", "/committees/"+f.CommitteeID, nil, nil)
	req.SetPathValue("id", f.CommitteeID)
	w := serve(handler.GetCommittee, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CommitteeWithCountries
	testutil.AssertJSON(t, w, &resp)
	if resp.Committee.DelegateCount != 3 {
		t.Errorf("Expected 3 delegates, got %d", resp.Committee.DelegateCount)
	}
	if resp.Committee.ChairName == nil || *resp.Committee.ChairName != "User chair@mun.test" {
		t.Errorf("Expected chair name, got %v", resp.Committee.ChairName)
	}
	if len(resp.Countries) != 4 {
		t.Fatalf("Expected 4 countries, got %d", len(resp.Countries))
	}
	taken := 0
	for _, c := range resp.Countries {
		if c.Taken {
			taken++
			if c.Code != "USA" {
				t.Errorf("Expected only USA taken, got %s", c.Code)
			}
		}
	}
	if taken != 1 {
		t.Errorf("Expected 1 taken seat, got %d", taken)
	}

	missing := testutil.MakeRequest("GET", "/committees/nope", nil, nil)
	missing.SetPathValue("id", "nope")
	testutil.AssertStatus(t, serve(handler.GetCommittee, missing), http.StatusNotFound)
}

func TestUpdateCommittee_CapacityBelowDelegates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewCommitteeHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)

	update := func(capacity int) int {
		body := models.CommitteeRequest{Name: "Security Council", Capacity: capacity}
		req := testutil.MakeRequest("PUT", "/committees/"+f.CommitteeID, body, nil)
		req.SetPathValue("id", f.CommitteeID)
		return serve(handler.UpdateCommittee, req).Code
	}

	if code := update(2); code != http.StatusConflict {
		t.Errorf("Expected 409 shrinking below 3 delegates, got %d", code)
	}
	if code := update(3); code != http.StatusOK {
		t.Errorf("Expected 200 at exactly 3, got %d", code)
	}
}

func TestDeleteCommittee_ReleasesDelegates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewCommitteeHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	testutil.AssignTestCountry(t, db, f.Delegates[0], f.Countries["FRA"])

	req := testutil.MakeRequest("DELETE", "/committees/"+f.CommitteeID, nil, nil)
	req.SetPathValue("id", f.CommitteeID)
	testutil.AssertStatus(t, serve(handler.DeleteCommittee, req), http.StatusNoContent)

	var remaining int
	db.QueryRow("SELECT COUNT(*) FROM delegate").Scan(&remaining)
	if remaining != 3 {
		t.Errorf("Expected delegates to survive, got %d", remaining)
	}

	var seated int
	db.QueryRow("SELECT COUNT(*) FROM delegate WHERE committee_id IS NOT NULL OR country_id IS NOT NULL").Scan(&seated)
	if seated != 0 {
		t.Errorf("Expected all delegates released, %d still seated", seated)
	}

	again := testutil.MakeRequest("DELETE", "/committees/"+f.CommitteeID, nil, nil)
	again.SetPathValue("id", f.CommitteeID)
	testutil.AssertStatus(t, serve(handler.DeleteCommittee, again), http.StatusNotFound)
}

func TestAssignChair(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewCommitteeHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	newChair := testutil.CreateTestUser(t, db, models.RoleChair, "second@mun.test")

	tests := []struct {
		name           string
		userID         *string
		expectedStatus int
	}{
		{"chair role", &newChair, http.StatusOK},
		{"delegate role", &f.Users[0], http.StatusConflict},
		{"unknown user", stringPtr("ghost"), http.StatusNotFound},
		{"clear chair", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("PUT", "/committees/"+f.CommitteeID+"/chair", models.AssignChairRequest{UserID: tt.userID}, nil)
			req.SetPathValue("id", f.CommitteeID)
			w := serve(handler.AssignChair, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusOK {
				var c models.Committee
				testutil.AssertJSON(t, w, &c)
				if (tt.userID == nil) != (c.ChairID == nil) {
					t.Errorf("chair_id = %v, want %v", c.ChairID, tt.userID)
				}
			}
		})
	}
}

func TestCommitteeCountryMatrix(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewCommitteeHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	chn := testutil.CreateTestCountry(t, db, "China", "CHN", 5)
	testutil.AssignTestCountry(t, db, f.Delegates[0], f.Countries["USA"])

	t.Run("add is idempotent", func(t *testing.T) {
		body := models.AddCommitteeCountriesRequest{CountryIDs: []string{chn, f.Countries["USA"]}}
		req := testutil.MakeRequest("POST", "/", body, nil)
		req.SetPathValue("id", f.CommitteeID)
		w := serve(handler.AddCountries, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var countries []models.CommitteeCountry
		testutil.AssertJSON(t, w, &countries)
		if len(countries) != 5 {
			t.Errorf("Expected 5 countries, got %d", len(countries))
		}
	})

	t.Run("unknown country", func(t *testing.T) {
		body := models.AddCommitteeCountriesRequest{CountryIDs: []string{"atlantis"}}
		req := testutil.MakeRequest("POST", "/", body, nil)
		req.SetPathValue("id", f.CommitteeID)
		testutil.AssertStatus(t, serve(handler.AddCountries, req), http.StatusNotFound)
	})

	remove := func(countryID string) int {
		req := testutil.MakeRequest("DELETE", "/", nil, nil)
		req.SetPathValue("id", f.CommitteeID)
		req.SetPathValue("countryId", countryID)
		return serve(handler.RemoveCountry, req).Code
	}

	t.Run("taken country cannot be removed", func(t *testing.T) {
		if code := remove(f.Countries["USA"]); code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", code)
		}
	})

	t.Run("free country is removed", func(t *testing.T) {
		if code := remove(chn); code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", code)
		}
		if code := remove(chn); code != http.StatusNotFound {
			t.Errorf("Expected 404 on second removal, got %d", code)
		}
	})
}

func stringPtr(s string) *string {
	return &s
}
