// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danielhkuo/munconf/models"
	"github.com/danielhkuo/munconf/testutil"
)

func TestRankStandings(t *testing.T) {
	input := []models.AwardStanding{
		{DelegateID: "d-quiet", FullName: "Quinn"},
		{DelegateID: "d-b", FullName: "Bea", TotalPoints: 17, ScoreCount: 2},
		{DelegateID: "d-a", FullName: "Ari", TotalPoints: 17, ScoreCount: 3},
		{DelegateID: "d-top", FullName: "Tom", TotalPoints: 25, ScoreCount: 3},
		{DelegateID: "d-low", FullName: "Lee", TotalPoints: 4, ScoreCount: 1},
		{DelegateID: "d-zero", FullName: "Zed", TotalPoints: 0, ScoreCount: 1},
	}

	got := RankStandings(input)

	type line struct {
		ID    string
		Rank  int
		Award string
	}
	var lines []line
	for _, s := range got {
		lines = append(lines, line{s.DelegateID, s.Rank, s.Award})
	}

	want := []line{
		{"d-top", 1, "Best Delegate"},
		{"d-a", 2, "Outstanding Delegate"},
		{"d-b", 2, "Outstanding Delegate"},
		{"d-low", 4, "Verbal Commendation"},
		{"d-zero", 5, ""},
		{"d-quiet", 0, ""},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}

	if got[0].Average != 25.0/3 {
		t.Errorf("Expected average %.3f, got %.3f", 25.0/3, got[0].Average)
	}
	if input[0].DelegateID != "d-quiet" {
		t.Error("RankStandings must not reorder its input")
	}
}

func TestRankStandings_FractionalTies(t *testing.T) {
	// Summed fractions carry float error; 0.1+0.2 is not 0.3
	a, b := 0.1, 0.2
	input := []models.AwardStanding{
		{DelegateID: "d-a", FullName: "Ari", TotalPoints: a + b, ScoreCount: 2},
		{DelegateID: "d-b", FullName: "Bea", TotalPoints: 0.3, ScoreCount: 1},
		{DelegateID: "d-c", FullName: "Cy", TotalPoints: 0.29, ScoreCount: 1},
	}

	got := RankStandings(input)

	for i, want := range []struct {
		id    string
		rank  int
		award string
		total float64
	}{
		{"d-a", 1, "Best Delegate", 0.3},
		{"d-b", 1, "Best Delegate", 0.3},
		{"d-c", 3, "Honourable Mention", 0.29},
	} {
		if got[i].DelegateID != want.id || got[i].Rank != want.rank || got[i].Award != want.award {
			t.Errorf("standing %d = %s rank %d %q, want %s rank %d %q",
				i, got[i].DelegateID, got[i].Rank, got[i].Award, want.id, want.rank, want.award)
		}
		if got[i].TotalPoints != want.total {
			t.Errorf("standing %d total = %v, want %v", i, got[i].TotalPoints, want.total)
		}
	}
}

func TestRankStandings_Empty(t *testing.T) {
	if got := RankStandings(nil); len(got) != 0 {
		t.Errorf("Expected no standings, got %d", len(got))
	}
}

func TestGetAwards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewScoreHandler(db, cfg)
	f := newCommitteeFixture(t, db)

	testutil.AddTestScore(t, db, f.CommitteeID, f.Delegates[1], f.ChairID, 9)
	testutil.AddTestScore(t, db, f.CommitteeID, f.Delegates[1], f.ChairID, 8.5)
	testutil.AddTestScore(t, db, f.CommitteeID, f.Delegates[2], f.ChairID, 6)

	t.Run("chair sees standings", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/committees/"+f.CommitteeID+"/awards", nil, nil)
		req.SetPathValue("id", f.CommitteeID)
		w := serve(handler.GetAwards, f.asChair(req))
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.AwardsResponse
		testutil.AssertJSON(t, w, &resp)

		if len(resp.Standings) != 3 {
			t.Fatalf("Expected 3 standings, got %d", len(resp.Standings))
		}
		want := models.AwardStanding{
			DelegateID:  f.Delegates[1],
			TotalPoints: 17.5,
			ScoreCount:  2,
			Average:     8.75,
			Rank:        1,
			Award:       "Best Delegate",
		}
		opts := cmpopts.IgnoreFields(models.AwardStanding{}, "FullName", "CountryName")
		if diff := cmp.Diff(want, resp.Standings[0], opts); diff != "" {
			t.Errorf("winner mismatch (-want +got):\n%s", diff)
		}
		if last := resp.Standings[2]; last.DelegateID != f.Delegates[0] || last.Rank != 0 {
			t.Errorf("Expected unscored delegate last with rank 0, got %+v", last)
		}
	})

	t.Run("delegate is refused", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/", nil, nil)
		req.SetPathValue("id", f.CommitteeID)
		w := serve(handler.GetAwards, f.asDelegate(0, req))
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})

	t.Run("other chair is refused", func(t *testing.T) {
		other := testutil.CreateTestUser(t, db, models.RoleChair, "other-chair@mun.test")
		req := testutil.MakeRequest("GET", "/", nil, nil)
		req.SetPathValue("id", f.CommitteeID)
		w := serve(handler.GetAwards, testutil.WithSession(req, other, models.RoleChair))
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})
}

func TestCreateScore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewScoreHandler(db, cfg)
	f := newCommitteeFixture(t, db)
	outsider, _ := testutil.CreateTestDelegate(t, db, "out@mun.test", 0, "")

	tests := []struct {
		name       string
		body       models.CreateScoreRequest
		wantStatus int
	}{
		{
			name:       "valid score",
			body:       models.CreateScoreRequest{DelegateID: f.Delegates[0], Category: models.CategorySpeech, Session: 1, Points: 7.5},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "points above ten",
			body:       models.CreateScoreRequest{DelegateID: f.Delegates[0], Category: models.CategorySpeech, Session: 1, Points: 11},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad category",
			body:       models.CreateScoreRequest{DelegateID: f.Delegates[0], Category: "charisma", Session: 1, Points: 5},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "session zero",
			body:       models.CreateScoreRequest{DelegateID: f.Delegates[0], Category: models.CategoryDiplomacy, Session: 0, Points: 5},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "delegate outside committee",
			body:       models.CreateScoreRequest{DelegateID: outsider, Category: models.CategorySpeech, Session: 1, Points: 5},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown delegate",
			body:       models.CreateScoreRequest{DelegateID: "ghost", Category: models.CategorySpeech, Session: 1, Points: 5},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/committees/"+f.CommitteeID+"/scores", tt.body, nil)
			req.SetPathValue("id", f.CommitteeID)
			w := serve(handler.CreateScore, f.asChair(req))
			testutil.AssertStatus(t, w, tt.wantStatus)
		})
	}
}

func TestListScores_DelegateSeesOwn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewScoreHandler(db, cfg)
	f := newCommitteeFixture(t, db)

	testutil.AddTestScore(t, db, f.CommitteeID, f.Delegates[0], f.ChairID, 5)
	testutil.AddTestScore(t, db, f.CommitteeID, f.Delegates[1], f.ChairID, 6)

	req := testutil.MakeRequest("GET", "/committees/"+f.CommitteeID+"/scores", nil, nil)
	req.SetPathValue("id", f.CommitteeID)
	w := serve(handler.ListScores, f.asDelegate(0, req))
	testutil.AssertStatus(t, w, http.StatusOK)

	var scores []models.Score
	testutil.AssertJSON(t, w, &scores)
	if len(scores) != 1 || scores[0].DelegateID != f.Delegates[0] {
		t.Errorf("Expected only own score, got %+v", scores)
	}

	req = testutil.MakeRequest("GET", "/committees/"+f.CommitteeID+"/scores?delegate_id="+f.Delegates[1], nil, nil)
	req.SetPathValue("id", f.CommitteeID)
	w = serve(handler.ListScores, f.asDelegate(0, req))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	req = testutil.MakeRequest("GET", "/committees/"+f.CommitteeID+"/scores", nil, nil)
	req.SetPathValue("id", f.CommitteeID)
	w = serve(handler.ListScores, f.asChair(req))
	testutil.AssertStatus(t, w, http.StatusOK)
	scores = nil
	testutil.AssertJSON(t, w, &scores)
	if len(scores) != 2 {
		t.Errorf("Expected chair to see 2 scores, got %d", len(scores))
	}
}
