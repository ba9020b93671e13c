// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/munconf/models"
	"github.com/danielhkuo/munconf/testutil"
)

// TestConcurrentVotes verifies that simultaneous votes from different
// delegates are all recorded exactly once
func TestConcurrentVotes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voteHandler := NewVoteHandler(db, cfg)

	committeeID := testutil.CreateTestCommittee(t, db, "General Assembly", 20)
	numVoters := 10
	users := make([]string, numVoters)
	var author string
	for i := 0; i < numVoters; i++ {
		countryID := testutil.CreateTestCountry(t, db, fmt.Sprintf("Country %d", i), fmt.Sprintf("C%02d", i), 1)
		testutil.AddTestSeat(t, db, committeeID, countryID)
		delegateID, userID := testutil.CreateTestDelegate(t, db, fmt.Sprintf("voter%d@mun.test", i), 1, committeeID)
		testutil.AssignTestCountry(t, db, delegateID, countryID)
		users[i] = userID
		if i == 0 {
			author = delegateID
		}
	}
	docID := testutil.CreateTestDocument(t, db, committeeID, author, models.KindDraftResolution, models.DocApproved)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(voterIdx int) {
			defer wg.Done()

			positions := []string{models.VoteFor, models.VoteAgainst, models.VoteAbstain}
			req := testutil.MakeRequest("POST", "/documents/"+docID+"/votes",
				models.CastVoteRequest{Position: positions[voterIdx%3]}, nil)
			req.SetPathValue("id", docID)
			w := serve(voteHandler.CastVote, testutil.WithSession(req, users[voterIdx], models.RoleDelegate))

			if w.Code == http.StatusOK {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful votes, got %d", numVoters, successCount.Load())
	}

	var voteCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM vote WHERE document_id = $1", docID).Scan(&voteCount); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if voteCount != numVoters {
		t.Errorf("Expected %d votes in database, got %d", numVoters, voteCount)
	}
}

// TestConcurrentSeatClaims verifies that when several delegates are given
// the same country at once, exactly one keeps it
func TestConcurrentSeatClaims(t *testing.T) {
	db := testutil.SetupTestDB(t)
	delegateHandler := NewDelegateHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	contested := f.Countries["USA"]

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for _, delegateID := range f.Delegates {
		wg.Add(1)
		go func(delegateID string) {
			defer wg.Done()

			req := testutil.MakeRequest("PUT", "/delegates/"+delegateID+"/country",
				models.AssignCountryRequest{CountryID: contested}, nil)
			req.SetPathValue("id", delegateID)
			w := serve(delegateHandler.AssignCountry, req)

			if w.Code == http.StatusOK {
				successCount.Add(1)
			}
		}(delegateID)
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful claim, got %d", successCount.Load())
	}

	var holders int
	if err := db.QueryRow("SELECT COUNT(*) FROM delegate WHERE country_id = $1", contested).Scan(&holders); err != nil {
		t.Fatalf("Failed to count holders: %v", err)
	}
	if holders != 1 {
		t.Errorf("Expected 1 delegate holding the country, got %d", holders)
	}
}

// TestConcurrentAllocation verifies that overlapping allocation runs never
// hand out a seat twice and leave every delegate seated
func TestConcurrentAllocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	allocationHandler := NewAllocationHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)

	numAttempts := 3
	var assigned atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/committees/"+f.CommitteeID+"/allocate", nil, nil)
			req.SetPathValue("id", f.CommitteeID)
			w := serve(allocationHandler.AllocateCommittee, f.asAdmin(req))
			if w.Code != http.StatusOK {
				return
			}
			var resp models.AllocationResponse
			testutil.AssertJSON(t, w, &resp)
			assigned.Add(int32(len(resp.Assignments)))
		}()
	}

	wg.Wait()

	if got := assigned.Load(); got != int32(len(f.Delegates)) {
		t.Errorf("Expected %d assignments across all runs, got %d", len(f.Delegates), got)
	}

	var seated, distinct int
	err := db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT country_id) FROM delegate
		WHERE committee_id = $1 AND country_id IS NOT NULL
	`, f.CommitteeID).Scan(&seated, &distinct)
	if err != nil {
		t.Fatalf("Failed to count seats: %v", err)
	}
	if seated != len(f.Delegates) || distinct != seated {
		t.Errorf("Expected %d distinct seats, got %d seated / %d distinct", len(f.Delegates), seated, distinct)
	}
}

// TestConcurrentReviews verifies that only one of several simultaneous
// reviews of the same document takes effect
func TestConcurrentReviews(t *testing.T) {
	db := testutil.SetupTestDB(t)
	documentHandler := NewDocumentHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)
	docID := testutil.CreateTestDocument(t, db, f.CommitteeID, f.Delegates[0], models.KindDraftResolution, models.DocSubmitted)

	numAttempts := 4
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			decision := "approve"
			if i%2 == 1 {
				decision = "reject"
			}
			req := testutil.MakeRequest("PUT", "/documents/"+docID+"/review",
				models.ReviewDocumentRequest{Decision: decision}, nil)
			req.SetPathValue("id", docID)
			w := serve(documentHandler.ReviewDocument, f.asChair(req))

			if w.Code == http.StatusOK {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful review, got %d", successCount.Load())
	}
}

// TestConcurrentCommitteeJoins verifies that simultaneous moves into a
// committee never push it past capacity
func TestConcurrentCommitteeJoins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	delegateHandler := NewDelegateHandler(db, testutil.GetTestConfig())
	capacity := 2
	committeeID := testutil.CreateTestCommittee(t, db, "Crisis Cabinet", capacity)

	numDelegates := 6
	delegates := make([]string, numDelegates)
	for i := range delegates {
		delegates[i], _ = testutil.CreateTestDelegate(t, db, fmt.Sprintf("mover%d@mun.test", i), 1, "")
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for _, delegateID := range delegates {
		wg.Add(1)
		go func(delegateID string) {
			defer wg.Done()

			req := testutil.MakeRequest("PUT", "/delegates/"+delegateID+"/committee",
				models.AssignCommitteeRequest{CommitteeID: committeeID}, nil)
			req.SetPathValue("id", delegateID)
			w := serve(delegateHandler.AssignCommittee, req)

			if w.Code == http.StatusOK {
				successCount.Add(1)
			}
		}(delegateID)
	}

	wg.Wait()

	if successCount.Load() != int32(capacity) {
		t.Errorf("Expected %d successful moves, got %d", capacity, successCount.Load())
	}

	var members int
	if err := db.QueryRow("SELECT COUNT(*) FROM delegate WHERE committee_id = $1", committeeID).Scan(&members); err != nil {
		t.Fatalf("Failed to count members: %v", err)
	}
	if members != capacity {
		t.Errorf("Expected %d members, got %d", capacity, members)
	}
}

// TestConcurrentBlockJoins verifies that a delegate added to two blocks at
// once ends up in exactly one
func TestConcurrentBlockJoins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	blockHandler := NewBlockHandler(db, testutil.GetTestConfig())
	f := newCommitteeFixture(t, db)

	var blocks []string
	for _, name := range []string{"North", "South", "East", "West"} {
		req := f.asChair(testutil.MakeRequest("POST", "/", models.CreateBlockRequest{Name: name}, nil))
		b, code := createBlock(t, blockHandler, req, f.CommitteeID, name)
		if code != http.StatusCreated {
			t.Fatalf("Failed to create block %s: %d", name, code)
		}
		blocks = append(blocks, b.ID)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for _, blockID := range blocks {
		wg.Add(1)
		go func(blockID string) {
			defer wg.Done()

			req := f.asChair(testutil.MakeRequest("POST", "/blocks/"+blockID+"/members",
				models.AddBlockMemberRequest{DelegateID: f.Delegates[0]}, nil))
			req.SetPathValue("id", blockID)
			w := serve(blockHandler.AddMember, req)

			if w.Code == http.StatusCreated {
				successCount.Add(1)
			} else if w.Code != http.StatusConflict {
				t.Errorf("Expected 201 or 409, got %d", w.Code)
			}
		}(blockID)
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful join, got %d", successCount.Load())
	}

	var memberships int
	if err := db.QueryRow("SELECT COUNT(*) FROM block_member WHERE delegate_id = $1", f.Delegates[0]).Scan(&memberships); err != nil {
		t.Fatalf("Failed to count memberships: %v", err)
	}
	if memberships != 1 {
		t.Errorf("Expected 1 membership, got %d", memberships)
	}
}
