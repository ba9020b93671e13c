// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"fmt"

	"github.com/danielhkuo/munconf/models"
)

// MinVotesToPublish is the number of votes a resolution or amendment
// needs before it can be published
const MinVotesToPublish = 2

// ComputeTally counts votes by position
func ComputeTally(votes []models.Vote) models.Tally {
	var t models.Tally
	for _, v := range votes {
		switch v.Position {
		case models.VoteFor:
			t.For++
		case models.VoteAgainst:
			t.Against++
		case models.VoteAbstain:
			t.Abstain++
		}
	}
	t.Total = t.For + t.Against + t.Abstain
	t.Passed = t.For > t.Against
	t.CanPublish = t.Total >= MinVotesToPublish
	return t
}

// PublicationOutcome decides the status an approved document moves to.
// Position papers are not voted on and publish directly.
func PublicationOutcome(kind string, t models.Tally) (string, error) {
	if kind == models.KindPositionPaper {
		return models.DocPublished, nil
	}
	if !t.CanPublish {
		return "", fmt.Errorf("%w: %d of %d cast", ErrNotEnoughVotes, t.Total, MinVotesToPublish)
	}
	if t.Passed {
		return models.DocPublished, nil
	}
	return models.DocFailed, nil
}

// loadVotes returns a document's votes with the voting country. Votes of
// delegates who have since left the committee do not count.
func loadVotes(ctx context.Context, q querier, documentID string) ([]models.Vote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT v.document_id, v.delegate_id, c.name, v.position, v.cast_at
		FROM vote v
		JOIN document doc ON doc.id = v.document_id
		JOIN delegate d ON d.id = v.delegate_id AND d.committee_id = doc.committee_id
		LEFT JOIN country c ON c.id = d.country_id
		WHERE v.document_id = $1
		ORDER BY c.name, v.delegate_id
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.DocumentID, &v.DelegateID, &v.CountryName, &v.Position, &v.CastAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

