// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"math"
	"sort"

	"github.com/danielhkuo/munconf/models"
)

// Award titles by rank
var awardTitles = map[int]string{
	1: "Best Delegate",
	2: "Outstanding Delegate",
	3: "Honourable Mention",
	4: "Verbal Commendation",
}

// centiPoints converts a points total to whole hundredths so sums like
// 0.1+0.2 and 0.3 compare equal
func centiPoints(total float64) int64 {
	return int64(math.Round(total * 100))
}

// RankStandings orders delegates by total points and assigns competition
// ranks (1, 2, 2, 4) and award titles. Delegates without any score come
// last with rank 0 and no award.
func RankStandings(standings []models.AwardStanding) []models.AwardStanding {
	ranked := append([]models.AwardStanding(nil), standings...)

	for i := range ranked {
		ranked[i].Rank = 0
		ranked[i].Award = ""
		ranked[i].Average = 0
		ranked[i].TotalPoints = float64(centiPoints(ranked[i].TotalPoints)) / 100
		if ranked[i].ScoreCount > 0 {
			ranked[i].Average = ranked[i].TotalPoints / float64(ranked[i].ScoreCount)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		// 1. Scored delegates before unscored
		if (a.ScoreCount > 0) != (b.ScoreCount > 0) {
			return a.ScoreCount > 0
		}

		// 2. Higher total wins
		if ca, cb := centiPoints(a.TotalPoints), centiPoints(b.TotalPoints); ca != cb {
			return ca > cb
		}

		// 3. Presentation order only; ties still share a rank
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.DelegateID < b.DelegateID
	})

	for i := range ranked {
		if ranked[i].ScoreCount == 0 {
			break
		}
		if i > 0 && centiPoints(ranked[i].TotalPoints) == centiPoints(ranked[i-1].TotalPoints) {
			ranked[i].Rank = ranked[i-1].Rank
		} else {
			ranked[i].Rank = i + 1
		}
		ranked[i].Award = awardTitles[ranked[i].Rank]
	}

	return ranked
}

// loadStandings collects every committee delegate with their score totals
func loadStandings(ctx context.Context, q querier, committeeID string) ([]models.AwardStanding, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT d.id, u.full_name, c.name
		FROM delegate d
		JOIN users u ON u.id = d.user_id
		LEFT JOIN country c ON c.id = d.country_id
		WHERE d.committee_id = $1
	`, committeeID)
	if err != nil {
		return nil, err
	}

	var standings []models.AwardStanding
	index := map[string]int{}
	for rows.Next() {
		var s models.AwardStanding
		if err := rows.Scan(&s.DelegateID, &s.FullName, &s.CountryName); err != nil {
			rows.Close()
			return nil, err
		}
		index[s.DelegateID] = len(standings)
		standings = append(standings, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals, err := q.QueryContext(ctx, `
		SELECT delegate_id, COALESCE(SUM(points), 0), COUNT(*)
		FROM score
		WHERE committee_id = $1
		GROUP BY delegate_id
	`, committeeID)
	if err != nil {
		return nil, err
	}
	defer totals.Close()

	for totals.Next() {
		var delegateID string
		var total float64
		var count int
		if err := totals.Scan(&delegateID, &total, &count); err != nil {
			return nil, err
		}
		// Scores of delegates who have since left the committee are ignored
		if i, ok := index[delegateID]; ok {
			standings[i].TotalPoints = total
			standings[i].ScoreCount = count
		}
	}
	return standings, totals.Err()
}
