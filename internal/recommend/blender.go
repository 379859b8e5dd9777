// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package recommend

import "sort"

// generatorResult is one strategy's contribution to a blend.
type generatorResult struct {
	name       string
	candidates []Candidate
	err        error
}

// normalizeCandidates min-max normalizes raw scores into [0, 1] per strategy,
// so strategies with different score scales blend fairly. A single candidate,
// or a list where every score is equal, normalizes to 1.0: the strategy's
// only opinion is its strongest one.
func normalizeCandidates(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	minScore, maxScore := candidates[0].Score, candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}

	out := make([]Candidate, len(candidates))
	span := maxScore - minScore
	for i, c := range candidates {
		if span == 0 {
			out[i] = Candidate{ItemID: c.ItemID, Score: 1.0}
		} else {
			out[i] = Candidate{ItemID: c.ItemID, Score: (c.Score - minScore) / span}
		}
	}
	return out
}

// blend merges per-strategy candidates into a single ranked list:
// excluded items are dropped, each strategy's scores are normalized, then
// summed weighted by the strategy's blend weight. The result is sorted by
// descending score with ascending item ID as tie-break for determinism.
func blend(results []generatorResult, weights map[string]float64, exclude map[string]struct{}) []ScoredItem {
	scores := make(map[string]float64)
	sources := make(map[string][]string)

	for _, res := range results {
		if res.err != nil || len(res.candidates) == 0 {
			continue
		}

		weight := weights[res.name]
		if weight == 0 {
			continue
		}

		kept := res.candidates[:0:0]
		for _, c := range res.candidates {
			if _, skip := exclude[c.ItemID]; !skip {
				kept = append(kept, c)
			}
		}

		for _, c := range normalizeCandidates(kept) {
			scores[c.ItemID] += weight * c.Score
			sources[c.ItemID] = append(sources[c.ItemID], res.name)
		}
	}

	items := make([]ScoredItem, 0, len(scores))
	for itemID, score := range scores {
		items = append(items, ScoredItem{
			ItemID:  itemID,
			Score:   score,
			Sources: sources[itemID],
		})
	}

	sortScoredItems(items)
	return items
}

// sortScoredItems orders by descending score, then ascending item ID.
func sortScoredItems(items []ScoredItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ItemID < items[j].ItemID
	})
}

// SortCandidates orders by descending score, then ascending item ID, and
// truncates to max when max is positive. Generators use it to apply the
// fan-out cap deterministically.
func SortCandidates(candidates []Candidate, max int) []Candidate {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ItemID < candidates[j].ItemID
	})

	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}
