// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Package algorithms provides the candidate generators the recommendation
// engine blends: collaborative filtering, content-based matching, catalog
// popularity, and engagement velocity.
//
// Every generator is deterministic for a given data set: candidate lists are
// sorted by descending score with ascending item ID as tie-break before the
// fan-out cap is applied.
package algorithms

import (
	"github.com/biblion-app/biblion/internal/recommend"
)

// Interface conformance.
var (
	_ recommend.Generator = (*Collaborative)(nil)
	_ recommend.Generator = (*Content)(nil)
	_ recommend.Generator = (*Popularity)(nil)
	_ recommend.Generator = (*Engagement)(nil)
)

// All constructs the full generator set in blend order.
func All(source recommend.DataSource, cfg recommend.Config) []recommend.Generator {
	return []recommend.Generator{
		NewCollaborative(source, cfg),
		NewContent(source, cfg),
		NewPopularity(source, cfg),
		NewEngagement(source, cfg),
	}
}

// jaccard returns the Jaccard similarity of two sets: the size of the
// intersection over the size of the union. Two empty sets yield 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersection := 0
	for k := range small {
		if _, ok := large[k]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// toSet builds a membership set from a slice.
func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
