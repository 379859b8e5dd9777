// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Package reranking adjusts the final ordering of blended recommendations.
package reranking

import (
	"github.com/biblion-app/biblion/internal/recommend"
)

// CategoryCap enforces result diversity: no single primary category may fill
// more than CategoryFraction of the requested limit. The greedy pass keeps
// the score order where it can; items over their category's cap are deferred
// and appended after everything else, so they are demoted rather than dropped.
type CategoryCap struct {
	// CategoryFraction is the maximum share of the limit one category may
	// occupy, in (0, 1]. Zero or out-of-range values fall back to 0.4.
	CategoryFraction float64
}

// NewCategoryCap creates the diversity reranker.
func NewCategoryCap(fraction float64) *CategoryCap {
	return &CategoryCap{CategoryFraction: fraction}
}

var _ recommend.Reranker = (*CategoryCap)(nil)

// Rerank implements recommend.Reranker.
func (r *CategoryCap) Rerank(items []recommend.ScoredItem, limit int) []recommend.ScoredItem {
	if len(items) <= 1 || limit <= 0 {
		return items
	}

	fraction := r.CategoryFraction
	if fraction <= 0 || fraction > 1 {
		fraction = 0.4
	}

	cap := int(fraction * float64(limit))
	if cap < 1 {
		cap = 1
	}

	seen := make(map[string]int)
	kept := make([]recommend.ScoredItem, 0, len(items))
	var deferred []recommend.ScoredItem

	for _, item := range items {
		category := primaryCategory(item)
		if seen[category] >= cap {
			deferred = append(deferred, item)
			continue
		}
		seen[category]++
		kept = append(kept, item)
	}

	return append(kept, deferred...)
}

// primaryCategory is the item's first category; items without catalog
// metadata share the uncategorized bucket.
func primaryCategory(item recommend.ScoredItem) string {
	if item.Item == nil || len(item.Item.Categories) == 0 {
		return ""
	}
	return item.Item.Categories[0]
}
