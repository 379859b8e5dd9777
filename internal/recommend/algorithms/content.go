// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package algorithms

import (
	"context"
	"fmt"
	"time"

	"github.com/biblion-app/biblion/internal/recommend"
)

// Attribute-group weights for anchored similarity. Categories carry the most
// signal, format the least.
const (
	categoryWeight = 0.4
	tagWeight      = 0.3
	authorWeight   = 0.2
	formatWeight   = 0.1
)

// Content scores catalog items against the user's reading profile, or, in the
// book-detail context, against the anchor book's own attributes. Items the
// user already interacted with inside the lookback window are never
// candidates: the profile is built from those very items, so without the skip
// they would crowd out everything new.
type Content struct {
	source   recommend.DataSource
	lookback time.Duration
	fanOut   int
	now      func() time.Time
}

// NewContent creates the content-based generator.
func NewContent(source recommend.DataSource, cfg recommend.Config) *Content {
	return &Content{
		source:   source,
		lookback: cfg.Lookback,
		fanOut:   cfg.FanOut,
		now:      time.Now,
	}
}

// Name implements recommend.Generator.
func (g *Content) Name() string {
	return recommend.StrategyContent
}

// Generate implements recommend.Generator. Without an anchor book and with an
// empty profile there is nothing to match against, so the contribution is
// empty.
func (g *Content) Generate(ctx context.Context, req recommend.Request, profile *recommend.Profile) ([]recommend.Candidate, error) {
	interacted, err := g.interactedItems(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.BookID != "" {
		return g.similarTo(ctx, req.BookID, interacted)
	}
	if profile.IsEmpty() {
		return nil, nil
	}
	return g.matchProfile(ctx, profile, interacted)
}

// interactedItems returns the set of item IDs the user touched inside the
// lookback window.
func (g *Content) interactedItems(ctx context.Context, userID string) (map[string]struct{}, error) {
	mine, err := g.source.UserInteractions(ctx, userID, g.now().Add(-g.lookback))
	if err != nil {
		return nil, fmt.Errorf("%w: user interactions: %w", recommend.ErrUpstreamRead, err)
	}

	interacted := make(map[string]struct{}, len(mine))
	for _, in := range mine {
		interacted[in.ItemID] = struct{}{}
	}
	return interacted, nil
}

// similarTo scores the catalog against the anchor book's attributes.
func (g *Content) similarTo(ctx context.Context, bookID string, interacted map[string]struct{}) ([]recommend.Candidate, error) {
	anchor, err := g.source.Item(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog item: %w", recommend.ErrUpstreamRead, err)
	}
	if anchor == nil {
		return nil, nil
	}

	catalog, err := g.source.CatalogItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog: %w", recommend.ErrUpstreamRead, err)
	}

	anchorCategories := toSet(anchor.Categories)
	anchorTags := toSet(anchor.Tags)

	var candidates []recommend.Candidate
	for _, item := range catalog {
		if item.ID == anchor.ID {
			continue
		}
		if _, seen := interacted[item.ID]; seen {
			continue
		}

		score := categoryWeight*jaccard(anchorCategories, toSet(item.Categories)) +
			tagWeight*jaccard(anchorTags, toSet(item.Tags))
		if anchor.Author != "" && item.Author == anchor.Author {
			score += authorWeight
		}
		if anchor.Format != "" && item.Format == anchor.Format {
			score += formatWeight
		}

		if score > 0 {
			candidates = append(candidates, recommend.Candidate{ItemID: item.ID, Score: score})
		}
	}
	return recommend.SortCandidates(candidates, g.fanOut), nil
}

// matchProfile scores the not-yet-interacted catalog against the profile's
// normalized attribute weights. An item's score is the sum of the profile
// weights of every attribute value it carries.
func (g *Content) matchProfile(ctx context.Context, profile *recommend.Profile, interacted map[string]struct{}) ([]recommend.Candidate, error) {
	catalog, err := g.source.CatalogItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog: %w", recommend.ErrUpstreamRead, err)
	}

	var candidates []recommend.Candidate
	for _, item := range catalog {
		if _, seen := interacted[item.ID]; seen {
			continue
		}

		var score float64
		for _, c := range item.Categories {
			score += profile.Categories[c]
		}
		for _, t := range item.Tags {
			score += profile.Tags[t]
		}
		score += profile.Authors[item.Author]
		score += profile.Formats[item.Format]

		if score > 0 {
			candidates = append(candidates, recommend.Candidate{ItemID: item.ID, Score: score})
		}
	}
	return recommend.SortCandidates(candidates, g.fanOut), nil
}
