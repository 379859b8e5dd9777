// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package algorithms

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/biblion-app/biblion/internal/recommend"
)

// Popularity scores items by their interaction volume over a trailing window.
// The raw count is weighted by event kind and log-damped so a runaway
// bestseller cannot drown out the rest of the catalog.
type Popularity struct {
	source recommend.DataSource
	window time.Duration
	fanOut int
	now    func() time.Time
}

// NewPopularity creates the popularity generator.
func NewPopularity(source recommend.DataSource, cfg recommend.Config) *Popularity {
	return &Popularity{
		source: source,
		window: cfg.PopularityWindow,
		fanOut: cfg.FanOut,
		now:    time.Now,
	}
}

// Name implements recommend.Generator.
func (g *Popularity) Name() string {
	return recommend.StrategyPopularity
}

// Generate implements recommend.Generator.
func (g *Popularity) Generate(ctx context.Context, _ recommend.Request, _ *recommend.Profile) ([]recommend.Candidate, error) {
	interactions, err := g.source.InteractionsSince(ctx, g.now().Add(-g.window))
	if err != nil {
		return nil, fmt.Errorf("%w: interactions: %w", recommend.ErrUpstreamRead, err)
	}

	counts := make(map[string]float64)
	for _, in := range interactions {
		counts[in.ItemID] += in.Kind.Weight()
	}

	candidates := make([]recommend.Candidate, 0, len(counts))
	for itemID, count := range counts {
		candidates = append(candidates, recommend.Candidate{ItemID: itemID, Score: math.Log1p(count)})
	}
	return recommend.SortCandidates(candidates, g.fanOut), nil
}
