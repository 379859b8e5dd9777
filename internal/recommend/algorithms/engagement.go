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

// Engagement scores items by velocity: the ratio of their short-window event
// rate to their long-window event rate. A ratio above 1 means the item is
// accelerating. Items with too few long-window events are skipped so a tiny
// baseline cannot inflate the ratio.
type Engagement struct {
	source    recommend.DataSource
	short     time.Duration
	long      time.Duration
	minEvents int
	fanOut    int
	now       func() time.Time
}

// NewEngagement creates the engagement-velocity generator.
func NewEngagement(source recommend.DataSource, cfg recommend.Config) *Engagement {
	return &Engagement{
		source:    source,
		short:     cfg.TrendingShort,
		long:      cfg.TrendingLong,
		minEvents: cfg.TrendingMinEvents,
		fanOut:    cfg.FanOut,
		now:       time.Now,
	}
}

// Name implements recommend.Generator.
func (g *Engagement) Name() string {
	return recommend.StrategyEngagement
}

// Generate implements recommend.Generator. Both windows are counted in one
// pass over the long-window history.
func (g *Engagement) Generate(ctx context.Context, _ recommend.Request, _ *recommend.Profile) ([]recommend.Candidate, error) {
	now := g.now()

	interactions, err := g.source.InteractionsSince(ctx, now.Add(-g.long))
	if err != nil {
		return nil, fmt.Errorf("%w: interactions: %w", recommend.ErrUpstreamRead, err)
	}

	shortSince := now.Add(-g.short)
	shortCounts := make(map[string]int)
	longCounts := make(map[string]int)
	for _, in := range interactions {
		longCounts[in.ItemID]++
		if !in.Timestamp.Before(shortSince) {
			shortCounts[in.ItemID]++
		}
	}

	shortDays := g.short.Hours() / 24
	longDays := g.long.Hours() / 24

	var candidates []recommend.Candidate
	for itemID, longCount := range longCounts {
		if longCount < g.minEvents {
			continue
		}

		shortRate := float64(shortCounts[itemID]) / shortDays
		longRate := float64(longCount) / longDays
		if longRate == 0 {
			continue
		}

		ratio := shortRate / longRate
		if ratio <= 1 {
			continue
		}
		candidates = append(candidates, recommend.Candidate{ItemID: itemID, Score: ratio})
	}
	return recommend.SortCandidates(candidates, g.fanOut), nil
}
