// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package algorithms

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/biblion-app/biblion/internal/recommend"
)

// Collaborative implements user-based collaborative filtering: find users who
// interacted with the same books, weight them by Jaccard overlap of their
// item sets, and surface the books the neighborhood engaged with that the
// requesting user has not.
type Collaborative struct {
	source       recommend.DataSource
	lookback     time.Duration
	maxNeighbors int
	fanOut       int
	now          func() time.Time
}

// NewCollaborative creates the collaborative filtering generator.
func NewCollaborative(source recommend.DataSource, cfg recommend.Config) *Collaborative {
	return &Collaborative{
		source:       source,
		lookback:     cfg.Lookback,
		maxNeighbors: cfg.MaxNeighbors,
		fanOut:       cfg.FanOut,
		now:          time.Now,
	}
}

// Name implements recommend.Generator.
func (g *Collaborative) Name() string {
	return recommend.StrategyCollaborative
}

// Generate implements recommend.Generator. A user with no history inside the
// lookback window contributes nothing.
func (g *Collaborative) Generate(ctx context.Context, req recommend.Request, _ *recommend.Profile) ([]recommend.Candidate, error) {
	since := g.now().Add(-g.lookback)

	mine, err := g.source.UserInteractions(ctx, req.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: user interactions: %w", recommend.ErrUpstreamRead, err)
	}
	if len(mine) == 0 {
		return nil, nil
	}

	owned := make(map[string]struct{}, len(mine))
	for _, in := range mine {
		owned[in.ItemID] = struct{}{}
	}

	neighbors, err := g.rankNeighbors(ctx, req.UserID, owned, since)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for _, n := range neighbors {
		for _, in := range n.interactions {
			if _, mine := owned[in.ItemID]; mine {
				continue
			}
			scores[in.ItemID] += n.sim * in.Kind.Weight()
		}
	}

	candidates := make([]recommend.Candidate, 0, len(scores))
	for itemID, score := range scores {
		candidates = append(candidates, recommend.Candidate{ItemID: itemID, Score: score})
	}
	return recommend.SortCandidates(candidates, g.fanOut), nil
}

// neighbor is a candidate user with their Jaccard similarity and window of
// interactions.
type neighbor struct {
	id           string
	sim          float64
	interactions []recommend.Interaction
}

// rankNeighbors collects the users who touched any of the owned items, scores
// each by Jaccard overlap, and keeps the top maxNeighbors by similarity. The
// cap applies after scoring so a large candidate pool cannot push out the
// closest neighbors; the ID tie-break keeps the result stable across runs.
func (g *Collaborative) rankNeighbors(ctx context.Context, userID string, owned map[string]struct{}, since time.Time) ([]neighbor, error) {
	seen := make(map[string]struct{})

	items := make([]string, 0, len(owned))
	for itemID := range owned {
		items = append(items, itemID)
	}
	sort.Strings(items)

	for _, itemID := range items {
		interactions, err := g.source.ItemInteractions(ctx, itemID, since)
		if err != nil {
			return nil, fmt.Errorf("%w: item interactions: %w", recommend.ErrUpstreamRead, err)
		}
		for _, in := range interactions {
			if in.UserID != userID {
				seen[in.UserID] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ranked := make([]neighbor, 0, len(ids))
	for _, id := range ids {
		theirs, err := g.source.UserInteractions(ctx, id, since)
		if err != nil {
			return nil, fmt.Errorf("%w: neighbor interactions: %w", recommend.ErrUpstreamRead, err)
		}

		theirItems := make(map[string]struct{}, len(theirs))
		for _, in := range theirs {
			theirItems[in.ItemID] = struct{}{}
		}

		sim := jaccard(owned, theirItems)
		if sim == 0 {
			continue
		}
		ranked = append(ranked, neighbor{id: id, sim: sim, interactions: theirs})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].id < ranked[j].id
	})

	if g.maxNeighbors > 0 && len(ranked) > g.maxNeighbors {
		ranked = ranked[:g.maxNeighbors]
	}
	return ranked, nil
}
