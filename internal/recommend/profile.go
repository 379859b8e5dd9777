// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package recommend

import (
	"context"
	"fmt"
	"math"
	"time"
)

// ProfileBuilder computes reading profiles from a user's interaction history.
//
// Each interaction contributes its kind's base weight (borrow 3, bookmark 2,
// view 1) scaled by exponential recency decay exp(-ageDays/halfLifeDays).
// Contributions accumulate per attribute value, then each attribute group is
// normalized to sum to 1 so groups are comparable regardless of how many
// events touched them.
type ProfileBuilder struct {
	source       DataSource
	halfLifeDays float64
	lookback     time.Duration
	now          func() time.Time
}

// NewProfileBuilder creates a profile builder over the given source.
func NewProfileBuilder(source DataSource, halfLifeDays float64, lookback time.Duration) *ProfileBuilder {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	if lookback <= 0 {
		lookback = 90 * 24 * time.Hour
	}

	return &ProfileBuilder{
		source:       source,
		halfLifeDays: halfLifeDays,
		lookback:     lookback,
		now:          time.Now,
	}
}

// Build computes the user's profile from their interactions inside the
// lookback window. A user with no history gets an empty (EventCount 0)
// profile, not an error.
func (b *ProfileBuilder) Build(ctx context.Context, userID string) (*Profile, error) {
	now := b.now()

	interactions, err := b.source.UserInteractions(ctx, userID, now.Add(-b.lookback))
	if err != nil {
		return nil, fmt.Errorf("%w: user interactions: %w", ErrUpstreamRead, err)
	}

	return b.FromInteractions(interactions, now), nil
}

// FromInteractions computes a profile from an already-loaded history.
func (b *ProfileBuilder) FromInteractions(interactions []Interaction, now time.Time) *Profile {
	profile := &Profile{
		Categories:  make(map[string]float64),
		Tags:        make(map[string]float64),
		Authors:     make(map[string]float64),
		Formats:     make(map[string]float64),
		GeneratedAt: now,
	}

	for _, in := range interactions {
		base := in.Kind.Weight()
		if base == 0 {
			continue
		}

		ageDays := now.Sub(in.Timestamp).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		w := base * math.Exp(-ageDays/b.halfLifeDays)

		for _, c := range in.Categories {
			profile.Categories[c] += w
		}
		for _, t := range in.Tags {
			profile.Tags[t] += w
		}
		if in.Author != "" {
			profile.Authors[in.Author] += w
		}
		if in.Format != "" {
			profile.Formats[in.Format] += w
		}

		profile.EventCount++
	}

	normalizeMap(profile.Categories)
	normalizeMap(profile.Tags)
	normalizeMap(profile.Authors)
	normalizeMap(profile.Formats)

	return profile
}

// normalizeMap scales the map values so they sum to 1. Empty maps and
// all-zero maps are left unchanged.
func normalizeMap(m map[string]float64) {
	var sum float64
	for _, v := range m {
		sum += v
	}
	if sum == 0 {
		return
	}
	for k, v := range m {
		m[k] = v / sum
	}
}
