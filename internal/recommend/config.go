// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package recommend

import "time"

// Config holds the engine tunables. Zero values are replaced by defaults in
// NewEngine, so a partially filled Config is usable in tests.
type Config struct {
	// DefaultLimit is used when a request does not specify a limit.
	DefaultLimit int

	// MaxLimit caps the requested limit; larger values are rejected.
	MaxLimit int

	// FanOut caps the candidates each generator contributes.
	FanOut int

	// GeneratorTimeout bounds each generator's run.
	GeneratorTimeout time.Duration

	// HalfLifeDays controls the exponential recency decay of profile weights.
	HalfLifeDays float64

	// Lookback bounds the history read for profiles and collaborative
	// filtering.
	Lookback time.Duration

	// PopularityWindow is the trailing window for popularity counts.
	PopularityWindow time.Duration

	// TrendingShort and TrendingLong define the engagement rate-ratio windows.
	TrendingShort time.Duration
	TrendingLong  time.Duration

	// TrendingMinEvents is the long-window baseline guard.
	TrendingMinEvents int

	// Weights maps strategy name to blend weight. Weights should sum to 1.
	Weights map[string]float64

	// MaxNeighbors caps the collaborative filtering neighborhood.
	MaxNeighbors int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:      10,
		MaxLimit:          20,
		FanOut:            50,
		GeneratorTimeout:  2 * time.Second,
		HalfLifeDays:      30,
		Lookback:          90 * 24 * time.Hour,
		PopularityWindow:  30 * 24 * time.Hour,
		TrendingShort:     7 * 24 * time.Hour,
		TrendingLong:      30 * 24 * time.Hour,
		TrendingMinEvents: 3,
		Weights: map[string]float64{
			StrategyCollaborative: 0.30,
			StrategyContent:       0.30,
			StrategyPopularity:    0.20,
			StrategyEngagement:    0.20,
		},
		MaxNeighbors: 50,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if c.DefaultLimit <= 0 {
		c.DefaultLimit = def.DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = def.MaxLimit
	}
	if c.FanOut <= 0 {
		c.FanOut = def.FanOut
	}
	if c.GeneratorTimeout <= 0 {
		c.GeneratorTimeout = def.GeneratorTimeout
	}
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = def.HalfLifeDays
	}
	if c.Lookback <= 0 {
		c.Lookback = def.Lookback
	}
	if c.PopularityWindow <= 0 {
		c.PopularityWindow = def.PopularityWindow
	}
	if c.TrendingShort <= 0 {
		c.TrendingShort = def.TrendingShort
	}
	if c.TrendingLong <= 0 {
		c.TrendingLong = def.TrendingLong
	}
	if c.TrendingMinEvents <= 0 {
		c.TrendingMinEvents = def.TrendingMinEvents
	}
	if len(c.Weights) == 0 {
		c.Weights = def.Weights
	}
	if c.MaxNeighbors <= 0 {
		c.MaxNeighbors = def.MaxNeighbors
	}

	return c
}
