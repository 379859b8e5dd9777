// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Package config defines the Biblion service configuration and loads it from
// layered sources (defaults, optional YAML file, environment variables).
package config

import (
	"fmt"
	"math"
	"time"
)

// Config is the root configuration for the recommendation service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Storage   StorageConfig   `koanf:"storage"`
	Security  SecurityConfig  `koanf:"security"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Recommend RecommendConfig `koanf:"recommend"`
	Trending  TrendingConfig  `koanf:"trending"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StorageConfig selects and configures the interaction log backend.
type StorageConfig struct {
	// Backend is "badger" for persistent storage or "memory" for development.
	Backend string `koanf:"backend"`

	// Path is the BadgerDB data directory (badger backend only).
	Path string `koanf:"path"`
}

// SecurityConfig holds authentication and CORS settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string `koanf:"jwt_secret"`

	CORSOrigins []string `koanf:"cors_origins"`

	// IPRateLimitRequests caps requests per client IP per window, in front of
	// the per-user admission controller.
	IPRateLimitRequests int           `koanf:"ip_rate_limit_requests"`
	IPRateLimitWindow   time.Duration `koanf:"ip_rate_limit_window"`
}

// RateLimitConfig holds the per-user admission controller limits.
type RateLimitConfig struct {
	Recommendations LimitConfig   `koanf:"recommendations"`
	Interactions    LimitConfig   `koanf:"interactions"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LimitConfig is a fixed-window limit: Requests per Window.
type LimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// RecommendConfig holds the recommendation engine tunables.
type RecommendConfig struct {
	// DefaultLimit is the result count when the request does not specify one.
	DefaultLimit int `koanf:"default_limit"`

	// MaxLimit caps the requested result count. At most 20.
	MaxLimit int `koanf:"max_limit"`

	// FanOut caps the candidates each generator may contribute.
	FanOut int `koanf:"fan_out"`

	// GeneratorTimeout bounds each generator's run time.
	GeneratorTimeout time.Duration `koanf:"generator_timeout"`

	// HalfLifeDays controls the exponential recency decay of profile weights.
	HalfLifeDays float64 `koanf:"half_life_days"`

	// LookbackDays bounds the history window used for profiles and
	// collaborative filtering.
	LookbackDays int `koanf:"lookback_days"`

	// PopularityWindowDays is the trailing window for popularity counts.
	PopularityWindowDays int `koanf:"popularity_window_days"`

	// TrendingShortDays and TrendingLongDays define the engagement rate ratio
	// windows (short-window rate over long-window rate).
	TrendingShortDays int `koanf:"trending_short_days"`
	TrendingLongDays  int `koanf:"trending_long_days"`

	// TrendingMinEvents is the minimum long-window event count before an item
	// is eligible for the engagement signal.
	TrendingMinEvents int `koanf:"trending_min_events"`

	// Blend weights per strategy. Must sum to 1.0.
	WeightCollaborative float64 `koanf:"weight_collaborative"`
	WeightContent       float64 `koanf:"weight_content"`
	WeightPopularity    float64 `koanf:"weight_popularity"`
	WeightEngagement    float64 `koanf:"weight_engagement"`

	// DiversityCategoryCap is the maximum share of the result list a single
	// category may occupy (0 disables diversity re-ranking).
	DiversityCategoryCap float64 `koanf:"diversity_category_cap"`

	// MaxNeighbors caps the user neighborhood size in collaborative filtering.
	MaxNeighbors int `koanf:"max_neighbors"`
}

// TrendingConfig configures the trending projection behind the admin endpoint.
type TrendingConfig struct {
	// Buckets is the number of buckets each sliding window is divided into.
	Buckets int `koanf:"buckets"`

	// MaxItems caps the number of tracked items.
	MaxItems int `koanf:"max_items"`
}

// defaultConfig returns a Config with all default values. Defaults are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8460,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "/data/biblion/interactions",
		},
		Security: SecurityConfig{
			JWTSecret:           "",
			CORSOrigins:         []string{},
			IPRateLimitRequests: 300,
			IPRateLimitWindow:   time.Minute,
		},
		RateLimit: RateLimitConfig{
			Recommendations: LimitConfig{Requests: 30, Window: time.Minute},
			Interactions:    LimitConfig{Requests: 120, Window: time.Minute},
			CleanupInterval: 5 * time.Minute,
		},
		Recommend: RecommendConfig{
			DefaultLimit:         10,
			MaxLimit:             20,
			FanOut:               50,
			GeneratorTimeout:     2 * time.Second,
			HalfLifeDays:         30,
			LookbackDays:         90,
			PopularityWindowDays: 30,
			TrendingShortDays:    7,
			TrendingLongDays:     30,
			TrendingMinEvents:    3,
			WeightCollaborative:  0.30,
			WeightContent:        0.30,
			WeightPopularity:     0.20,
			WeightEngagement:     0.20,
			DiversityCategoryCap: 0.4,
			MaxNeighbors:         50,
		},
		Trending: TrendingConfig{
			Buckets:  30,
			MaxItems: 100000,
		},
	}
}

// Validate checks the configuration for inconsistent or out-of-range values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Backend {
	case "badger":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend %q is not supported (badger, memory)", c.Storage.Backend)
	}

	if err := c.RateLimit.validate(); err != nil {
		return err
	}

	return c.Recommend.validate()
}

func (r *RateLimitConfig) validate() error {
	for name, limit := range map[string]LimitConfig{
		"rate_limit.recommendations": r.Recommendations,
		"rate_limit.interactions":    r.Interactions,
	} {
		if limit.Requests < 1 {
			return fmt.Errorf("%s.requests must be >= 1", name)
		}
		if limit.Window <= 0 {
			return fmt.Errorf("%s.window must be positive", name)
		}
	}
	return nil
}

func (r *RecommendConfig) validate() error {
	if r.MaxLimit < 1 || r.MaxLimit > 20 {
		return fmt.Errorf("recommend.max_limit %d out of range [1, 20]", r.MaxLimit)
	}
	if r.DefaultLimit < 1 || r.DefaultLimit > r.MaxLimit {
		return fmt.Errorf("recommend.default_limit %d out of range [1, %d]", r.DefaultLimit, r.MaxLimit)
	}
	if r.FanOut < 1 {
		return fmt.Errorf("recommend.fan_out must be >= 1")
	}
	if r.HalfLifeDays <= 0 {
		return fmt.Errorf("recommend.half_life_days must be positive")
	}
	if r.LookbackDays < 1 {
		return fmt.Errorf("recommend.lookback_days must be >= 1")
	}
	if r.TrendingShortDays < 1 || r.TrendingLongDays <= r.TrendingShortDays {
		return fmt.Errorf("recommend trending windows invalid: short=%d long=%d", r.TrendingShortDays, r.TrendingLongDays)
	}
	if r.DiversityCategoryCap < 0 || r.DiversityCategoryCap > 1 {
		return fmt.Errorf("recommend.diversity_category_cap %v out of range [0, 1]", r.DiversityCategoryCap)
	}

	sum := r.WeightCollaborative + r.WeightContent + r.WeightPopularity + r.WeightEngagement
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("recommend blend weights must sum to 1.0, got %v", sum)
	}

	return nil
}
