// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Command server runs the Biblion recommendation service: the interaction
// tracker, the recommendation engine, the trending projection, and the HTTP
// API, under a suture supervision tree.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/biblion-app/biblion/internal/api"
	"github.com/biblion-app/biblion/internal/config"
	"github.com/biblion-app/biblion/internal/logging"
	"github.com/biblion-app/biblion/internal/ratelimit"
	"github.com/biblion-app/biblion/internal/recommend"
	"github.com/biblion-app/biblion/internal/recommend/algorithms"
	"github.com/biblion-app/biblion/internal/recommend/reranking"
	"github.com/biblion-app/biblion/internal/supervisor"
	"github.com/biblion-app/biblion/internal/supervisor/services"
	"github.com/biblion-app/biblion/internal/tracking"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Service failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if cfg.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required (set BIBLION_SECURITY_JWT_SECRET)")
	}

	logging.Info().
		Str("backend", cfg.Storage.Backend).
		Int("port", cfg.Server.Port).
		Msg("Starting biblion")

	// Interaction log.
	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Err(err).Msg("Failed to close interaction log")
		}
	}()

	// Catalog snapshot, rebuilt from the log before serving.
	index := tracking.NewItemIndex()
	if err := index.Rebuild(context.Background(), store); err != nil {
		return fmt.Errorf("rebuild item index: %w", err)
	}
	logging.Info().Int("items", index.Len()).Msg("Item index rebuilt")

	// In-process event bus feeding the trending projection.
	bus := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewSlogLogger(logging.NewSlogLogger()),
	)
	defer bus.Close()

	tracker := tracking.NewTracker(store, index, bus)

	projector := tracking.NewProjector(tracking.ProjectorConfig{
		ShortWindow:  days(cfg.Recommend.TrendingShortDays),
		LongWindow:   days(cfg.Recommend.TrendingLongDays),
		Buckets:      cfg.Trending.Buckets,
		MaxItems:     cfg.Trending.MaxItems,
		MinLongCount: int64(cfg.Recommend.TrendingMinEvents),
	}, bus)

	// Engine reads go through the circuit breaker.
	source := tracking.NewBreakerSource(tracking.NewSource(store, index))

	engineCfg := recommend.Config{
		DefaultLimit:      cfg.Recommend.DefaultLimit,
		MaxLimit:          cfg.Recommend.MaxLimit,
		FanOut:            cfg.Recommend.FanOut,
		GeneratorTimeout:  cfg.Recommend.GeneratorTimeout,
		HalfLifeDays:      cfg.Recommend.HalfLifeDays,
		Lookback:          days(cfg.Recommend.LookbackDays),
		PopularityWindow:  days(cfg.Recommend.PopularityWindowDays),
		TrendingShort:     days(cfg.Recommend.TrendingShortDays),
		TrendingLong:      days(cfg.Recommend.TrendingLongDays),
		TrendingMinEvents: cfg.Recommend.TrendingMinEvents,
		Weights: map[string]float64{
			recommend.StrategyCollaborative: cfg.Recommend.WeightCollaborative,
			recommend.StrategyContent:       cfg.Recommend.WeightContent,
			recommend.StrategyPopularity:    cfg.Recommend.WeightPopularity,
			recommend.StrategyEngagement:    cfg.Recommend.WeightEngagement,
		},
		MaxNeighbors: cfg.Recommend.MaxNeighbors,
	}

	var reranker recommend.Reranker
	if cfg.Recommend.DiversityCategoryCap > 0 {
		reranker = reranking.NewCategoryCap(cfg.Recommend.DiversityCategoryCap)
	}

	engine := recommend.NewEngine(engineCfg, source, algorithms.All(source, engineCfg), reranker)

	// Per-user admission controller.
	limiter := ratelimit.New(ratelimit.Config{
		Limits: map[string]ratelimit.Limit{
			api.ActionRecommendations: {
				Requests: cfg.RateLimit.Recommendations.Requests,
				Window:   cfg.RateLimit.Recommendations.Window,
			},
			api.ActionInteractions: {
				Requests: cfg.RateLimit.Interactions.Requests,
				Window:   cfg.RateLimit.Interactions.Window,
			},
		},
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	})

	// HTTP surface.
	middlewareCfg := api.DefaultMiddlewareConfig()
	middlewareCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	middlewareCfg.IPRateLimitRequests = cfg.Security.IPRateLimitRequests
	middlewareCfg.IPRateLimitWindow = cfg.Security.IPRateLimitWindow

	router := api.NewRouter(api.RouterConfig{
		Handler:       api.NewHandler(tracker, engine, projector, limiter),
		Authenticator: api.NewAuthenticator(cfg.Security.JWTSecret),
		Middleware:    api.NewMiddleware(middlewareCfg),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree.
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddProjectionService(projector)
	tree.AddMaintenanceService(limiter)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", httpServer.Addr).Msg("Serving")

	if err := tree.Serve(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}

// openStore creates the configured interaction log backend.
func openStore(cfg config.StorageConfig) (tracking.Store, error) {
	switch cfg.Backend {
	case "memory":
		logging.Warn().Msg("Using in-memory interaction log; events are lost on restart")
		return tracking.NewMemoryStore(), nil
	default:
		store, err := tracking.NewBadgerStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open interaction log: %w", err)
		}
		return store, nil
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
