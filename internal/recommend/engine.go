// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/biblion-app/biblion/internal/logging"
	"github.com/biblion-app/biblion/internal/metrics"
)

// Engine blends the output of several candidate generators into one ranked,
// diversity-adjusted recommendation list.
type Engine struct {
	cfg        Config
	source     DataSource
	profiles   *ProfileBuilder
	generators []Generator
	reranker   Reranker
}

// NewEngine creates an engine over the given source and generators. A nil
// reranker disables re-ranking.
func NewEngine(cfg Config, source DataSource, generators []Generator, reranker Reranker) *Engine {
	cfg = cfg.withDefaults()

	return &Engine{
		cfg:        cfg,
		source:     source,
		profiles:   NewProfileBuilder(source, cfg.HalfLifeDays, cfg.Lookback),
		generators: generators,
		reranker:   reranker,
	}
}

// Recommend produces up to req.Limit recommendations for req.UserID.
//
// Generators run concurrently, each under its own timeout; a failing
// generator contributes nothing and never fails the request. A profile that
// cannot be built degrades to nil, letting the non-personalized strategies
// carry the response.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	req, err := e.prepareRequest(req)
	if err != nil {
		return nil, err
	}

	profile, err := e.profiles.Build(ctx, req.UserID)
	if err != nil {
		logging.Err(err).Str("user_id", req.UserID).Msg("Profile build failed, falling back to non-personalized strategies")
		metrics.ProfileFallbacks.Inc()
		profile = nil
	}

	results := e.runGenerators(ctx, req, profile)

	exclude := make(map[string]struct{}, len(req.ExcludeBookIDs))
	for _, id := range req.ExcludeBookIDs {
		exclude[id] = struct{}{}
	}
	if req.BookID != "" {
		exclude[req.BookID] = struct{}{}
	}

	items := blend(results, e.cfg.Weights, exclude)
	e.attachItems(ctx, items)
	if e.reranker != nil {
		items = e.reranker.Rerank(items, req.Limit)
	}
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}

	resp := &Response{Recommendations: items}
	if !profile.IsEmpty() {
		resp.Profile = profile
	}

	metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	metrics.RecommendationsServed.Add(float64(len(items)))

	logging.Debug().
		Str("user_id", req.UserID).
		Str("context", req.Context).
		Int("count", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Recommendations computed")

	return resp, nil
}

// prepareRequest validates the request and applies limit defaults.
func (e *Engine) prepareRequest(req Request) (Request, error) {
	if req.UserID == "" {
		return req, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}

	switch {
	case req.Limit < 0:
		return req, fmt.Errorf("%w: limit must be non-negative", ErrInvalidArgument)
	case req.Limit == 0:
		req.Limit = e.cfg.DefaultLimit
	case req.Limit > e.cfg.MaxLimit:
		return req, fmt.Errorf("%w: limit exceeds maximum %d", ErrInvalidArgument, e.cfg.MaxLimit)
	}

	switch req.Context {
	case "":
		req.Context = ContextBrowse
	case ContextBrowse:
	case ContextBookDetail:
		if req.BookID == "" {
			return req, fmt.Errorf("%w: book_id is required in the %s context", ErrInvalidArgument, ContextBookDetail)
		}
	default:
		return req, fmt.Errorf("%w: unknown context %q", ErrInvalidArgument, req.Context)
	}

	return req, nil
}

// runGenerators fans out to all generators concurrently and collects their
// results by index. Each generator gets its own timeout so one slow strategy
// cannot stall the blend.
func (e *Engine) runGenerators(ctx context.Context, req Request, profile *Profile) []generatorResult {
	results := make([]generatorResult, len(e.generators))

	var wg sync.WaitGroup
	for i, gen := range e.generators {
		wg.Add(1)
		go func(i int, gen Generator) {
			defer wg.Done()

			genCtx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorTimeout)
			defer cancel()

			start := time.Now()
			candidates, err := gen.Generate(genCtx, req, profile)
			metrics.ObserveGenerator(gen.Name(), time.Since(start), err)

			if err != nil {
				logging.Err(err).
					Str("generator", gen.Name()).
					Str("user_id", req.UserID).
					Msg("Generator failed, dropping its contribution")
			}

			if len(candidates) > e.cfg.FanOut {
				candidates = candidates[:e.cfg.FanOut]
			}
			results[i] = generatorResult{name: gen.Name(), candidates: candidates, err: err}
		}(i, gen)
	}
	wg.Wait()

	return results
}

// attachItems fills in catalog metadata for the final list. A lookup failure
// leaves the item reference nil; the ID and score still stand on their own.
func (e *Engine) attachItems(ctx context.Context, items []ScoredItem) {
	for i := range items {
		item, err := e.source.Item(ctx, items[i].ItemID)
		if err != nil {
			logging.Err(err).Str("item_id", items[i].ItemID).Msg("Catalog lookup failed for recommendation")
			continue
		}
		items[i].Item = item
	}
}
