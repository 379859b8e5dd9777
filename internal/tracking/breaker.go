// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/biblion-app/biblion/internal/logging"
	"github.com/biblion-app/biblion/internal/metrics"
	"github.com/biblion-app/biblion/internal/recommend"
)

// BreakerSource wraps a recommend.DataSource with a circuit breaker so a
// failing storage backend sheds load fast instead of stacking up slow reads.
// An open breaker surfaces as an upstream read failure, which the engine
// already degrades gracefully.
type BreakerSource struct {
	inner   recommend.DataSource
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerSource wraps the source. Five consecutive failures open the
// breaker; it half-opens after 30 seconds.
func NewBreakerSource(inner recommend.DataSource) *BreakerSource {
	settings := gobreaker.Settings{
		Name:        "interaction-store",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerStateChanges.WithLabelValues(name, to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &BreakerSource{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

var _ recommend.DataSource = (*BreakerSource)(nil)

// execute runs fn through the breaker and normalizes breaker rejections into
// upstream read failures.
func (s *BreakerSource) execute(fn func() (any, error)) (any, error) {
	result, err := s.breaker.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("%w: %w", recommend.ErrUpstreamRead, err)
	}
	return result, err
}

// UserInteractions implements recommend.DataSource.
func (s *BreakerSource) UserInteractions(ctx context.Context, userID string, since time.Time) ([]recommend.Interaction, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.UserInteractions(ctx, userID, since)
	})
	if err != nil {
		return nil, err
	}
	return result.([]recommend.Interaction), nil
}

// ItemInteractions implements recommend.DataSource.
func (s *BreakerSource) ItemInteractions(ctx context.Context, itemID string, since time.Time) ([]recommend.Interaction, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.ItemInteractions(ctx, itemID, since)
	})
	if err != nil {
		return nil, err
	}
	return result.([]recommend.Interaction), nil
}

// InteractionsSince implements recommend.DataSource.
func (s *BreakerSource) InteractionsSince(ctx context.Context, since time.Time) ([]recommend.Interaction, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.InteractionsSince(ctx, since)
	})
	if err != nil {
		return nil, err
	}
	return result.([]recommend.Interaction), nil
}

// Item implements recommend.DataSource.
func (s *BreakerSource) Item(ctx context.Context, itemID string) (*recommend.Item, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.Item(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	item, _ := result.(*recommend.Item)
	return item, nil
}

// CatalogItems implements recommend.DataSource.
func (s *BreakerSource) CatalogItems(ctx context.Context) ([]recommend.Item, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.CatalogItems(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]recommend.Item), nil
}
