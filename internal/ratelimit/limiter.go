// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Package ratelimit implements the per-user admission controller.
//
// Each (user, action) pair owns a fixed-window counter. A request is admitted
// while the counter is below the action's limit; the check and the increment
// happen atomically, so concurrent requests can never both pass at the final
// slot. Counters are process-local and reset on restart.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/biblion-app/biblion/internal/logging"
)

// Limit is a fixed-window limit: Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Config holds per-action limits for the admission controller.
type Config struct {
	// Limits maps an action name to its limit.
	Limits map[string]Limit

	// Default applies to actions without an explicit limit.
	Default Limit

	// CleanupInterval is how often expired windows are dropped.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default admission controller configuration.
func DefaultConfig() Config {
	return Config{
		Limits:          map[string]Limit{},
		Default:         Limit{Requests: 60, Window: time.Minute},
		CleanupInterval: 5 * time.Minute,
	}
}

// Result describes the outcome of an admission check.
type Result struct {
	// Allowed reports whether the request was admitted. When true, the
	// request has already been counted against the window.
	Allowed bool

	// Limit is the window's request budget.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the current window expires.
	ResetAt time.Time

	// RetryAfter is how long to wait before retrying. Zero when allowed.
	RetryAfter time.Duration
}

// RateLimitedError is returned by CheckErr when a request is rejected.
type RateLimitedError struct {
	Action     string
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s, retry after %s", e.Action, e.RetryAfter.Round(time.Second))
}

// window is one fixed counting window for a (user, action) key.
type window struct {
	count   int
	resetAt time.Time
}

// Limiter is the admission controller. Construct it in main and inject it
// into the handlers that need it; it holds no package-level state.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     Config
	now     func() time.Time
}

// New creates a Limiter with the given configuration.
func New(cfg Config) *Limiter {
	if cfg.Default.Requests < 1 {
		cfg.Default = Limit{Requests: 60, Window: time.Minute}
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	return &Limiter{
		windows: make(map[string]*window),
		cfg:     cfg,
		now:     time.Now,
	}
}

// limitFor returns the limit configured for the action.
func (l *Limiter) limitFor(action string) Limit {
	if limit, ok := l.cfg.Limits[action]; ok && limit.Requests > 0 && limit.Window > 0 {
		return limit
	}
	return l.cfg.Default
}

// Check atomically checks and counts one request for the (user, action) key.
// The returned Result reports whether the request was admitted and, when it
// was not, how long to wait.
func (l *Limiter) Check(userID, action string) Result {
	limit := l.limitFor(action)
	key := userID + "\x00" + action

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		// New key or expired window: reset atomically.
		w = &window{resetAt: now.Add(limit.Window)}
		l.windows[key] = w
	}

	if w.count >= limit.Requests {
		return Result{
			Allowed:    false,
			Limit:      limit.Requests,
			Remaining:  0,
			ResetAt:    w.resetAt,
			RetryAfter: w.resetAt.Sub(now),
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - w.count,
		ResetAt:   w.resetAt,
	}
}

// CheckErr is like Check but returns a *RateLimitedError on rejection.
func (l *Limiter) CheckErr(userID, action string) (Result, error) {
	res := l.Check(userID, action)
	if !res.Allowed {
		return res, &RateLimitedError{
			Action:     action,
			RetryAfter: res.RetryAfter,
			ResetAt:    res.ResetAt,
		}
	}
	return res, nil
}

// cleanup drops expired windows and returns how many were removed.
func (l *Limiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Run drops expired windows on a ticker until the context is canceled.
// It implements suture.Service so the limiter can run under supervision.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := l.cleanup(); removed > 0 {
				logging.Debug().Int("count", removed).Msg("Dropped expired rate limit windows")
			}
		}
	}
}

// Serve implements suture.Service.
func (l *Limiter) Serve(ctx context.Context) error {
	return l.Run(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (l *Limiter) String() string {
	return "rate-limiter"
}

// Len returns the number of active windows. Intended for tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
