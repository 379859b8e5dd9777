// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"testing"
	"time"
)

// fakeClock drives sliding windows in tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time            { return c.t }
func (c *fakeClock) Advance(d time.Duration)   { c.t = c.t.Add(d) }

func TestSlidingCounterExpiry(t *testing.T) {
	clock := &fakeClock{t: baseTime}
	counter := newSlidingCounter(10*time.Minute, 10, clock.Now)

	counter.Increment(3)
	if got := counter.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}

	// Half the window later the count survives.
	clock.Advance(5 * time.Minute)
	counter.Increment(2)
	if got := counter.Count(); got != 5 {
		t.Fatalf("Count() = %d, want 5", got)
	}

	// Past the full window everything expires.
	clock.Advance(11 * time.Minute)
	if got := counter.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0 after window expiry", got)
	}
}

func TestSlidingCounterPartialExpiry(t *testing.T) {
	clock := &fakeClock{t: baseTime}
	counter := newSlidingCounter(10*time.Minute, 10, clock.Now)

	counter.Increment(1)
	clock.Advance(8 * time.Minute)
	counter.Increment(1)

	// Two more minutes push the first increment out but keep the second.
	clock.Advance(3 * time.Minute)
	if got := counter.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestWindowStoreKeysAndCleanup(t *testing.T) {
	clock := &fakeClock{t: baseTime}
	store := newWindowStore(10*time.Minute, 10, 0, clock.Now)

	store.Increment("b1", 1)
	store.Increment("b2", 1)

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}

	clock.Advance(11 * time.Minute)
	store.Increment("b3", 1)

	removed := store.CleanupInactive()
	if removed != 2 {
		t.Errorf("CleanupInactive() = %d, want 2", removed)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if store.Count("b3") != 1 {
		t.Errorf("Count(b3) = %d, want 1", store.Count("b3"))
	}
}

func TestWindowStoreCapacityEviction(t *testing.T) {
	store := newWindowStore(10*time.Minute, 10, 2, nil)

	store.Increment("b1", 1)
	store.Increment("b2", 1)
	store.Increment("b3", 1)

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want capacity 2", store.Len())
	}
}
