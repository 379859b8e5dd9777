// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"sync"
	"time"
)

// slidingCounter is a bucketed sliding window counter. Time is divided into
// equal buckets in a circular buffer; the window count is the bucket sum.
// Increment is O(1), Count is O(buckets).
type slidingCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
	now        func() time.Time
}

func newSlidingCounter(windowSize time.Duration, numBuckets int, now func() time.Time) *slidingCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if now == nil {
		now = time.Now
	}

	return &slidingCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		numBuckets: numBuckets,
		lastUpdate: now(),
		now:        now,
	}
}

// Increment adds delta to the current bucket.
func (c *slidingCounter) Increment(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advance()
	c.buckets[c.current] += delta
}

// Count returns the sum of all buckets in the window.
func (c *slidingCounter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advance()

	var total int64
	for _, count := range c.buckets {
		total += count
	}
	return total
}

// advance expires buckets that have fallen out of the window.
// Caller holds the lock.
func (c *slidingCounter) advance() {
	elapsed := c.now().Sub(c.lastUpdate)
	bucketsElapsed := int(elapsed / c.bucketSize)
	if bucketsElapsed <= 0 {
		return
	}

	if bucketsElapsed >= c.numBuckets {
		for i := range c.buckets {
			c.buckets[i] = 0
		}
		c.current = 0
	} else {
		for i := 0; i < bucketsElapsed; i++ {
			c.current = (c.current + 1) % c.numBuckets
			c.buckets[c.current] = 0
		}
	}

	c.lastUpdate = c.now()
}

// windowStore keys sliding window counters by item ID.
type windowStore struct {
	mu         sync.RWMutex
	counters   map[string]*slidingCounter
	windowSize time.Duration
	numBuckets int
	maxKeys    int
	now        func() time.Time
}

func newWindowStore(windowSize time.Duration, numBuckets, maxKeys int, now func() time.Time) *windowStore {
	return &windowStore{
		counters:   make(map[string]*slidingCounter),
		windowSize: windowSize,
		numBuckets: numBuckets,
		maxKeys:    maxKeys,
		now:        now,
	}
}

// Increment adds delta to the counter for key, creating it if needed.
func (s *windowStore) Increment(key string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok {
		if s.maxKeys > 0 && len(s.counters) >= s.maxKeys {
			s.evictOne()
		}
		counter = newSlidingCounter(s.windowSize, s.numBuckets, s.now)
		s.counters[key] = counter
	}

	counter.Increment(delta)
}

// Count returns the windowed count for key.
func (s *windowStore) Count(key string) int64 {
	s.mu.RLock()
	counter, ok := s.counters[key]
	s.mu.RUnlock()

	if !ok {
		return 0
	}
	return counter.Count()
}

// Keys returns all tracked keys.
func (s *windowStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.counters))
	for key := range s.counters {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of tracked keys.
func (s *windowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// CleanupInactive drops counters whose window has emptied.
func (s *windowStore) CleanupInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, counter := range s.counters {
		if counter.Count() == 0 {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// evictOne removes an arbitrary counter when at capacity.
// Caller holds the lock.
func (s *windowStore) evictOne() {
	for key := range s.counters {
		delete(s.counters, key)
		return
	}
}
