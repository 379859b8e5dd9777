// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"context"
	"sync"
	"time"
)

// Store is the append-only interaction log. Events are never updated or
// deleted; reads return events in append order, which is timestamp-ascending
// when events are stamped at record time, as the tracker does.
type Store interface {
	// Append adds one event to the log.
	Append(ctx context.Context, event Event) error

	// UserEvents returns the user's events at or after since, oldest first.
	UserEvents(ctx context.Context, userID string, since time.Time) ([]Event, error)

	// ItemEvents returns the item's events at or after since, oldest first.
	ItemEvents(ctx context.Context, itemID string, since time.Time) ([]Event, error)

	// EventsSince returns all events at or after since, oldest first.
	EventsSince(ctx context.Context, since time.Time) ([]Event, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []Event
	byUser  map[string][]int
	byItem  map[string][]int
}

// NewMemoryStore creates an empty in-memory interaction log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser: make(map[string][]int),
		byItem: make(map[string][]int),
	}
}

// Append adds one event to the log.
func (s *MemoryStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.events)
	s.events = append(s.events, event)
	s.byUser[event.UserID] = append(s.byUser[event.UserID], idx)
	s.byItem[event.ItemID] = append(s.byItem[event.ItemID], idx)
	return nil
}

// UserEvents returns the user's events at or after since.
func (s *MemoryStore) UserEvents(ctx context.Context, userID string, since time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byUser[userID], since), nil
}

// ItemEvents returns the item's events at or after since.
func (s *MemoryStore) ItemEvents(ctx context.Context, itemID string, since time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byItem[itemID], since), nil
}

// EventsSince returns all events at or after since.
func (s *MemoryStore) EventsSince(ctx context.Context, since time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// collect gathers the indexed events at or after since. Caller holds the lock.
func (s *MemoryStore) collect(indices []int, since time.Time) []Event {
	var out []Event
	for _, idx := range indices {
		if e := s.events[idx]; !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the total number of events in the log.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
