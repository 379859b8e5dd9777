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

// ItemIndex is the catalog snapshot derived from the interaction log: the
// latest metadata seen for each item. It stands in for the main document
// store, which is outside this service.
type ItemIndex struct {
	mu    sync.RWMutex
	items map[string]ItemRecord
}

// NewItemIndex creates an empty item index.
func NewItemIndex() *ItemIndex {
	return &ItemIndex{items: make(map[string]ItemRecord)}
}

// Apply folds one event into the index. Newer events win; events older than
// the current record are ignored so replay order does not matter.
func (ix *ItemIndex) Apply(event Event) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	current, ok := ix.items[event.ItemID]
	if ok && event.Timestamp.Before(current.LastSeen) {
		return
	}

	ix.items[event.ItemID] = ItemRecord{
		ItemID:     event.ItemID,
		Categories: event.Categories,
		Tags:       event.Tags,
		Author:     event.Author,
		Format:     event.Format,
		Publisher:  event.Publisher,
		Year:       event.Year,
		LastSeen:   event.Timestamp,
	}
}

// Item returns the record for an item and whether it is known.
func (ix *ItemIndex) Item(itemID string) (ItemRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.items[itemID]
	return rec, ok
}

// All returns a copy of every known item record.
func (ix *ItemIndex) All() []ItemRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]ItemRecord, 0, len(ix.items))
	for _, rec := range ix.items {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of known items.
func (ix *ItemIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.items)
}

// Rebuild repopulates the index from the event log. Called once at startup
// before the HTTP surface comes up.
func (ix *ItemIndex) Rebuild(ctx context.Context, store Store) error {
	events, err := store.EventsSince(ctx, time.Time{})
	if err != nil {
		return err
	}

	for _, event := range events {
		ix.Apply(event)
	}
	return nil
}
