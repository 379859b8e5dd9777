// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/biblion-app/biblion/internal/recommend"
)

func newSeededSource(t *testing.T) *Source {
	t.Helper()

	store := NewMemoryStore()
	index := NewItemIndex()
	tracker := NewTracker(store, index, nil)

	events := []Event{
		{UserID: "u1", ItemID: "b1", Kind: KindBorrow, Categories: []string{"fantasy"}, Author: "tolkien", Timestamp: baseTime},
		{UserID: "u2", ItemID: "b1", Kind: KindView, Categories: []string{"fantasy"}, Author: "tolkien", Timestamp: baseTime.Add(time.Minute)},
		{UserID: "u1", ItemID: "b2", Kind: KindBookmark, Categories: []string{"scifi"}, Author: "herbert", Timestamp: baseTime.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if _, err := tracker.Record(context.Background(), e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	return NewSource(store, index)
}

func TestSourceUserInteractions(t *testing.T) {
	source := newSeededSource(t)

	interactions, err := source.UserInteractions(context.Background(), "u1", time.Time{})
	if err != nil {
		t.Fatalf("UserInteractions() error = %v", err)
	}
	if len(interactions) != 2 {
		t.Fatalf("len = %d, want 2", len(interactions))
	}
	if interactions[0].Kind != recommend.EventBorrow {
		t.Errorf("kind = %q, want borrow", interactions[0].Kind)
	}
	if interactions[0].Author != "tolkien" {
		t.Errorf("author = %q, want denormalized metadata carried over", interactions[0].Author)
	}
}

func TestSourceItemLookup(t *testing.T) {
	source := newSeededSource(t)

	item, err := source.Item(context.Background(), "b2")
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if item == nil || item.Author != "herbert" {
		t.Fatalf("item = %+v, want b2 metadata", item)
	}

	missing, err := source.Item(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if missing != nil {
		t.Errorf("item = %+v, want nil for unknown item", missing)
	}
}

func TestSourceCatalogItems(t *testing.T) {
	source := newSeededSource(t)

	items, err := source.CatalogItems(context.Background())
	if err != nil {
		t.Fatalf("CatalogItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

// failingSource always errors, for breaker tests.
type failingSource struct{}

var errStoreDown = errors.New("store down")

func (failingSource) UserInteractions(context.Context, string, time.Time) ([]recommend.Interaction, error) {
	return nil, errStoreDown
}
func (failingSource) ItemInteractions(context.Context, string, time.Time) ([]recommend.Interaction, error) {
	return nil, errStoreDown
}
func (failingSource) InteractionsSince(context.Context, time.Time) ([]recommend.Interaction, error) {
	return nil, errStoreDown
}
func (failingSource) Item(context.Context, string) (*recommend.Item, error) {
	return nil, errStoreDown
}
func (failingSource) CatalogItems(context.Context) ([]recommend.Item, error) {
	return nil, errStoreDown
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	wrapped := NewBreakerSource(failingSource{})
	ctx := context.Background()

	// First failures pass the inner error through.
	for i := 0; i < 5; i++ {
		_, err := wrapped.InteractionsSince(ctx, time.Time{})
		if !errors.Is(err, errStoreDown) {
			t.Fatalf("call %d error = %v, want inner error", i, err)
		}
	}

	// Breaker is now open and rejects without touching the source.
	_, err := wrapped.InteractionsSince(ctx, time.Time{})
	if !errors.Is(err, recommend.ErrUpstreamRead) {
		t.Fatalf("error = %v, want ErrUpstreamRead once open", err)
	}
}

func TestBreakerPassesThroughHealthySource(t *testing.T) {
	wrapped := NewBreakerSource(newSeededSource(t))

	interactions, err := wrapped.UserInteractions(context.Background(), "u1", time.Time{})
	if err != nil {
		t.Fatalf("UserInteractions() error = %v", err)
	}
	if len(interactions) != 2 {
		t.Errorf("len = %d, want 2", len(interactions))
	}
}
