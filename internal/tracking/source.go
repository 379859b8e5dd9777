// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"context"
	"time"

	"github.com/biblion-app/biblion/internal/recommend"
)

// Source adapts the interaction log and the item index to the recommendation
// engine's read interface. Conversions happen here so the recommend package
// never sees tracking types.
type Source struct {
	store Store
	index *ItemIndex
}

// NewSource creates the engine-facing adapter.
func NewSource(store Store, index *ItemIndex) *Source {
	return &Source{store: store, index: index}
}

var _ recommend.DataSource = (*Source)(nil)

// UserInteractions implements recommend.DataSource.
func (s *Source) UserInteractions(ctx context.Context, userID string, since time.Time) ([]recommend.Interaction, error) {
	events, err := s.store.UserEvents(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	return toInteractions(events), nil
}

// ItemInteractions implements recommend.DataSource.
func (s *Source) ItemInteractions(ctx context.Context, itemID string, since time.Time) ([]recommend.Interaction, error) {
	events, err := s.store.ItemEvents(ctx, itemID, since)
	if err != nil {
		return nil, err
	}
	return toInteractions(events), nil
}

// InteractionsSince implements recommend.DataSource.
func (s *Source) InteractionsSince(ctx context.Context, since time.Time) ([]recommend.Interaction, error) {
	events, err := s.store.EventsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return toInteractions(events), nil
}

// Item implements recommend.DataSource. Unknown items return nil, not an
// error; the caller decides whether that matters.
func (s *Source) Item(ctx context.Context, itemID string) (*recommend.Item, error) {
	rec, ok := s.index.Item(itemID)
	if !ok {
		return nil, nil
	}
	item := toItem(rec)
	return &item, nil
}

// CatalogItems implements recommend.DataSource.
func (s *Source) CatalogItems(ctx context.Context) ([]recommend.Item, error) {
	records := s.index.All()
	items := make([]recommend.Item, len(records))
	for i, rec := range records {
		items[i] = toItem(rec)
	}
	return items, nil
}

func toInteractions(events []Event) []recommend.Interaction {
	if len(events) == 0 {
		return nil
	}

	out := make([]recommend.Interaction, len(events))
	for i, e := range events {
		out[i] = recommend.Interaction{
			UserID:     e.UserID,
			ItemID:     e.ItemID,
			Kind:       recommend.EventKind(e.Kind),
			Categories: e.Categories,
			Tags:       e.Tags,
			Author:     e.Author,
			Format:     e.Format,
			Publisher:  e.Publisher,
			Year:       e.Year,
			Timestamp:  e.Timestamp,
		}
	}
	return out
}

func toItem(rec ItemRecord) recommend.Item {
	return recommend.Item{
		ID:         rec.ItemID,
		Categories: rec.Categories,
		Tags:       rec.Tags,
		Author:     rec.Author,
		Format:     rec.Format,
		Publisher:  rec.Publisher,
		Year:       rec.Year,
	}
}
