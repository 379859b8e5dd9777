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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func validEvent() Event {
	return Event{
		UserID:     "u1",
		ItemID:     "b1",
		Kind:       KindBorrow,
		Categories: []string{"fantasy"},
		Author:     "tolkien",
		Timestamp:  baseTime,
	}
}

func TestRecordValidation(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), NewItemIndex(), nil)

	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing user", func(e *Event) { e.UserID = "" }},
		{"missing item", func(e *Event) { e.ItemID = "" }},
		{"missing kind", func(e *Event) { e.Kind = "" }},
		{"unknown kind", func(e *Event) { e.Kind = "rating" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(&event)

			_, err := tracker.Record(context.Background(), event)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Record() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestRecordStampsIDAndTimestamp(t *testing.T) {
	store := NewMemoryStore()
	tracker := NewTracker(store, NewItemIndex(), nil)
	tracker.now = func() time.Time { return baseTime }

	event := validEvent()
	event.Timestamp = time.Time{}

	stored, err := tracker.Record(context.Background(), event)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if stored.ID == "" {
		t.Error("ID was not generated")
	}
	if !stored.Timestamp.Equal(baseTime) {
		t.Errorf("Timestamp = %v, want %v", stored.Timestamp, baseTime)
	}
	if store.Len() != 1 {
		t.Errorf("store.Len() = %d, want 1", store.Len())
	}
}

func TestRecordUpdatesIndex(t *testing.T) {
	index := NewItemIndex()
	tracker := NewTracker(NewMemoryStore(), index, nil)

	if _, err := tracker.Record(context.Background(), validEvent()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	rec, ok := index.Item("b1")
	if !ok {
		t.Fatal("item b1 missing from index")
	}
	if rec.Author != "tolkien" {
		t.Errorf("Author = %q, want tolkien", rec.Author)
	}
}

func TestRecordPublishes(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := bus.Subscribe(ctx, TopicInteractions)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	tracker := NewTracker(NewMemoryStore(), NewItemIndex(), bus)

	stored, err := tracker.Record(ctx, validEvent())
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	select {
	case msg := <-messages:
		if msg.UUID != stored.ID {
			t.Errorf("message UUID = %q, want %q", msg.UUID, stored.ID)
		}
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no message published")
	}
}
