// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/biblion-app/biblion/internal/logging"
	"github.com/biblion-app/biblion/internal/metrics"
)

// TopicInteractions is the event bus topic carrying recorded interactions.
const TopicInteractions = "interactions.recorded"

// Tracker validates interaction events, appends them to the log, folds them
// into the item index, and publishes them on the event bus for projections.
type Tracker struct {
	store     Store
	index     *ItemIndex
	publisher message.Publisher
	now       func() time.Time
}

// NewTracker creates a tracker. The publisher may be nil, in which case
// events are recorded without being published (useful in tests).
func NewTracker(store Store, index *ItemIndex, publisher message.Publisher) *Tracker {
	return &Tracker{
		store:     store,
		index:     index,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record validates and appends one event. Missing IDs or an unknown kind
// return an error wrapping ErrInvalidEvent; a zero timestamp is stamped with
// the current time and a missing event ID is generated. The stored event is
// returned.
func (t *Tracker) Record(ctx context.Context, event Event) (*Event, error) {
	if err := event.validate(); err != nil {
		metrics.InteractionsRejected.Inc()
		return nil, err
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = t.now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if err := t.store.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	if t.index != nil {
		t.index.Apply(event)
	}

	metrics.InteractionsRecorded.WithLabelValues(string(event.Kind)).Inc()
	t.publish(ctx, event)

	logging.Ctx(ctx).Debug().
		Str("user_id", event.UserID).
		Str("item_id", event.ItemID).
		Str("kind", string(event.Kind)).
		Msg("Interaction recorded")

	return &event, nil
}

// publish emits the event on the bus. Publish failures are logged, not
// returned: the event is already durably appended, and projections recover
// on the next rebuild.
func (t *Tracker) publish(ctx context.Context, event Event) {
	if t.publisher == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logging.Ctx(ctx).Err(err).Msg("Failed to encode interaction for publish")
		return
	}

	msg := message.NewMessage(event.ID, payload)
	if err := t.publisher.Publish(TopicInteractions, msg); err != nil {
		logging.Ctx(ctx).Err(err).Str("event_id", event.ID).Msg("Failed to publish interaction")
	}
}
