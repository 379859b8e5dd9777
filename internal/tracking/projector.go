// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"context"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/biblion-app/biblion/internal/logging"
	"github.com/biblion-app/biblion/internal/metrics"
)

// ProjectorConfig configures the trending projection windows.
type ProjectorConfig struct {
	// ShortWindow and LongWindow define the engagement ratio: the short-window
	// event rate over the long-window event rate.
	ShortWindow time.Duration
	LongWindow  time.Duration

	// Buckets is the bucket count per sliding window.
	Buckets int

	// MaxItems caps the number of tracked items.
	MaxItems int

	// MinLongCount is the minimum long-window count before an item appears in
	// trending results. Guards against tiny baselines producing huge ratios.
	MinLongCount int64
}

// DefaultProjectorConfig returns the default trending projection windows.
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		ShortWindow:  7 * 24 * time.Hour,
		LongWindow:   30 * 24 * time.Hour,
		Buckets:      30,
		MaxItems:     100000,
		MinLongCount: 3,
	}
}

// TrendingItem is one entry in the trending projection.
type TrendingItem struct {
	ItemID     string  `json:"item_id"`
	ShortCount int64   `json:"short_count"`
	LongCount  int64   `json:"long_count"`
	Ratio      float64 `json:"ratio"`
}

// Projector consumes recorded interactions from the event bus and maintains
// per-item sliding-window counts for the trending endpoint and the
// engagement metrics.
type Projector struct {
	cfg        ProjectorConfig
	subscriber message.Subscriber
	short      *windowStore
	long       *windowStore
}

// NewProjector creates a projector reading from the given subscriber.
// The subscriber may be nil when the projector is fed directly via Apply.
func NewProjector(cfg ProjectorConfig, subscriber message.Subscriber) *Projector {
	if cfg.ShortWindow <= 0 || cfg.LongWindow <= cfg.ShortWindow {
		cfg = DefaultProjectorConfig()
	}

	return &Projector{
		cfg:        cfg,
		subscriber: subscriber,
		short:      newWindowStore(cfg.ShortWindow, cfg.Buckets, cfg.MaxItems, nil),
		long:       newWindowStore(cfg.LongWindow, cfg.Buckets, cfg.MaxItems, nil),
	}
}

// Apply folds one event into the projection.
func (p *Projector) Apply(event Event) {
	p.short.Increment(event.ItemID, 1)
	p.long.Increment(event.ItemID, 1)
	metrics.TrendingEventsProjected.Inc()
	metrics.TrendingTrackedItems.Set(float64(p.long.Len()))
}

// Serve implements suture.Service: it consumes the interactions topic until
// the context is canceled.
func (p *Projector) Serve(ctx context.Context) error {
	messages, err := p.subscriber.Subscribe(ctx, TopicInteractions)
	if err != nil {
		return err
	}

	logging.Info().Str("topic", TopicInteractions).Msg("Trending projector started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			p.handle(msg)
		}
	}
}

// handle decodes and applies one bus message. Malformed messages are acked
// and dropped; redelivery would not make them parseable.
func (p *Projector) handle(msg *message.Message) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed interaction message")
		msg.Ack()
		return
	}

	p.Apply(event)
	msg.Ack()
}

// String implements fmt.Stringer for supervisor logs.
func (p *Projector) String() string {
	return "trending-projector"
}

// Trending returns up to limit items ranked by their engagement ratio
// (short-window rate over long-window rate), highest first. Only items whose
// ratio exceeds 1 and whose long-window count meets the baseline are
// included. Ties break on item ID for deterministic output.
func (p *Projector) Trending(limit int) []TrendingItem {
	shortDays := p.cfg.ShortWindow.Hours() / 24
	longDays := p.cfg.LongWindow.Hours() / 24

	var items []TrendingItem
	for _, itemID := range p.long.Keys() {
		longCount := p.long.Count(itemID)
		if longCount < p.cfg.MinLongCount {
			continue
		}

		shortCount := p.short.Count(itemID)
		shortRate := float64(shortCount) / shortDays
		longRate := float64(longCount) / longDays
		if longRate == 0 {
			continue
		}

		ratio := shortRate / longRate
		if ratio <= 1 {
			continue
		}

		items = append(items, TrendingItem{
			ItemID:     itemID,
			ShortCount: shortCount,
			LongCount:  longCount,
			Ratio:      ratio,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Ratio != items[j].Ratio {
			return items[i].Ratio > items[j].Ratio
		}
		return items[i].ItemID < items[j].ItemID
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
