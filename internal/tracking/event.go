// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Package tracking implements the append-only interaction log: the event
// model, its storage backends, the tracker that validates and records events,
// and the projections derived from the event stream.
package tracking

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an interaction event.
type Kind string

const (
	KindView     Kind = "view"
	KindBorrow   Kind = "borrow"
	KindBookmark Kind = "bookmark"
)

// Valid reports whether the kind is one of the known event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindView, KindBorrow, KindBookmark:
		return true
	}
	return false
}

// Event is one immutable entry in the interaction log. Book metadata is
// denormalized onto the event so the log is self-contained; the catalog
// document store stays out of the read path.
type Event struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ItemID     string    `json:"item_id"`
	Kind       Kind      `json:"kind"`
	Categories []string  `json:"categories,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Author     string    `json:"author,omitempty"`
	Format     string    `json:"format,omitempty"`
	Publisher  string    `json:"publisher,omitempty"`
	Year       int       `json:"year,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrInvalidEvent is the sentinel wrapped by all event validation failures.
var ErrInvalidEvent = errors.New("invalid interaction event")

// validate checks the event's required fields.
func (e *Event) validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}
	if e.ItemID == "" {
		return fmt.Errorf("%w: item_id is required", ErrInvalidEvent)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: kind %q is not one of view, borrow, bookmark", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// ItemRecord is the latest known metadata for an item, derived from the most
// recent event that referenced it.
type ItemRecord struct {
	ItemID     string    `json:"item_id"`
	Categories []string  `json:"categories,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Author     string    `json:"author,omitempty"`
	Format     string    `json:"format,omitempty"`
	Publisher  string    `json:"publisher,omitempty"`
	Year       int       `json:"year,omitempty"`
	LastSeen   time.Time `json:"last_seen"`
}
