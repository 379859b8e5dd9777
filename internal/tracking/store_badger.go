// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package tracking

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/biblion-app/biblion/internal/logging"
)

// Key layout:
//
//	evt/<seq>            -> event JSON, seq is a zero-padded monotonic sequence
//	usr/<userID>/<seq>   -> evt key
//	itm/<itemID>/<seq>   -> evt key
//
// The sequence preserves append order, so prefix iteration returns events
// oldest first without sorting.
const (
	eventPrefix = "evt/"
	userPrefix  = "usr/"
	itemPrefix  = "itm/"

	seqBandwidth = 128
)

// BadgerStore is a persistent Store backed by BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerStore opens (or creates) the interaction log at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty; we log around it

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq/events"), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open event sequence: %w", err)
	}

	logging.Info().Str("path", path).Msg("Interaction log opened")

	return &BadgerStore{db: db, seq: seq}, nil
}

// Append adds one event to the log.
func (s *BadgerStore) Append(ctx context.Context, event Event) error {
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next event sequence: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	seqKey := fmt.Sprintf("%020d", n)
	eventKey := []byte(eventPrefix + seqKey)
	userKey := []byte(userPrefix + event.UserID + "/" + seqKey)
	itemKey := []byte(itemPrefix + event.ItemID + "/" + seqKey)

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(eventKey, data); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		if err := txn.Set(userKey, eventKey); err != nil {
			return fmt.Errorf("write user index: %w", err)
		}
		if err := txn.Set(itemKey, eventKey); err != nil {
			return fmt.Errorf("write item index: %w", err)
		}
		return nil
	})
}

// UserEvents returns the user's events at or after since, oldest first.
func (s *BadgerStore) UserEvents(ctx context.Context, userID string, since time.Time) ([]Event, error) {
	return s.eventsByIndex(ctx, userPrefix+userID+"/", since)
}

// ItemEvents returns the item's events at or after since, oldest first.
func (s *BadgerStore) ItemEvents(ctx context.Context, itemID string, since time.Time) ([]Event, error) {
	return s.eventsByIndex(ctx, itemPrefix+itemID+"/", since)
}

// eventsByIndex walks an index prefix and loads the referenced events.
func (s *BadgerStore) eventsByIndex(ctx context.Context, prefix string, since time.Time) ([]Event, error) {
	var events []Event

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var eventKey []byte
			if err := it.Item().Value(func(val []byte) error {
				eventKey = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return fmt.Errorf("read index value: %w", err)
			}

			event, err := loadEvent(txn, eventKey)
			if err != nil {
				return err
			}
			if !event.Timestamp.Before(since) {
				events = append(events, event)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// EventsSince returns all events at or after since, oldest first.
func (s *BadgerStore) EventsSince(ctx context.Context, since time.Time) ([]Event, error) {
	var events []Event

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var event Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			if !event.Timestamp.Before(since) {
				events = append(events, event)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// loadEvent reads and decodes one event within an open transaction.
func loadEvent(txn *badger.Txn, key []byte) (Event, error) {
	var event Event

	item, err := txn.Get(key)
	if err != nil {
		return event, fmt.Errorf("load event %s: %w", key, err)
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &event)
	})
	if err != nil {
		return event, fmt.Errorf("decode event %s: %w", key, err)
	}

	return event, nil
}

// Close releases the event sequence and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		logging.Err(err).Msg("Failed to release event sequence")
	}
	return s.db.Close()
}
