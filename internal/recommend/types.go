// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Package recommend implements the personalized recommendation engine:
// reading-profile construction, candidate generation across several
// strategies, score blending, and diversity re-ranking.
//
// The package defines its own interaction and item types plus the DataSource
// interface it reads through, so it has no dependency on the tracking
// package; adapters convert at the boundary.
package recommend

import (
	"context"
	"errors"
	"time"
)

// EventKind classifies an interaction for scoring purposes.
type EventKind string

const (
	EventView     EventKind = "view"
	EventBorrow   EventKind = "borrow"
	EventBookmark EventKind = "bookmark"
)

// Weight returns the base signal strength of the event kind.
// Borrowing is the strongest signal, bookmarking intermediate, viewing weakest.
func (k EventKind) Weight() float64 {
	switch k {
	case EventBorrow:
		return 3
	case EventBookmark:
		return 2
	case EventView:
		return 1
	default:
		return 0
	}
}

// Interaction is one event from the interaction log, with the book metadata
// denormalized onto it.
type Interaction struct {
	UserID     string
	ItemID     string
	Kind       EventKind
	Categories []string
	Tags       []string
	Author     string
	Format     string
	Publisher  string
	Year       int
	Timestamp  time.Time
}

// Item is a catalog entry as seen by the engine.
type Item struct {
	ID         string   `json:"id"`
	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Author     string   `json:"author,omitempty"`
	Format     string   `json:"format,omitempty"`
	Publisher  string   `json:"publisher,omitempty"`
	Year       int      `json:"year,omitempty"`
}

// Candidate is one raw-scored item produced by a single generator.
type Candidate struct {
	ItemID string
	Score  float64
}

// ScoredItem is one blended recommendation.
type ScoredItem struct {
	ItemID string `json:"item_id"`
	// Score is the blended score in [0, 1].
	Score float64 `json:"score"`
	// Sources lists the strategies that contributed to this item.
	Sources []string `json:"sources"`
	Item    *Item    `json:"item,omitempty"`
}

// Profile is a user's reading profile: per-attribute-group weight vectors,
// each normalized to sum to 1.
type Profile struct {
	Categories map[string]float64 `json:"categories,omitempty"`
	Tags       map[string]float64 `json:"tags,omitempty"`
	Authors    map[string]float64 `json:"authors,omitempty"`
	Formats    map[string]float64 `json:"formats,omitempty"`

	// EventCount is the number of interactions the profile was built from.
	EventCount  int       `json:"event_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// IsEmpty reports whether the profile carries no signal.
func (p *Profile) IsEmpty() bool {
	return p == nil || p.EventCount == 0
}

// Request contexts.
const (
	ContextBrowse     = "browse"
	ContextBookDetail = "book-detail"
)

// Request is one recommendation request.
type Request struct {
	UserID string

	// Limit is the maximum number of recommendations to return.
	// Zero means the configured default.
	Limit int

	// ExcludeBookIDs are never returned (e.g. the user's current loans).
	ExcludeBookIDs []string

	// Context is ContextBrowse (default) or ContextBookDetail.
	Context string

	// BookID anchors "more like this" scoring in the book-detail context.
	BookID string
}

// Response is the engine's answer.
type Response struct {
	Recommendations []ScoredItem `json:"recommendations"`

	// Profile is the profile snapshot the recommendations were computed
	// against, or nil when the user had no usable history.
	Profile *Profile `json:"profile"`
}

// DataSource is the engine's read interface over the interaction log and the
// derived catalog snapshot. Implementations must be safe for concurrent use.
type DataSource interface {
	// UserInteractions returns a user's interactions at or after since.
	UserInteractions(ctx context.Context, userID string, since time.Time) ([]Interaction, error)

	// ItemInteractions returns an item's interactions at or after since.
	ItemInteractions(ctx context.Context, itemID string, since time.Time) ([]Interaction, error)

	// InteractionsSince returns all interactions at or after since.
	InteractionsSince(ctx context.Context, since time.Time) ([]Interaction, error)

	// Item returns the catalog entry for an item, or nil when unknown.
	Item(ctx context.Context, itemID string) (*Item, error)

	// CatalogItems returns every known catalog entry.
	CatalogItems(ctx context.Context) ([]Item, error)
}

// Generator produces raw-scored candidates for one strategy. A nil candidate
// slice is a valid empty contribution.
type Generator interface {
	// Name returns the strategy identifier used for blend weights and metrics.
	Name() string

	// Generate returns raw-scored candidates for the request, sorted by
	// descending score with ascending item ID as tie-break, capped at the
	// configured fan-out.
	Generate(ctx context.Context, req Request, profile *Profile) ([]Candidate, error)
}

// Reranker reorders blended recommendations, e.g. for diversity.
type Reranker interface {
	Rerank(items []ScoredItem, limit int) []ScoredItem
}

// Sentinel errors.
var (
	// ErrInvalidArgument reports a malformed request (bad limit, unknown
	// context, or a book-detail request without a book).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamRead reports that the interaction log could not be read.
	ErrUpstreamRead = errors.New("upstream read failure")
)

// Strategy names, used as blend weight keys and response sources.
const (
	StrategyCollaborative = "collaborative"
	StrategyContent       = "content"
	StrategyPopularity    = "popularity"
	StrategyEngagement    = "engagement"
)
