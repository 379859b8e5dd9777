// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package recommend

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestProfileBuilder(source DataSource) *ProfileBuilder {
	b := NewProfileBuilder(source, 30, 90*24*time.Hour)
	b.now = func() time.Time { return baseTime }
	return b
}

func TestEventKindWeight(t *testing.T) {
	tests := []struct {
		kind EventKind
		want float64
	}{
		{EventBorrow, 3},
		{EventBookmark, 2},
		{EventView, 1},
		{EventKind("rating"), 0},
	}

	for _, tt := range tests {
		if got := tt.kind.Weight(); got != tt.want {
			t.Errorf("Weight(%q) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestFromInteractionsWeightsAndNormalization(t *testing.T) {
	b := newTestProfileBuilder(nil)

	// Borrow of fantasy (weight 3) and view of scifi (weight 1), both at
	// zero age so decay is 1. Expect 0.75 / 0.25 after normalization.
	interactions := []Interaction{
		{ItemID: "b1", Kind: EventBorrow, Categories: []string{"fantasy"}, Author: "le-guin", Timestamp: baseTime},
		{ItemID: "b2", Kind: EventView, Categories: []string{"scifi"}, Author: "herbert", Timestamp: baseTime},
	}

	profile := b.FromInteractions(interactions, baseTime)

	if profile.EventCount != 2 {
		t.Fatalf("EventCount = %d, want 2", profile.EventCount)
	}
	if got := profile.Categories["fantasy"]; math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Categories[fantasy] = %v, want 0.75", got)
	}
	if got := profile.Categories["scifi"]; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Categories[scifi] = %v, want 0.25", got)
	}

	var sum float64
	for _, v := range profile.Authors {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Authors sum = %v, want 1", sum)
	}
}

func TestFromInteractionsRecencyDecay(t *testing.T) {
	b := newTestProfileBuilder(nil)

	// Same kind and weight, 30 days apart: the older event should carry
	// exp(-1) of the newer one's weight before normalization.
	interactions := []Interaction{
		{ItemID: "b1", Kind: EventView, Categories: []string{"recent"}, Timestamp: baseTime},
		{ItemID: "b2", Kind: EventView, Categories: []string{"old"}, Timestamp: baseTime.Add(-30 * 24 * time.Hour)},
	}

	profile := b.FromInteractions(interactions, baseTime)

	decayed := math.Exp(-1)
	wantRecent := 1 / (1 + decayed)
	wantOld := decayed / (1 + decayed)

	if got := profile.Categories["recent"]; math.Abs(got-wantRecent) > 1e-9 {
		t.Errorf("Categories[recent] = %v, want %v", got, wantRecent)
	}
	if got := profile.Categories["old"]; math.Abs(got-wantOld) > 1e-9 {
		t.Errorf("Categories[old] = %v, want %v", got, wantOld)
	}
}

func TestFromInteractionsEmptyHistory(t *testing.T) {
	b := newTestProfileBuilder(nil)

	profile := b.FromInteractions(nil, baseTime)

	if !profile.IsEmpty() {
		t.Errorf("IsEmpty() = false, want true")
	}
	if profile.EventCount != 0 {
		t.Errorf("EventCount = %d, want 0", profile.EventCount)
	}
}

func TestBuildWrapsSourceError(t *testing.T) {
	source := &fakeSource{userErr: errors.New("disk gone")}
	b := newTestProfileBuilder(source)

	_, err := b.Build(context.Background(), "u1")
	if !errors.Is(err, ErrUpstreamRead) {
		t.Fatalf("Build() error = %v, want ErrUpstreamRead", err)
	}
}

func TestBuildRespectsLookback(t *testing.T) {
	source := &fakeSource{}
	b := newTestProfileBuilder(source)

	if _, err := b.Build(context.Background(), "u1"); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	wantSince := baseTime.Add(-90 * 24 * time.Hour)
	if !source.lastUserSince.Equal(wantSince) {
		t.Errorf("since = %v, want %v", source.lastUserSince, wantSince)
	}
}
