// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/biblion-app/biblion/internal/ratelimit"
	"github.com/biblion-app/biblion/internal/recommend"
	"github.com/biblion-app/biblion/internal/recommend/algorithms"
	"github.com/biblion-app/biblion/internal/recommend/reranking"
	"github.com/biblion-app/biblion/internal/tracking"
)

// testEnv wires a full in-memory service for handler tests.
type testEnv struct {
	handler *Handler
	tracker *tracking.Tracker
}

func newTestEnv(t *testing.T, limits map[string]ratelimit.Limit) *testEnv {
	t.Helper()

	store := tracking.NewMemoryStore()
	index := tracking.NewItemIndex()
	tracker := tracking.NewTracker(store, index, nil)
	projector := tracking.NewProjector(tracking.DefaultProjectorConfig(), nil)

	source := tracking.NewSource(store, index)
	cfg := recommend.DefaultConfig()
	engine := recommend.NewEngine(cfg, source, algorithms.All(source, cfg), reranking.NewCategoryCap(0.4))

	var limiter *ratelimit.Limiter
	if limits != nil {
		limiter = ratelimit.New(ratelimit.Config{Limits: limits, CleanupInterval: time.Minute})
	}

	return &testEnv{
		handler: NewHandler(tracker, engine, projector, limiter),
		tracker: tracker,
	}
}

// doJSON performs an authenticated request against a bare handler func.
func doJSON(handlerFn http.HandlerFunc, method, target, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req = req.WithContext(contextWithUserID(context.Background(), userID))
	}
	rec := httptest.NewRecorder()
	handlerFn(rec, req)
	return rec
}

func TestRecordInteraction(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(env.handler.RecordInteraction, http.MethodPost, "/api/v1/interactions", "u1", InteractionRequest{
		ItemID:     "b1",
		Kind:       "borrow",
		Categories: []string{"fantasy"},
		Author:     "tolkien",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("Success = false, want true")
	}
}

func TestRecordInteractionValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body InteractionRequest
	}{
		{"missing item", InteractionRequest{Kind: "view"}},
		{"missing kind", InteractionRequest{ItemID: "b1"}},
		{"unknown kind", InteractionRequest{ItemID: "b1", Kind: "rating"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(env.handler.RecordInteraction, http.MethodPost, "/api/v1/interactions", "u1", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			resp := decodeResponse(t, rec)
			if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
				t.Errorf("Error = %+v, want code %s", resp.Error, ErrCodeValidationFailed)
			}
		})
	}
}

func TestRecordInteractionRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(env.handler.RecordInteraction, http.MethodPost, "/api/v1/interactions", "", InteractionRequest{
		ItemID: "b1", Kind: "view",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRecordInteractionMalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/interactions", bytes.NewBufferString("{nope"))
	req = req.WithContext(contextWithUserID(context.Background(), "u1"))
	rec := httptest.NewRecorder()
	env.handler.RecordInteraction(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRecommendationsColdStart(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(env.handler.Recommendations, http.MethodPost, "/api/v1/recommendations", "new-user", RecommendationsRequest{})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Data recommend.Response `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Data.Recommendations) != 0 {
		t.Errorf("recommendations = %d, want 0 for a cold catalog", len(payload.Data.Recommendations))
	}
	if payload.Data.Profile != nil {
		t.Errorf("profile = %+v, want null", payload.Data.Profile)
	}
}

func TestRecommendationsEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// u1's history plus a popular item from other users.
	seed := []tracking.Event{
		{UserID: "u1", ItemID: "b1", Kind: tracking.KindBorrow, Categories: []string{"fantasy"}, Author: "tolkien"},
		{UserID: "u2", ItemID: "b1", Kind: tracking.KindView, Categories: []string{"fantasy"}, Author: "tolkien"},
		{UserID: "u2", ItemID: "b2", Kind: tracking.KindBorrow, Categories: []string{"fantasy"}, Author: "tolkien"},
		{UserID: "u3", ItemID: "b2", Kind: tracking.KindBookmark, Categories: []string{"fantasy"}, Author: "tolkien"},
	}
	for _, e := range seed {
		if _, err := env.tracker.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	rec := doJSON(env.handler.Recommendations, http.MethodPost, "/api/v1/recommendations", "u1", RecommendationsRequest{Limit: 5})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Data recommend.Response `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	found := false
	for _, item := range payload.Data.Recommendations {
		if item.ItemID == "b2" {
			found = true
		}
	}
	if !found {
		t.Errorf("recommendations = %+v, want b2 included", payload.Data.Recommendations)
	}
	if payload.Data.Profile == nil {
		t.Error("profile = nil, want snapshot for a user with history")
	}
}

func TestRecommendationsRateLimitExactlyOneRejection(t *testing.T) {
	limit := 5
	env := newTestEnv(t, map[string]ratelimit.Limit{
		ActionRecommendations: {Requests: limit, Window: time.Minute},
	})

	rejections := 0
	for i := 0; i < limit+1; i++ {
		rec := doJSON(env.handler.Recommendations, http.MethodPost, "/api/v1/recommendations", "u1", RecommendationsRequest{})
		switch rec.Code {
		case http.StatusOK:
		case http.StatusTooManyRequests:
			rejections++
			if rec.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After header")
			}
		default:
			t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
		}
	}

	if rejections != 1 {
		t.Errorf("rejections = %d, want exactly 1 for limit+1 requests", rejections)
	}
}

func TestRateLimitIsPerUserAndAction(t *testing.T) {
	env := newTestEnv(t, map[string]ratelimit.Limit{
		ActionRecommendations: {Requests: 1, Window: time.Minute},
		ActionInteractions:    {Requests: 1, Window: time.Minute},
	})

	// u1 exhausts recommendations.
	doJSON(env.handler.Recommendations, http.MethodPost, "/api/v1/recommendations", "u1", RecommendationsRequest{})

	// u2 on the same action is unaffected.
	if rec := doJSON(env.handler.Recommendations, http.MethodPost, "/api/v1/recommendations", "u2", RecommendationsRequest{}); rec.Code != http.StatusOK {
		t.Errorf("u2 status = %d, want 200", rec.Code)
	}

	// u1 on a different action is unaffected.
	if rec := doJSON(env.handler.RecordInteraction, http.MethodPost, "/api/v1/interactions", "u1", InteractionRequest{ItemID: "b1", Kind: "view"}); rec.Code != http.StatusCreated {
		t.Errorf("u1 interactions status = %d, want 201", rec.Code)
	}
}

func TestTrendingEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	for i := 0; i < 5; i++ {
		env.handler.projector.Apply(tracking.Event{ItemID: "b-hot"})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trending", nil)
	rec := httptest.NewRecorder()
	env.handler.Trending(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Data struct {
			Trending []tracking.TrendingItem `json:"trending"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Data.Trending) != 1 || payload.Data.Trending[0].ItemID != "b-hot" {
		t.Errorf("trending = %+v, want b-hot", payload.Data.Trending)
	}
}

func TestTrendingBadLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trending?limit=500", nil)
	rec := httptest.NewRecorder()
	env.handler.Trending(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
