// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/biblion-app/biblion/internal/metrics"
	"github.com/biblion-app/biblion/internal/ratelimit"
	"github.com/biblion-app/biblion/internal/recommend"
	"github.com/biblion-app/biblion/internal/tracking"
	"github.com/biblion-app/biblion/internal/validation"
)

// Rate-limited action names. The admission controller keys windows on
// (user, action).
const (
	ActionInteractions    = "interactions"
	ActionRecommendations = "recommendations"
)

// maxRequestBody caps request body reads at 64 KiB.
const maxRequestBody = 64 << 10

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	tracker   *tracking.Tracker
	engine    *recommend.Engine
	projector *tracking.Projector
	limiter   *ratelimit.Limiter
}

// NewHandler creates the API handler set.
func NewHandler(tracker *tracking.Tracker, engine *recommend.Engine, projector *tracking.Projector, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		tracker:   tracker,
		engine:    engine,
		projector: projector,
		limiter:   limiter,
	}
}

// InteractionRequest is the body of POST /api/v1/interactions.
type InteractionRequest struct {
	ItemID     string   `json:"item_id" validate:"required"`
	Kind       string   `json:"kind" validate:"required,oneof=view borrow bookmark"`
	Categories []string `json:"categories" validate:"omitempty,max=20,dive,min=1"`
	Tags       []string `json:"tags" validate:"omitempty,max=50,dive,min=1"`
	Author     string   `json:"author"`
	Format     string   `json:"format"`
	Publisher  string   `json:"publisher"`
	Year       int      `json:"year" validate:"omitempty,gte=0,lte=2100"`
}

// RecommendationsRequest is the body of POST /api/v1/recommendations.
type RecommendationsRequest struct {
	Limit          int      `json:"limit" validate:"omitempty,min=1,max=20"`
	ExcludeBookIDs []string `json:"exclude_book_ids" validate:"omitempty,max=200,dive,min=1"`
	Context        string   `json:"context" validate:"omitempty,oneof=browse book-detail"`
	BookID         string   `json:"book_id" validate:"required_if=Context book-detail"`
}

// RecordInteraction handles POST /api/v1/interactions.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		rw.Unauthorized("Authentication required")
		return
	}

	if !h.admit(rw, userID, ActionInteractions) {
		return
	}

	var req InteractionRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	event, err := h.tracker.Record(r.Context(), tracking.Event{
		UserID:     userID,
		ItemID:     req.ItemID,
		Kind:       tracking.Kind(req.Kind),
		Categories: req.Categories,
		Tags:       req.Tags,
		Author:     req.Author,
		Format:     req.Format,
		Publisher:  req.Publisher,
		Year:       req.Year,
	})
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidEvent) {
			rw.BadRequest(err.Error())
			return
		}
		rw.InternalError("Failed to record interaction")
		return
	}

	rw.Created(event)
}

// Recommendations handles POST /api/v1/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		rw.Unauthorized("Authentication required")
		return
	}

	if !h.admit(rw, userID, ActionRecommendations) {
		return
	}

	var req RecommendationsRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	resp, err := h.engine.Recommend(r.Context(), recommend.Request{
		UserID:         userID,
		Limit:          req.Limit,
		ExcludeBookIDs: req.ExcludeBookIDs,
		Context:        req.Context,
		BookID:         req.BookID,
	})
	if err != nil {
		h.writeEngineError(rw, err)
		return
	}

	rw.Success(resp)
}

// SimilarBooks handles GET /api/v1/recommendations/similar/{itemID}.
func (h *Handler) SimilarBooks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		rw.Unauthorized("Authentication required")
		return
	}

	if !h.admit(rw, userID, ActionRecommendations) {
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if itemID == "" {
		rw.BadRequest("itemID is required")
		return
	}

	limit, ok := parseLimitParam(rw, r)
	if !ok {
		return
	}

	resp, err := h.engine.Recommend(r.Context(), recommend.Request{
		UserID:  userID,
		Limit:   limit,
		Context: recommend.ContextBookDetail,
		BookID:  itemID,
	})
	if err != nil {
		h.writeEngineError(rw, err)
		return
	}

	rw.Success(resp)
}

// Trending handles GET /api/v1/trending. It reads the projection directly;
// no personalization, no profile.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit, ok := parseLimitParam(rw, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = 10
	}

	rw.Success(map[string]interface{}{
		"trending": h.projector.Trending(limit),
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// admit runs the per-user admission check and writes the 429 on rejection.
func (h *Handler) admit(rw *ResponseWriter, userID, action string) bool {
	if h.limiter == nil {
		return true
	}

	res := h.limiter.Check(userID, action)
	if res.Allowed {
		return true
	}

	metrics.RateLimitRejections.WithLabelValues(action).Inc()
	rw.TooManyRequests("Rate limit exceeded for "+action, res.RetryAfter, res.ResetAt)
	return false
}

// writeEngineError maps engine sentinels onto HTTP statuses.
func (h *Handler) writeEngineError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidArgument):
		rw.BadRequest(err.Error())
	case errors.Is(err, recommend.ErrUpstreamRead):
		rw.UpstreamReadError(err)
	default:
		rw.InternalError("Failed to compute recommendations")
	}
}

// decodeBody decodes a JSON request body, writing the 400 itself on failure.
func decodeBody(rw *ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBody)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		rw.BadRequest("Invalid JSON body: " + err.Error())
		return false
	}
	return true
}

// parseLimitParam reads the optional ?limit= query parameter.
func parseLimitParam(rw *ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 20 {
		rw.BadRequest("limit must be an integer between 1 and 20")
		return 0, false
	}
	return limit, true
}
