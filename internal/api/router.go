// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	Handler       *Handler
	Authenticator *Authenticator
	Middleware    *Middleware
}

// NewRouter builds the service router: operational endpoints at the root,
// authenticated JSON API under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	m := cfg.Middleware
	if m == nil {
		m = NewMiddleware(nil)
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeaders())
	r.Use(RequestMetrics())
	r.Use(m.CORS())
	r.Use(m.IPRateLimit())

	r.Get("/healthz", cfg.Handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware())

		r.Post("/interactions", cfg.Handler.RecordInteraction)
		r.Post("/recommendations", cfg.Handler.Recommendations)
		r.Get("/recommendations/similar/{itemID}", cfg.Handler.SimilarBooks)
		r.Get("/trending", cfg.Handler.Trending)
	})

	return r
}
