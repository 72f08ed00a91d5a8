// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the full HTTP surface: public ingest endpoints, dashboard
// reads, creator registry, plus health and metrics.
func NewRouter(h *Handler, mw *Middleware, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(timeout))
	r.Use(mw.CORS())

	r.Get("/health", Instrument("/health")(http.HandlerFunc(h.handleHealth)).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public ingest endpoints, rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.With(Instrument("/api/v1/interactions")).
				Post("/interactions", h.handleRecordInteraction)
			r.With(Instrument("/api/v1/visits")).
				Post("/visits", h.handleRecordVisit)
			r.With(Instrument("/api/v1/audience/identify")).
				Post("/audience/identify", h.handleIdentify)
		})

		// Dashboard and registry endpoints.
		r.With(Instrument("/api/v1/creators")).
			Post("/creators", h.handleCreateCreator)
		r.With(Instrument("/api/v1/creators")).
			Get("/creators", h.handleListCreators)
		r.Route("/creators/{creatorID}", func(r chi.Router) {
			r.With(Instrument("/api/v1/creators/{creatorID}")).
				Get("/", h.handleGetCreator)
			r.With(Instrument("/api/v1/creators/{creatorID}/audience")).
				Get("/audience", h.handleListAudience)
			r.With(Instrument("/api/v1/creators/{creatorID}/audience/stats")).
				Get("/audience/stats", h.handleAudienceStats)
			r.With(Instrument("/api/v1/creators/{creatorID}/events")).
				Get("/events", h.handleListEvents)
		})
	})

	return r
}
