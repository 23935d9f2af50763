// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/czhaoca/pathfinder-sub009/internal/middleware"
)

// Router wires handlers and middleware into the HTTP routing tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router around the given handler. The middleware
// configuration is derived from the handler's server config.
func NewRouter(handler *Handler) *Router {
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = handler.cfg.Server.CORSOrigins
	if handler.cfg.Server.RateLimitReqs > 0 {
		mwCfg.RateLimitRequests = handler.cfg.Server.RateLimitReqs
	}
	if handler.cfg.Server.RateLimitWindow > 0 {
		mwCfg.RateLimitWindow = handler.cfg.Server.RateLimitWindow
	}
	mwCfg.RateLimitDisabled = handler.cfg.Server.RateLimitDisabled

	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwCfg),
	}
}

// Setup configures all HTTP routes using the Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight works

	// Health and metrics get permissive rate limits so monitoring probes
	// are never throttled.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/healthz", router.handler.HealthLive)
		r.Get("/healthz/ready", router.handler.HealthReady)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})

	// Mutating admin operations are themselves audited.
	auditTrail := func(next http.Handler) http.Handler { return next }
	if router.handler.service != nil {
		auditTrail = middleware.AuditTrail(router.handler.service)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)

		r.Route("/audit", func(r chi.Router) {
			r.Get("/events", router.handler.Events)
			r.Get("/events/{id}", router.handler.Event)
			r.Get("/stats", router.handler.Stats)
			r.With(auditTrail).Post("/verify", router.handler.Verify)
		})

		r.With(auditTrail).Post("/compliance/reports", router.handler.ComplianceReport)
		r.With(auditTrail).Post("/retention/run", router.handler.RetentionRun)

		r.Get("/ws", router.handler.WebSocket)
	})

	return r
}
