// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package api provides HTTP routing and handlers for the audit service
// using the Chi router. All endpoints return a standardized response
// envelope with request IDs for tracing.
//
// Routes:
//
//	GET  /api/v1/audit/events        query audit events with filters
//	GET  /api/v1/audit/events/{id}   fetch a single event
//	POST /api/v1/audit/verify        verify hash-chain integrity over a range
//	GET  /api/v1/audit/stats         aggregate statistics
//	POST /api/v1/compliance/reports  generate a compliance report
//	POST /api/v1/retention/run       apply retention policies now
//	GET  /api/v1/ws                  WebSocket stream of security alerts
//	GET  /healthz                    liveness probe
//	GET  /metrics                    Prometheus metrics
package api
