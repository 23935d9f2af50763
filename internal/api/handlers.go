// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/czhaoca/pathfinder-sub009/internal/audit"
	"github.com/czhaoca/pathfinder-sub009/internal/config"
	"github.com/czhaoca/pathfinder-sub009/internal/validation"
	"github.com/czhaoca/pathfinder-sub009/internal/websocket"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	store     audit.Store
	service   *audit.Service
	reporter  *audit.Reporter
	retention *audit.RetentionManager
	hub       *websocket.Hub
	upgrader  gorillaws.Upgrader
	cfg       *config.Config
}

// NewHandler creates a handler with the given dependencies. The retention
// manager and hub may be nil; the corresponding endpoints then report
// service unavailable.
func NewHandler(store audit.Store, service *audit.Service, reporter *audit.Reporter, retention *audit.RetentionManager, hub *websocket.Hub, cfg *config.Config) *Handler {
	return &Handler{
		store:     store,
		service:   service,
		reporter:  reporter,
		retention: retention,
		hub:       hub,
		upgrader:  websocket.Upgrader(cfg.Server.CORSOrigins),
		cfg:       cfg,
	}
}

// Events handles GET /api/v1/audit/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := getIntParam(r, "limit", h.cfg.API.DefaultPageSize)
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}

	req := EventsRequest{
		Limit:        limit,
		EventType:    r.URL.Query().Get("event_type"),
		Category:     r.URL.Query().Get("category"),
		ActorID:      r.URL.Query().Get("actor_id"),
		TargetID:     r.URL.Query().Get("target_id"),
		Result:       r.URL.Query().Get("result"),
		MinRiskScore: getIntParam(r, "min_risk_score", 0),
		StartDate:    r.URL.Query().Get("start_date"),
		EndDate:      r.URL.Query().Get("end_date"),
	}

	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	events, err := h.store.Query(r.Context(), *req.Filter())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(events, &PaginationMeta{
		Count:   len(events),
		Limit:   req.Limit,
		HasMore: len(events) == req.Limit,
	})
}

// Event handles GET /api/v1/audit/events/{id}.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if id == "" {
		rw.BadRequest("event id is required")
		return
	}

	event, err := h.store.Get(r.Context(), id)
	if err != nil {
		rw.NotFound("audit event not found")
		return
	}

	rw.Success(event)
}

// VerifyResult is the response payload for chain verification.
type VerifyResult struct {
	Verified      bool   `json:"verified"`
	EventsChecked int    `json:"events_checked"`
	BrokenIndex   int    `json:"broken_index"`
	BrokenEventID string `json:"broken_event_id,omitempty"`
	ChainHead     string `json:"chain_head,omitempty"`
}

// Verify handles POST /api/v1/audit/verify. It loads the events in the
// requested range, orders them oldest first and walks the hash chain.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req VerifyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("invalid JSON body")
			return
		}
	}

	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	filter := audit.Filter{Limit: req.Limit}
	if req.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, req.StartDate); err == nil {
			filter.StartDate = &t
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, req.EndDate); err == nil {
			filter.EndDate = &t
		}
	}

	events, err := h.store.Query(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	// Query returns newest first; verification walks oldest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	broken := audit.VerifyChain(events)
	result := VerifyResult{
		Verified:      broken < 0,
		EventsChecked: len(events),
		BrokenIndex:   broken,
	}
	if broken >= 0 {
		result.BrokenEventID = events[broken].EventID
	}
	if h.service != nil {
		result.ChainHead = h.service.ChainHead()
	}

	rw.Success(result)
}

// StatsResult combines store statistics with live pipeline state.
type StatsResult struct {
	*audit.Stats
	BufferedEvents int    `json:"buffered_events"`
	ChainHead      string `json:"chain_head,omitempty"`
}

// Stats handles GET /api/v1/audit/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	result := StatsResult{Stats: stats}
	if h.service != nil {
		result.BufferedEvents = h.service.BufferedEvents()
		result.ChainHead = h.service.ChainHead()
	}

	rw.Success(result)
}

// ComplianceReport handles POST /api/v1/compliance/reports.
func (h *Handler) ComplianceReport(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	start, _ := time.Parse(time.RFC3339, req.StartDate)
	end, _ := time.Parse(time.RFC3339, req.EndDate)
	if !end.After(start) {
		rw.BadRequest("end_date must be after start_date")
		return
	}

	report, err := h.reporter.GenerateComplianceReport(r.Context(), strings.ToUpper(req.Framework), start, end)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Created(report)
}

// RetentionRun handles POST /api/v1/retention/run.
func (h *Handler) RetentionRun(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.retention == nil {
		rw.ServiceUnavailable("retention is not configured")
		return
	}

	result := h.retention.Apply(r.Context())
	rw.Success(result)
}

// WebSocket handles GET /api/v1/ws, upgrading the connection and
// registering the client for security alert broadcasts.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("alert streaming is not available")
		return
	}

	websocket.ServeWS(h.hub, h.upgrader, w, r)
}

// HealthLive handles GET /healthz. Liveness only; readiness is implied by
// the store answering queries.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "ok"})
}

// HealthReady handles GET /healthz/ready, confirming the store is reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if _, err := h.store.Stats(r.Context()); err != nil {
		rw.ServiceUnavailable("audit store is not reachable")
		return
	}

	rw.Success(map[string]string{"status": "ready"})
}
