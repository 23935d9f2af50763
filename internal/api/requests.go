// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package api provides HTTP request validation structs with
// go-playground/validator tags. These structs validate incoming request
// parameters before they reach the audit store.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/czhaoca/pathfinder-sub009/internal/audit"
)

// EventsRequest represents the validated query parameters for
// GET /audit/events.
//
// Fields:
//   - Limit: Results per page (1-max_page_size, default from config)
//   - EventType: Filter by event type
//   - Category: Filter by event category
//   - ActorID: Filter by acting user
//   - TargetID: Filter by target resource
//   - Result: Filter by action result
//   - MinRiskScore: Minimum risk score (0-100)
//   - StartDate, EndDate: Time range (RFC3339 format)
type EventsRequest struct {
	Limit        int    `validate:"min=1,max=10000"`
	EventType    string `validate:"omitempty,audit_event_type"`
	Category     string `validate:"omitempty,max=100"`
	ActorID      string `validate:"omitempty,max=200"`
	TargetID     string `validate:"omitempty,max=200"`
	Result       string `validate:"omitempty,oneof=success failure error"`
	MinRiskScore int    `validate:"min=0,max=100"`
	StartDate    string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate      string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// Filter converts the request into a store filter. Call only after
// validation; date parse errors are impossible for a validated request.
func (req *EventsRequest) Filter() *audit.Filter {
	f := &audit.Filter{
		EventType:     req.EventType,
		EventCategory: req.Category,
		ActorID:       req.ActorID,
		TargetID:      req.TargetID,
		ActionResult:  req.Result,
		MinRiskScore:  req.MinRiskScore,
		Limit:         req.Limit,
	}

	if req.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, req.StartDate); err == nil {
			f.StartDate = &t
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, req.EndDate); err == nil {
			f.EndDate = &t
		}
	}

	return f
}

// VerifyRequest represents the request body for POST /audit/verify.
// Verification walks all events in the given range in chain order.
type VerifyRequest struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit     int    `json:"limit" validate:"min=0,max=100000"`
}

// ReportRequest represents the request body for POST /compliance/reports.
type ReportRequest struct {
	Framework string `json:"framework" validate:"required,compliance_framework"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// getIntParam reads an integer query parameter, falling back to def when
// the parameter is absent or not a number.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
