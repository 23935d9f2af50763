// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
)

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode int
		wantLabel  string
	}{
		{"successful GET", "GET", "/api/v1/audit/events", 200, "200"},
		{"created POST", "POST", "/api/v1/audit/verify", 201, "201"},
		{"client error", "GET", "/api/v1/audit/events/missing", 404, "404"},
		{"server error", "POST", "/api/v1/compliance/reports", 500, "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.endpoint, tt.wantLabel))

			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, 25*time.Millisecond)

			after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.endpoint, tt.wantLabel))
			if after != before+1 {
				t.Errorf("api_requests_total{%s %s %s} = %v, want %v", tt.method, tt.endpoint, tt.wantLabel, after, before+1)
			}
		})
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after start: api_active_requests = %v, want %v", got, before+1)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after finish: api_active_requests = %v, want %v", got, before)
	}
}

// TestBreakerStateEncoding pins the gauge to gobreaker's state numbering so
// the help text and dashboards stay truthful.
func TestBreakerStateEncoding(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}

	for _, tt := range tests {
		BreakerState.WithLabelValues("audit-store").Set(float64(tt.state))
		if got := testutil.ToFloat64(BreakerState.WithLabelValues("audit-store")); got != tt.want {
			t.Errorf("state %s: circuit_breaker_state = %v, want %v", tt.state, got, tt.want)
		}
	}
}
