// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"context"
	"time"

	"github.com/czhaoca/pathfinder-sub009/internal/logging"
)

// Risk scoring weights. The final score is clamped to [0, 100].
const (
	riskAuthFailureBase = 20
	riskRestrictedData  = 25
	riskDeleteAction    = 10
	riskAdminActor      = 15
	riskOffHours        = 10

	// History component: riskPerRecentFailure per failed event by the same
	// actor inside failureWindow, capped at riskHistoryCap.
	riskPerRecentFailure = 5
	riskHistoryCap       = 25
	failureWindow        = 15 * time.Minute

	// Off-hours window, inclusive of both bounds.
	offHoursStart = 0
	offHoursEnd   = 5
)

// adminRoles are treated as admin-equivalent for risk scoring.
var adminRoles = map[string]bool{
	"admin":       true,
	"super_admin": true,
	"site_admin":  true,
}

// FailureHistory supplies the recent-failure count used by the history
// component of the risk score.
type FailureHistory interface {
	CountRecentFailures(ctx context.Context, actorID string, since time.Time) (int, error)
}

// RiskScorer computes a bounded 0-100 risk score from event attributes and
// recent actor history.
type RiskScorer struct {
	history FailureHistory
}

// NewRiskScorer creates a scorer. history may be nil, in which case the
// history component is always omitted.
func NewRiskScorer(history FailureHistory) *RiskScorer {
	return &RiskScorer{history: history}
}

// Score computes the event's risk score. A failing history lookup omits
// the history component rather than propagating the error; scoring never
// fails.
func (s *RiskScorer) Score(ctx context.Context, event *Event) int {
	score := 0

	if event.Type == EventTypeAuthentication && event.Result == ResultFailure {
		score += riskAuthFailureBase
	}
	if event.Sensitivity == SensitivityRestricted {
		score += riskRestrictedData
	}
	if event.Action == "delete" {
		score += riskDeleteAction
	}
	if hasAdminRole(event.ActorRoles) {
		score += riskAdminActor
	}
	if hour := event.Timestamp.Hour(); hour >= offHoursStart && hour <= offHoursEnd {
		score += riskOffHours
	}

	score += s.historyComponent(ctx, event)

	return clampScore(score)
}

// historyComponent returns the scaled recent-failure contribution, or 0
// when no history source is available, the actor is unknown, or the lookup
// fails.
func (s *RiskScorer) historyComponent(ctx context.Context, event *Event) int {
	if s.history == nil || event.ActorID == "" {
		return 0
	}

	count, err := s.history.CountRecentFailures(ctx, event.ActorID, event.Timestamp.Add(-failureWindow))
	if err != nil {
		logging.Warn().Err(err).Str("actor_id", event.ActorID).
			Msg("failure history lookup failed, omitting history component")
		return 0
	}

	component := count * riskPerRecentFailure
	if component > riskHistoryCap {
		component = riskHistoryCap
	}
	return component
}

func hasAdminRole(roles []string) bool {
	for _, role := range roles {
		if adminRoles[role] {
			return true
		}
	}
	return false
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
