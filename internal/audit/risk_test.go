// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// businessHours is a timestamp outside the off-hours window.
var businessHours = time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)

func baseScoredEvent() *Event {
	return &Event{
		Type:        EventTypeDataAccess,
		Action:      "read",
		Result:      ResultSuccess,
		Sensitivity: SensitivityInternal,
		Timestamp:   businessHours,
	}
}

func TestScoreComponents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
		want   int
	}{
		{"benign event scores zero", func(e *Event) {}, 0},
		{"failed authentication", func(e *Event) {
			e.Type = EventTypeAuthentication
			e.Result = ResultFailure
		}, 20},
		{"successful authentication scores zero", func(e *Event) {
			e.Type = EventTypeAuthentication
		}, 0},
		{"restricted data", func(e *Event) { e.Sensitivity = SensitivityRestricted }, 25},
		{"confidential data scores zero", func(e *Event) { e.Sensitivity = SensitivityConfidential }, 0},
		{"delete action", func(e *Event) { e.Action = "delete" }, 10},
		{"admin actor", func(e *Event) { e.ActorRoles = []string{"admin"} }, 15},
		{"site admin actor", func(e *Event) { e.ActorRoles = []string{"viewer", "site_admin"} }, 15},
		{"non-admin roles score zero", func(e *Event) { e.ActorRoles = []string{"viewer", "editor"} }, 0},
		{"off-hours start", func(e *Event) {
			e.Timestamp = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
		}, 10},
		{"off-hours end", func(e *Event) {
			e.Timestamp = time.Date(2026, 6, 15, 5, 59, 0, 0, time.UTC)
		}, 10},
		{"six am is not off-hours", func(e *Event) {
			e.Timestamp = time.Date(2026, 6, 15, 6, 0, 0, 0, time.UTC)
		}, 0},
	}

	scorer := NewRiskScorer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := baseScoredEvent()
			tt.mutate(event)

			if got := scorer.Score(context.Background(), event); got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreHistoryComponent(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     int
	}{
		{"no recent failures", 0, 0},
		{"two failures", 2, 10},
		{"five failures reach the cap", 5, 25},
		{"many failures stay capped", 50, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			store.failures = tt.failures

			event := baseScoredEvent()
			event.ActorID = "user-1"

			if got := NewRiskScorer(store).Score(context.Background(), event); got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreOmitsHistoryWithoutActor(t *testing.T) {
	store := newMockStore()
	store.failures = 50

	// No ActorID means no history lookup.
	event := baseScoredEvent()
	if got := NewRiskScorer(store).Score(context.Background(), event); got != 0 {
		t.Errorf("Score = %d, want 0", got)
	}
}

func TestScoreSwallowsHistoryLookupError(t *testing.T) {
	store := newMockStore()
	store.countErr = errors.New("store offline")

	event := baseScoredEvent()
	event.ActorID = "user-1"
	event.Action = "delete"

	// The lookup failure omits the history component; the attribute
	// components still apply and no error surfaces.
	if got := NewRiskScorer(store).Score(context.Background(), event); got != 10 {
		t.Errorf("Score = %d, want 10", got)
	}
}

func TestScoreClampsAtHundred(t *testing.T) {
	store := newMockStore()
	store.failures = 50 // capped history component of 25

	// Every component at once: 20+25+10+15+10+25 = 105, clamped to 100.
	event := &Event{
		Type:        EventTypeAuthentication,
		Result:      ResultFailure,
		Sensitivity: SensitivityRestricted,
		Action:      "delete",
		ActorID:     "user-1",
		ActorRoles:  []string{"super_admin"},
		Timestamp:   time.Date(2026, 6, 15, 2, 0, 0, 0, time.UTC),
	}

	if got := NewRiskScorer(store).Score(context.Background(), event); got != 100 {
		t.Errorf("Score = %d, want 100", got)
	}
}
