// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/czhaoca/pathfinder-sub009/internal/logging"
	"github.com/czhaoca/pathfinder-sub009/internal/metrics"
)

// RetentionManager archives and purges events per configured policies. It
// is driven by an external scheduler, not self-scheduled.
type RetentionManager struct {
	store    Store
	policies []RetentionPolicy
	now      func() time.Time
}

// PolicyResult reports the outcome of applying one policy.
type PolicyResult struct {
	Policy   RetentionPolicy `json:"policy"`
	Archived int64           `json:"archived"`
	Purged   int64           `json:"purged"`
	Error    string          `json:"error,omitempty"`
}

// RetentionResult aggregates one retention run.
type RetentionResult struct {
	RanAt    time.Time      `json:"ran_at"`
	Policies []PolicyResult `json:"policies"`
}

// NewRetentionManager creates a manager over the given policies.
func NewRetentionManager(store Store, policies []RetentionPolicy) *RetentionManager {
	return &RetentionManager{
		store:    store,
		policies: policies,
		now:      time.Now,
	}
}

// Apply runs every policy independently: archival first, then purge. A
// failure in one policy is recorded in its result and does not prevent the
// remaining policies from running.
func (m *RetentionManager) Apply(ctx context.Context) *RetentionResult {
	result := &RetentionResult{
		RanAt:    m.now().UTC(),
		Policies: make([]PolicyResult, 0, len(m.policies)),
	}

	for _, policy := range m.policies {
		pr := m.applyPolicy(ctx, policy)
		if pr.Error != "" {
			logging.Error().
				Str("event_type", policy.EventType).
				Str("error", pr.Error).
				Msg("retention policy failed")
		} else if pr.Archived > 0 || pr.Purged > 0 {
			logging.Info().
				Str("event_type", policy.EventType).
				Int64("archived", pr.Archived).
				Int64("purged", pr.Purged).
				Msg("retention policy applied")
		}
		result.Policies = append(result.Policies, pr)
	}

	return result
}

// applyPolicy archives records older than ArchiveAfterDays and purges
// records older than DeleteAfterDays. A zero ArchiveAfterDays archives
// immediately-eligible records on every run; a zero DeleteAfterDays means
// immediate purge eligibility.
func (m *RetentionManager) applyPolicy(ctx context.Context, policy RetentionPolicy) PolicyResult {
	pr := PolicyResult{Policy: policy}
	now := m.now()

	archiveCutoff := now.AddDate(0, 0, -policy.ArchiveAfterDays)
	archived, err := m.store.Archive(ctx, policy.EventType, archiveCutoff)
	if err != nil {
		pr.Error = fmt.Sprintf("archive: %v", err)
		return pr
	}
	pr.Archived = archived
	metrics.AuditRetentionArchived.Add(float64(archived))

	purgeCutoff := now.AddDate(0, 0, -policy.DeleteAfterDays)
	purged, err := m.store.Purge(ctx, policy.EventType, purgeCutoff)
	if err != nil {
		pr.Error = fmt.Sprintf("purge: %v", err)
		return pr
	}
	pr.Purged = purged
	metrics.AuditRetentionPurged.Add(float64(purged))

	return pr
}
