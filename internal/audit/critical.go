// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Critical-event thresholds.
const (
	// criticalAuthRisk flags authentication failures whose risk score
	// reaches this level.
	criticalAuthRisk = 60

	// criticalHighWater flags any event whose risk score reaches this level.
	criticalHighWater = 80
)

// adminResources are administrative targets; authorization failures against
// them are treated as privilege escalation attempts.
var adminResources = map[string]bool{
	"user_roles":         true,
	"role_permissions":   true,
	"system_config":      true,
	"retention_policies": true,
}

// SecurityAlert is the notification emitted for a critical event.
type SecurityAlert struct {
	AlertID     string     `json:"alert_id"`
	AuditLogID  string     `json:"audit_log_id"`
	EventID     string     `json:"event_id"`
	ThreatType  ThreatType `json:"threat_type"`
	ActorID     string     `json:"actor_id,omitempty"`
	ActorName   string     `json:"actor_name,omitempty"`
	TargetID    string     `json:"target_id,omitempty"`
	TargetTable string     `json:"target_table,omitempty"`
	Action      string     `json:"action"`
	RiskScore   int        `json:"risk_score"`
	Summary     string     `json:"summary"`
	Timestamp   time.Time  `json:"timestamp"`
}

// CriticalDetector classifies enriched, scored events as critical.
type CriticalDetector struct{}

// NewCriticalDetector creates a detector with the fixed rule set.
func NewCriticalDetector() *CriticalDetector {
	return &CriticalDetector{}
}

// Detect evaluates the fixed rules in order and returns the threat type of
// the first matching rule. ok is false for non-critical events.
func (d *CriticalDetector) Detect(event *Event) (threat ThreatType, ok bool) {
	switch {
	case event.Type == EventTypeAuthentication && event.Result == ResultFailure &&
		event.RiskScore >= criticalAuthRisk:
		return ThreatBruteForce, true

	case event.Type == EventTypeAuthorization && event.Result == ResultFailure &&
		adminResources[event.TargetTable]:
		return ThreatPrivilegeEscalation, true

	case event.Action == "delete" && restrictedTables[event.TargetTable]:
		return ThreatDataDestruction, true

	case event.Severity == SeverityCritical:
		return ThreatCriticalSeverity, true

	case event.RiskScore >= criticalHighWater:
		return ThreatHighRiskActivity, true

	default:
		return "", false
	}
}

// Record builds the persisted critical-event record for a detected threat.
func (d *CriticalDetector) Record(event *Event, threat ThreatType) *CriticalEventRecord {
	indicators, _ := json.Marshal(map[string]interface{}{
		"risk_score":   event.RiskScore,
		"severity":     event.Severity,
		"action":       event.Action,
		"target_table": event.TargetTable,
		"ip_address":   event.IPAddress,
	})

	return &CriticalEventRecord{
		ID:          uuid.New().String(),
		AuditLogID:  event.ID,
		ThreatType:  threat,
		ThreatLevel: event.Severity,
		Indicators:  indicators,
		CreatedAt:   time.Now().UTC(),
	}
}

// Alert builds the security alert emitted for a detected threat.
func (d *CriticalDetector) Alert(event *Event, threat ThreatType) *SecurityAlert {
	actor := event.ActorUsername
	if actor == "" {
		actor = event.ActorID
	}
	if actor == "" {
		actor = "unknown actor"
	}

	return &SecurityAlert{
		AlertID:     uuid.New().String(),
		AuditLogID:  event.ID,
		EventID:     event.EventID,
		ThreatType:  threat,
		ActorID:     event.ActorID,
		ActorName:   event.ActorUsername,
		TargetID:    event.TargetID,
		TargetTable: event.TargetTable,
		Action:      event.Action,
		RiskScore:   event.RiskScore,
		Summary: fmt.Sprintf("%s detected: %s performed %q on %s (risk score %d)",
			threat, actor, event.Action, targetLabel(event), event.RiskScore),
		Timestamp: time.Now().UTC(),
	}
}

func targetLabel(event *Event) string {
	switch {
	case event.TargetName != "":
		return event.TargetName
	case event.TargetTable != "":
		return event.TargetTable
	case event.TargetID != "":
		return event.TargetID
	default:
		return "unspecified target"
	}
}
