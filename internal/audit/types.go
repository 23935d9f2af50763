// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events by subsystem.
type EventType string

const (
	EventTypeAuthentication EventType = "authentication"
	EventTypeAuthorization  EventType = "authorization"
	EventTypeDataAccess     EventType = "data_access"
	EventTypeDataChange     EventType = "data_change"
	EventTypeUserManagement EventType = "user_management"
	EventTypeHTTPRequest    EventType = "http_request"
	EventTypeSystem         EventType = "system"
)

// Severity indicates the severity level of an audit event.
// Ordered: debug < info < warning < critical.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// severityOrder maps severities to their ordering rank.
var severityOrder = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// Result indicates whether an action succeeded or failed.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Sensitivity classifies how sensitive the data touched by an event is.
type Sensitivity string

const (
	SensitivityPublic       Sensitivity = "public"
	SensitivityInternal     Sensitivity = "internal"
	SensitivityConfidential Sensitivity = "confidential"
	SensitivityRestricted   Sensitivity = "restricted"
)

// ComplianceTag labels an event with the regulatory framework whose
// reporting it feeds.
type ComplianceTag string

const (
	TagHIPAA ComplianceTag = "HIPAA"
	TagGDPR  ComplianceTag = "GDPR"
	TagSOC2  ComplianceTag = "SOC2"
)

// RawEvent is the loosely-typed input accepted by Log. The six core fields
// (Type, Category, Severity, Name, Action, Result) are required; everything
// else is optional and defaulted during enrichment.
type RawEvent struct {
	Type     EventType `json:"event_type"`
	Category string    `json:"event_category"`
	Severity Severity  `json:"event_severity"`
	Name     string    `json:"event_name"`
	Action   string    `json:"action"`
	Result   Result    `json:"action_result"`

	ActorID       string   `json:"actor_id,omitempty"`
	ActorUsername string   `json:"actor_username,omitempty"`
	ActorRoles    []string `json:"actor_roles,omitempty"`

	TargetID    string `json:"target_id,omitempty"`
	TargetName  string `json:"target_name,omitempty"`
	TargetTable string `json:"target_table,omitempty"`

	IPAddress      string `json:"ip_address,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	HTTPMethod     string `json:"http_method,omitempty"`
	HTTPPath       string `json:"http_path,omitempty"`
	HTTPStatusCode int    `json:"http_status_code,omitempty"`

	// OldValues, NewValues, and CustomData carry arbitrary structured
	// payloads. They are serialized at the boundary; values containing
	// reference cycles are rejected.
	OldValues  interface{} `json:"old_values,omitempty"`
	NewValues  interface{} `json:"new_values,omitempty"`
	CustomData interface{} `json:"custom_data,omitempty"`

	// Timestamp is when the event occurred. Defaults to now.
	Timestamp time.Time `json:"event_timestamp,omitempty"`
}

// Event is a fully validated, enriched, chained, and scored audit record.
// Immutable once buffered.
type Event struct {
	// ID is the opaque unique identifier generated at enrichment time.
	ID string `json:"id"`

	// EventID is the human-readable correlation tag (evt_ prefix).
	EventID string `json:"event_id"`

	Type     EventType `json:"event_type"`
	Category string    `json:"event_category"`
	Severity Severity  `json:"event_severity"`
	Name     string    `json:"event_name"`
	Action   string    `json:"action"`
	Result   Result    `json:"action_result"`

	ActorID       string   `json:"actor_id,omitempty"`
	ActorUsername string   `json:"actor_username,omitempty"`
	ActorRoles    []string `json:"actor_roles,omitempty"`

	TargetID    string `json:"target_id,omitempty"`
	TargetName  string `json:"target_name,omitempty"`
	TargetTable string `json:"target_table,omitempty"`

	IPAddress      string `json:"ip_address,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	HTTPMethod     string `json:"http_method,omitempty"`
	HTTPPath       string `json:"http_path,omitempty"`
	HTTPStatusCode int    `json:"http_status_code,omitempty"`

	OldValues  json.RawMessage `json:"old_values,omitempty"`
	NewValues  json.RawMessage `json:"new_values,omitempty"`
	CustomData json.RawMessage `json:"custom_data,omitempty"`

	Sensitivity    Sensitivity     `json:"data_sensitivity"`
	ComplianceTags []ComplianceTag `json:"compliance_tags,omitempty"`
	RiskScore      int             `json:"risk_score"`

	// EventHash is the hex SHA-256 digest chaining this event to its
	// predecessor. PreviousHash is empty for the first event processed
	// by a service instance.
	EventHash    string `json:"event_hash"`
	PreviousHash string `json:"previous_hash,omitempty"`

	Timestamp   time.Time `json:"event_timestamp"`
	ProcessedAt time.Time `json:"processing_timestamp"`
}

// CriticalEventRecord is created for events flagged critical and persisted
// immediately, bypassing the buffer. Read-only after creation.
type CriticalEventRecord struct {
	ID          string          `json:"id"`
	AuditLogID  string          `json:"audit_log_id"`
	ThreatType  ThreatType      `json:"threat_type"`
	ThreatLevel Severity        `json:"threat_level"`
	Indicators  json.RawMessage `json:"indicators,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ThreatType names the detection rule that flagged an event as critical.
type ThreatType string

const (
	ThreatBruteForce          ThreatType = "brute_force_attempt"
	ThreatPrivilegeEscalation ThreatType = "privilege_escalation_attempt"
	ThreatDataDestruction     ThreatType = "data_destruction"
	ThreatCriticalSeverity    ThreatType = "critical_severity_event"
	ThreatHighRiskActivity    ThreatType = "high_risk_activity"
)

// RetentionPolicy governs how long events of a given type remain live
// before archival and eventual deletion. EventType "*" matches all types.
type RetentionPolicy struct {
	EventType        string `json:"event_type" koanf:"event_type"`
	ArchiveAfterDays int    `json:"archive_after_days" koanf:"archive_after_days"`
	DeleteAfterDays  int    `json:"delete_after_days" koanf:"delete_after_days"`
}

// Filter describes the optional, AND-combined criteria accepted by
// BuildAuditQuery and Store.Query.
type Filter struct {
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	EventType     string     `json:"event_type,omitempty"`
	EventCategory string     `json:"event_category,omitempty"`
	ActorID       string     `json:"actor_id,omitempty"`
	TargetID      string     `json:"target_id,omitempty"`
	MinRiskScore  int        `json:"min_risk_score,omitempty"`
	ActionResult  string     `json:"action_result,omitempty"`
	Limit         int        `json:"limit,omitempty"`
}

// Stats summarizes store contents for the admin API.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByType     map[string]int64 `json:"events_by_type"`
	EventsBySeverity map[string]int64 `json:"events_by_severity"`
	EventsByResult   map[string]int64 `json:"events_by_result"`
	OldestEvent      *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time       `json:"newest_event,omitempty"`
}

// Store defines the persistence interface for the audit pipeline.
type Store interface {
	// SaveBatch persists a batch of events in a single transaction and
	// refreshes the derived search index as a side effect.
	SaveBatch(ctx context.Context, events []*Event) error

	// SaveCritical persists a critical-event record immediately.
	SaveCritical(ctx context.Context, rec *CriticalEventRecord) error

	// Get retrieves an event by its opaque id.
	Get(ctx context.Context, id string) (*Event, error)

	// Query retrieves events matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// CountRecentFailures returns the number of failed events recorded
	// for the actor since the given time.
	CountRecentFailures(ctx context.Context, actorID string, since time.Time) (int, error)

	// Archive copies live events older than the cutoff into the archive
	// table and removes them from the live table. eventType "*" matches
	// all types. Returns the number of events archived.
	Archive(ctx context.Context, eventType string, before time.Time) (int64, error)

	// Purge hard-deletes events older than the cutoff from both the live
	// and archive tables. Returns the number of events removed.
	Purge(ctx context.Context, eventType string, before time.Time) (int64, error)

	// Stats returns aggregate statistics about stored events.
	Stats(ctx context.Context) (*Stats, error)
}

// SeverityAtLeast reports whether s ranks at or above min in the
// debug < info < warning < critical ordering.
func SeverityAtLeast(s, min Severity) bool {
	return severityOrder[s] >= severityOrder[min]
}
