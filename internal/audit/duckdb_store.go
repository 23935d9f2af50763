// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/czhaoca/pathfinder-sub009/internal/logging"
)

// DuckDBStore implements Store using DuckDB for durable persistence.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore creates a DuckDB-backed audit store. Call CreateTables
// during initialization to ensure the schema exists.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// auditColumnsDDL is shared between the live and archive tables.
const auditColumnsDDL = `
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_category TEXT NOT NULL,
	event_severity TEXT NOT NULL,
	event_name TEXT NOT NULL,
	action TEXT NOT NULL,
	action_result TEXT NOT NULL,

	actor_id TEXT,
	actor_username TEXT,
	actor_roles JSON,

	target_id TEXT,
	target_name TEXT,
	target_table TEXT,

	ip_address TEXT,
	user_agent TEXT,
	request_id TEXT,
	session_id TEXT,
	http_method TEXT,
	http_path TEXT,
	http_status_code INTEGER,

	old_values JSON,
	new_values JSON,
	custom_data JSON,

	data_sensitivity TEXT NOT NULL,
	compliance_tags JSON,
	risk_score INTEGER NOT NULL,

	event_hash TEXT NOT NULL,
	previous_hash TEXT,

	event_timestamp TIMESTAMPTZ NOT NULL,
	processing_timestamp TIMESTAMPTZ NOT NULL`

// CreateTables creates the audit schema if it does not exist.
func (s *DuckDBStore) CreateTables(ctx context.Context) error {
	statements := []string{
		"CREATE TABLE IF NOT EXISTS audit_events (" + auditColumnsDDL + ")",
		"CREATE TABLE IF NOT EXISTS audit_events_archive (" + auditColumnsDDL + ", archived_at TIMESTAMPTZ NOT NULL)",
		`CREATE TABLE IF NOT EXISTS critical_events (
			id TEXT PRIMARY KEY,
			audit_log_id TEXT NOT NULL,
			threat_type TEXT NOT NULL,
			threat_level TEXT NOT NULL,
			indicators JSON,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_search_index (
			audit_log_id TEXT PRIMARY KEY,
			event_timestamp TIMESTAMPTZ NOT NULL,
			search_text TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(event_timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(event_type)",
		"CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_events(target_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_result ON audit_events(action_result)",
		"CREATE INDEX IF NOT EXISTS idx_audit_risk ON audit_events(risk_score)",
		"CREATE INDEX IF NOT EXISTS idx_critical_audit_log ON critical_events(audit_log_id)",
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute audit schema statement: %w", err)
		}
	}

	logging.Info().Msg("audit tables created/verified")
	return nil
}

const insertEventQuery = `
	INSERT INTO audit_events (
		id, event_id, event_type, event_category, event_severity, event_name,
		action, action_result, actor_id, actor_username, actor_roles,
		target_id, target_name, target_table,
		ip_address, user_agent, request_id, session_id, http_method, http_path, http_status_code,
		old_values, new_values, custom_data,
		data_sensitivity, compliance_tags, risk_score,
		event_hash, previous_hash, event_timestamp, processing_timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveBatch persists the batch in one transaction and refreshes the search
// index rows for the inserted events.
func (s *DuckDBStore) SaveBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, insertEventQuery)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(ctx, eventParams(event)...); err != nil {
			return fmt.Errorf("insert audit event %s: %w", event.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO audit_search_index (audit_log_id, event_timestamp, search_text) VALUES (?, ?, ?)",
			event.ID, event.Timestamp, searchText(event),
		); err != nil {
			return fmt.Errorf("update audit search index for %s: %w", event.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit batch: %w", err)
	}
	return nil
}

// eventParams prepares the insert parameters for one event.
func eventParams(event *Event) []interface{} {
	return []interface{}{
		event.ID,
		event.EventID,
		string(event.Type),
		event.Category,
		string(event.Severity),
		event.Name,
		event.Action,
		string(event.Result),
		nullString(event.ActorID),
		nullString(event.ActorUsername),
		marshalJSONColumn(event.ActorRoles),
		nullString(event.TargetID),
		nullString(event.TargetName),
		nullString(event.TargetTable),
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		nullString(event.RequestID),
		nullString(event.SessionID),
		nullString(event.HTTPMethod),
		nullString(event.HTTPPath),
		event.HTTPStatusCode,
		rawJSONColumn(event.OldValues),
		rawJSONColumn(event.NewValues),
		rawJSONColumn(event.CustomData),
		string(event.Sensitivity),
		marshalJSONColumn(event.ComplianceTags),
		event.RiskScore,
		event.EventHash,
		nullString(event.PreviousHash),
		event.Timestamp,
		event.ProcessedAt,
	}
}

// searchText builds the denormalized text document for the search index.
func searchText(event *Event) string {
	parts := []string{
		event.Name, string(event.Type), event.Category, event.Action,
		event.ActorUsername, event.TargetName, event.TargetTable,
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.ToLower(strings.Join(nonEmpty, " "))
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func marshalJSONColumn(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

func rawJSONColumn(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// SaveCritical persists a critical-event record immediately.
func (s *DuckDBStore) SaveCritical(ctx context.Context, rec *CriticalEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO critical_events (id, audit_log_id, threat_type, threat_level, indicators, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AuditLogID, string(rec.ThreatType), string(rec.ThreatLevel),
		rawJSONColumn(rec.Indicators), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert critical event record: %w", err)
	}
	return nil
}

// Get retrieves an event by its opaque id.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + auditSelectColumns + " FROM audit_events WHERE id = ?"
	row := s.db.QueryRowContext(ctx, query, id)

	event, err := scanEventRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit event not found: %s", id)
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return event, nil
}

// Query retrieves events matching the filter, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := BuildAuditQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEventRows(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("failed to scan audit event row")
			continue
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// CountRecentFailures returns the number of failed events for the actor
// since the given time.
func (s *DuckDBStore) CountRecentFailures(ctx context.Context, actorID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_events WHERE actor_id = ? AND action_result = ? AND event_timestamp >= ?",
		actorID, string(ResultFailure), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent failures: %w", err)
	}
	return count, nil
}

// Archive copies live events older than the cutoff into the archive table
// and removes them from the live table, in one transaction.
func (s *DuckDBStore) Archive(ctx context.Context, eventType string, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	condition := "event_timestamp < ?"
	args := []interface{}{before}
	if eventType != "" && eventType != "*" {
		condition += " AND event_type = ?"
		args = append(args, eventType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO audit_events_archive SELECT *, CURRENT_TIMESTAMP FROM audit_events WHERE "+condition,
		args...,
	); err != nil {
		return 0, fmt.Errorf("copy events to archive: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM audit_search_index WHERE audit_log_id IN (SELECT id FROM audit_events WHERE "+condition+")",
		args...,
	); err != nil {
		return 0, fmt.Errorf("clean search index: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM audit_events WHERE "+condition, args...)
	if err != nil {
		return 0, fmt.Errorf("remove archived events: %w", err)
	}
	archived, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archived row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive: %w", err)
	}
	return archived, nil
}

// Purge hard-deletes events older than the cutoff from both the live and
// archive tables.
func (s *DuckDBStore) Purge(ctx context.Context, eventType string, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	condition := "event_timestamp < ?"
	args := []interface{}{before}
	if eventType != "" && eventType != "*" {
		condition += " AND event_type = ?"
		args = append(args, eventType)
	}

	var purged int64
	for _, table := range []string{"audit_events", "audit_events_archive"} {
		result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+condition, args...)
		if err != nil {
			return purged, fmt.Errorf("purge %s: %w", table, err)
		}
		count, err := result.RowsAffected()
		if err != nil {
			return purged, fmt.Errorf("purged row count for %s: %w", table, err)
		}
		purged += count
	}
	return purged, nil
}

// Stats returns aggregate statistics about the live table.
func (s *DuckDBStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		EventsByType:     make(map[string]int64),
		EventsBySeverity: make(map[string]int64),
		EventsByResult:   make(map[string]int64),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("total event count: %w", err)
	}

	for column, dest := range map[string]map[string]int64{
		"event_type":     stats.EventsByType,
		"event_severity": stats.EventsBySeverity,
		"action_result":  stats.EventsByResult,
	} {
		if err := s.countByColumn(ctx, column, dest); err != nil {
			return nil, err
		}
	}

	var oldest, newest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(event_timestamp), MAX(event_timestamp) FROM audit_events",
	).Scan(&oldest, &newest)
	if err == nil {
		if oldest.Valid {
			stats.OldestEvent = &oldest.Time
		}
		if newest.Valid {
			stats.NewestEvent = &newest.Time
		}
	}

	return stats, nil
}

// countByColumn executes a GROUP BY query into dest.
func (s *DuckDBStore) countByColumn(ctx context.Context, column string, dest map[string]int64) error {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM audit_events GROUP BY %s", column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err == nil {
			dest[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s counts: %w", column, err)
	}
	return nil
}

// scannedEvent holds raw scanned values before conversion.
type scannedEvent struct {
	event          Event
	eventType      string
	severity       string
	result         string
	sensitivity    string
	actorID        sql.NullString
	actorUsername  sql.NullString
	actorRoles     sql.NullString
	targetID       sql.NullString
	targetName     sql.NullString
	targetTable    sql.NullString
	ipAddress      sql.NullString
	userAgent      sql.NullString
	requestID      sql.NullString
	sessionID      sql.NullString
	httpMethod     sql.NullString
	httpPath       sql.NullString
	httpStatusCode sql.NullInt64
	oldValues      sql.NullString
	newValues      sql.NullString
	customData     sql.NullString
	complianceTags sql.NullString
	previousHash   sql.NullString
}

func (d *scannedEvent) destinations() []interface{} {
	return []interface{}{
		&d.event.ID,
		&d.event.EventID,
		&d.eventType,
		&d.event.Category,
		&d.severity,
		&d.event.Name,
		&d.event.Action,
		&d.result,
		&d.actorID,
		&d.actorUsername,
		&d.actorRoles,
		&d.targetID,
		&d.targetName,
		&d.targetTable,
		&d.ipAddress,
		&d.userAgent,
		&d.requestID,
		&d.sessionID,
		&d.httpMethod,
		&d.httpPath,
		&d.httpStatusCode,
		&d.oldValues,
		&d.newValues,
		&d.customData,
		&d.sensitivity,
		&d.complianceTags,
		&d.event.RiskScore,
		&d.event.EventHash,
		&d.previousHash,
		&d.event.Timestamp,
		&d.event.ProcessedAt,
	}
}

func (d *scannedEvent) toEvent() *Event {
	d.event.Type = EventType(d.eventType)
	d.event.Severity = Severity(d.severity)
	d.event.Result = Result(d.result)
	d.event.Sensitivity = Sensitivity(d.sensitivity)

	d.event.ActorID = d.actorID.String
	d.event.ActorUsername = d.actorUsername.String
	d.event.TargetID = d.targetID.String
	d.event.TargetName = d.targetName.String
	d.event.TargetTable = d.targetTable.String
	d.event.IPAddress = d.ipAddress.String
	d.event.UserAgent = d.userAgent.String
	d.event.RequestID = d.requestID.String
	d.event.SessionID = d.sessionID.String
	d.event.HTTPMethod = d.httpMethod.String
	d.event.HTTPPath = d.httpPath.String
	d.event.PreviousHash = d.previousHash.String
	if d.httpStatusCode.Valid {
		d.event.HTTPStatusCode = int(d.httpStatusCode.Int64)
	}

	if d.actorRoles.Valid && d.actorRoles.String != "" {
		if err := json.Unmarshal([]byte(d.actorRoles.String), &d.event.ActorRoles); err != nil {
			logging.Debug().Err(err).Msg("failed to parse actor roles JSON")
		}
	}
	if d.complianceTags.Valid && d.complianceTags.String != "" {
		if err := json.Unmarshal([]byte(d.complianceTags.String), &d.event.ComplianceTags); err != nil {
			logging.Debug().Err(err).Msg("failed to parse compliance tags JSON")
		}
	}
	if d.oldValues.Valid && d.oldValues.String != "" {
		d.event.OldValues = json.RawMessage(d.oldValues.String)
	}
	if d.newValues.Valid && d.newValues.String != "" {
		d.event.NewValues = json.RawMessage(d.newValues.String)
	}
	if d.customData.Valid && d.customData.String != "" {
		d.event.CustomData = json.RawMessage(d.customData.String)
	}

	return &d.event
}

func scanEventRow(row *sql.Row) (*Event, error) {
	var data scannedEvent
	if err := row.Scan(data.destinations()...); err != nil {
		return nil, err
	}
	return data.toEvent(), nil
}

func scanEventRows(rows *sql.Rows) (*Event, error) {
	var data scannedEvent
	if err := rows.Scan(data.destinations()...); err != nil {
		return nil, err
	}
	return data.toEvent(), nil
}
