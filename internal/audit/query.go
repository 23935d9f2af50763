// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"strings"
	"time"
)

// auditSelectColumns is the column list returned by audit retrieval queries.
const auditSelectColumns = `id, event_id, event_type, event_category, event_severity, event_name,
	action, action_result, actor_id, actor_username, CAST(actor_roles AS VARCHAR),
	target_id, target_name, target_table,
	ip_address, user_agent, request_id, session_id, http_method, http_path, http_status_code,
	CAST(old_values AS VARCHAR), CAST(new_values AS VARCHAR), CAST(custom_data AS VARCHAR),
	data_sensitivity, CAST(compliance_tags AS VARCHAR), risk_score,
	event_hash, previous_hash, event_timestamp, processing_timestamp`

// BuildAuditQuery translates a filter into a parameterized retrieval query.
// Filters are independently optional and combined with AND. A Limit of zero
// omits the LIMIT clause entirely; an empty filter selects all rows ordered
// by event time descending with no bound parameters.
func BuildAuditQuery(filter Filter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(auditSelectColumns)
	sb.WriteString(" FROM audit_events")

	conditions, args := buildFilterConditions(filter)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	sb.WriteString(" ORDER BY event_timestamp DESC")

	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	return sb.String(), args
}

// buildFilterConditions builds WHERE conditions from a Filter.
func buildFilterConditions(filter Filter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.StartDate != nil {
		conditions = append(conditions, "event_timestamp >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "event_timestamp <= ?")
		args = append(args, *filter.EndDate)
	}

	conditions, args = appendStringCondition(conditions, args, "event_type", filter.EventType)
	conditions, args = appendStringCondition(conditions, args, "event_category", filter.EventCategory)
	conditions, args = appendStringCondition(conditions, args, "actor_id", filter.ActorID)
	conditions, args = appendStringCondition(conditions, args, "target_id", filter.TargetID)
	conditions, args = appendStringCondition(conditions, args, "action_result", filter.ActionResult)

	if filter.MinRiskScore > 0 {
		conditions = append(conditions, "risk_score >= ?")
		args = append(args, filter.MinRiskScore)
	}

	return conditions, args
}

// appendStringCondition adds an equality condition if value is non-empty.
func appendStringCondition(conditions []string, args []interface{}, column, value string) ([]string, []interface{}) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

// RangeFilter builds a filter spanning [start, end] with no other criteria.
func RangeFilter(start, end time.Time) Filter {
	return Filter{StartDate: &start, EndDate: &end}
}
