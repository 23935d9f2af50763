// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"reflect"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// maxPayloadDepth bounds nesting accepted in event payloads.
const maxPayloadDepth = 32

// restrictedTables hold user-identity data. Access is classified restricted.
var restrictedTables = map[string]bool{
	"users":                  true,
	"user_sessions":          true,
	"user_roles":             true,
	"user_encryption_keys":   true,
	"user_deletion_requests": true,
}

// confidentialTables hold detailed career data. Access is classified confidential.
var confidentialTables = map[string]bool{
	"experiences":          true,
	"experiences_detailed": true,
	"career_paths":         true,
	"certifications":       true,
	"chat_conversations":   true,
	"chat_messages":        true,
}

// hipaaAdjacentTables feed HIPAA reporting when touched at confidential or
// restricted sensitivity.
var hipaaAdjacentTables = map[string]bool{
	"certifications":    true,
	"health_records":    true,
	"medical_clearance": true,
}

// requiredFields lists the six required RawEvent fields in the order they
// are checked. Validation fails on the first missing one.
var requiredFields = []struct {
	name  string
	value func(*RawEvent) string
}{
	{"event_type", func(r *RawEvent) string { return string(r.Type) }},
	{"event_category", func(r *RawEvent) string { return r.Category }},
	{"event_severity", func(r *RawEvent) string { return string(r.Severity) }},
	{"event_name", func(r *RawEvent) string { return r.Name }},
	{"action", func(r *RawEvent) string { return r.Action }},
	{"action_result", func(r *RawEvent) string { return string(r.Result) }},
}

// Enricher validates raw events and produces enriched, classified events.
// It never touches the datastore.
type Enricher struct {
	now func() time.Time
}

// NewEnricher creates an Enricher using the real clock.
func NewEnricher() *Enricher {
	return &Enricher{now: time.Now}
}

// Enrich validates the raw event and returns a fully-typed enriched event.
// A missing required field yields a ValidationError naming that field; a
// payload containing a reference cycle yields ErrCyclicPayload.
func (e *Enricher) Enrich(raw *RawEvent) (*Event, error) {
	for _, f := range requiredFields {
		if f.value(raw) == "" {
			return nil, &ValidationError{Field: f.name}
		}
	}

	oldValues, err := encodePayload(raw.OldValues)
	if err != nil {
		return nil, fmt.Errorf("old_values: %w", err)
	}
	newValues, err := encodePayload(raw.NewValues)
	if err != nil {
		return nil, fmt.Errorf("new_values: %w", err)
	}
	customData, err := encodePayload(raw.CustomData)
	if err != nil {
		return nil, fmt.Errorf("custom_data: %w", err)
	}

	now := e.now()
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = now
	}

	event := &Event{
		ID:             uuid.New().String(),
		EventID:        generateEventTag(),
		Type:           raw.Type,
		Category:       raw.Category,
		Severity:       raw.Severity,
		Name:           raw.Name,
		Action:         raw.Action,
		Result:         raw.Result,
		ActorID:        raw.ActorID,
		ActorUsername:  raw.ActorUsername,
		ActorRoles:     raw.ActorRoles,
		TargetID:       raw.TargetID,
		TargetName:     raw.TargetName,
		TargetTable:    raw.TargetTable,
		IPAddress:      raw.IPAddress,
		UserAgent:      raw.UserAgent,
		RequestID:      raw.RequestID,
		SessionID:      raw.SessionID,
		HTTPMethod:     raw.HTTPMethod,
		HTTPPath:       raw.HTTPPath,
		HTTPStatusCode: raw.HTTPStatusCode,
		OldValues:      oldValues,
		NewValues:      newValues,
		CustomData:     customData,
		Timestamp:      ts,
		ProcessedAt:    now,
	}

	event.Sensitivity = classifySensitivity(event)
	event.ComplianceTags = complianceTags(event)

	return event, nil
}

// classifySensitivity applies the classification rules in precedence order:
// restricted tables first, then confidential tables or authentication
// events, then internal.
func classifySensitivity(event *Event) Sensitivity {
	switch {
	case restrictedTables[event.TargetTable]:
		return SensitivityRestricted
	case confidentialTables[event.TargetTable] || event.Type == EventTypeAuthentication:
		return SensitivityConfidential
	default:
		return SensitivityInternal
	}
}

// complianceTags derives the framework tags an event feeds. An event may
// carry multiple tags.
func complianceTags(event *Event) []ComplianceTag {
	var tags []ComplianceTag

	if hipaaAdjacentTables[event.TargetTable] &&
		(event.Sensitivity == SensitivityConfidential || event.Sensitivity == SensitivityRestricted) {
		tags = append(tags, TagHIPAA)
	}
	if event.Action == "delete" && restrictedTables[event.TargetTable] {
		tags = append(tags, TagGDPR)
	}
	if event.Type == EventTypeAuthentication {
		tags = append(tags, TagSOC2)
	}

	return tags
}

// generateEventTag returns the human-readable correlation tag.
func generateEventTag() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "evt_" + time.Now().Format("20060102150405.000000000")
	}
	return "evt_" + hex.EncodeToString(b)
}

// encodePayload serializes an arbitrary payload value after verifying it is
// acyclic and within the depth bound. Cyclic input is rejected, not pruned.
func encodePayload(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if err := checkEncodable(reflect.ValueOf(v), make(map[uintptr]bool), 0); err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}
	return data, nil
}

// checkEncodable walks a value detecting reference cycles and excessive
// nesting before the payload reaches the JSON encoder.
func checkEncodable(v reflect.Value, seen map[uintptr]bool, depth int) error {
	if depth > maxPayloadDepth {
		return ErrPayloadTooDeep
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return ErrCyclicPayload
		}
		seen[ptr] = true
		defer delete(seen, ptr)

		switch v.Kind() {
		case reflect.Ptr:
			return checkEncodable(v.Elem(), seen, depth+1)
		case reflect.Map:
			for _, key := range v.MapKeys() {
				if err := checkEncodable(v.MapIndex(key), seen, depth+1); err != nil {
					return err
				}
			}
		case reflect.Slice:
			for i := 0; i < v.Len(); i++ {
				if err := checkEncodable(v.Index(i), seen, depth+1); err != nil {
					return err
				}
			}
		}
		return nil

	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkEncodable(v.Index(i), seen, depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkEncodable(v.Elem(), seen, depth+1)

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			if err := checkEncodable(v.Field(i), seen, depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("unsupported payload type %s", v.Kind())

	default:
		return nil
	}
}
