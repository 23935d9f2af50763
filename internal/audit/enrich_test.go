// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validRawEvent() *RawEvent {
	return &RawEvent{
		Type:     EventTypeDataAccess,
		Category: "career",
		Severity: SeverityInfo,
		Name:     "experience_viewed",
		Action:   "read",
		Result:   ResultSuccess,
	}
}

func TestEnrichRequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*RawEvent)
		wantField string
	}{
		{"missing event_type", func(r *RawEvent) { r.Type = "" }, "event_type"},
		{"missing event_category", func(r *RawEvent) { r.Category = "" }, "event_category"},
		{"missing event_severity", func(r *RawEvent) { r.Severity = "" }, "event_severity"},
		{"missing event_name", func(r *RawEvent) { r.Name = "" }, "event_name"},
		{"missing action", func(r *RawEvent) { r.Action = "" }, "action"},
		{"missing action_result", func(r *RawEvent) { r.Result = "" }, "action_result"},
	}

	enricher := NewEnricher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRawEvent()
			tt.mutate(raw)

			_, err := enricher.Enrich(raw)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestEnrichReportsFirstMissingField(t *testing.T) {
	// With every required field empty, the error names event_type: fields
	// are checked in declaration order and validation stops at the first
	// missing one.
	_, err := NewEnricher().Enrich(&RawEvent{})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if ve.Field != "event_type" {
		t.Errorf("field = %q, want %q", ve.Field, "event_type")
	}
}

func TestEnrichPopulatesIdentifiers(t *testing.T) {
	event, err := NewEnricher().Enrich(validRawEvent())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	if event.ID == "" {
		t.Error("expected non-empty ID")
	}
	if !strings.HasPrefix(event.EventID, "evt_") {
		t.Errorf("EventID = %q, want evt_ prefix", event.EventID)
	}
	if event.ProcessedAt.IsZero() {
		t.Error("expected non-zero ProcessedAt")
	}
	if event.Timestamp.IsZero() {
		t.Error("expected defaulted Timestamp")
	}

	other, err := NewEnricher().Enrich(validRawEvent())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if other.ID == event.ID {
		t.Error("expected unique IDs across events")
	}
}

func TestEnrichPreservesExplicitTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	raw := validRawEvent()
	raw.Timestamp = ts

	event, err := NewEnricher().Enrich(raw)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !event.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", event.Timestamp, ts)
	}
}

func TestClassifySensitivity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawEvent)
		want   Sensitivity
	}{
		{"users table is restricted", func(r *RawEvent) { r.TargetTable = "users" }, SensitivityRestricted},
		{"sessions table is restricted", func(r *RawEvent) { r.TargetTable = "user_sessions" }, SensitivityRestricted},
		{"experiences table is confidential", func(r *RawEvent) { r.TargetTable = "experiences" }, SensitivityConfidential},
		{"career paths are confidential", func(r *RawEvent) { r.TargetTable = "career_paths" }, SensitivityConfidential},
		{"authentication events are confidential", func(r *RawEvent) { r.Type = EventTypeAuthentication }, SensitivityConfidential},
		{"restricted wins over authentication", func(r *RawEvent) {
			r.Type = EventTypeAuthentication
			r.TargetTable = "users"
		}, SensitivityRestricted},
		{"everything else is internal", func(r *RawEvent) { r.TargetTable = "job_postings" }, SensitivityInternal},
		{"no target table is internal", func(r *RawEvent) {}, SensitivityInternal},
	}

	enricher := NewEnricher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRawEvent()
			tt.mutate(raw)

			event, err := enricher.Enrich(raw)
			if err != nil {
				t.Fatalf("Enrich: %v", err)
			}
			if event.Sensitivity != tt.want {
				t.Errorf("Sensitivity = %q, want %q", event.Sensitivity, tt.want)
			}
		})
	}
}

func TestComplianceTags(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawEvent)
		want   []ComplianceTag
	}{
		{"certifications access is HIPAA tagged", func(r *RawEvent) {
			r.TargetTable = "certifications"
		}, []ComplianceTag{TagHIPAA}},
		{"restricted delete is GDPR tagged", func(r *RawEvent) {
			r.TargetTable = "users"
			r.Action = "delete"
		}, []ComplianceTag{TagGDPR}},
		{"authentication is SOC2 tagged", func(r *RawEvent) {
			r.Type = EventTypeAuthentication
		}, []ComplianceTag{TagSOC2}},
		{"plain internal access is untagged", func(r *RawEvent) {
			r.TargetTable = "job_postings"
		}, nil},
	}

	enricher := NewEnricher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRawEvent()
			tt.mutate(raw)

			event, err := enricher.Enrich(raw)
			if err != nil {
				t.Fatalf("Enrich: %v", err)
			}
			if len(event.ComplianceTags) != len(tt.want) {
				t.Fatalf("tags = %v, want %v", event.ComplianceTags, tt.want)
			}
			for i, tag := range tt.want {
				if event.ComplianceTags[i] != tag {
					t.Errorf("tags[%d] = %q, want %q", i, event.ComplianceTags[i], tag)
				}
			}
		})
	}
}

func TestEnrichSerializesPayloads(t *testing.T) {
	raw := validRawEvent()
	raw.OldValues = map[string]interface{}{"title": "Engineer"}
	raw.NewValues = map[string]interface{}{"title": "Staff Engineer"}
	raw.CustomData = map[string]interface{}{"source": "profile_editor"}

	event, err := NewEnricher().Enrich(raw)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !strings.Contains(string(event.OldValues), "Engineer") {
		t.Errorf("OldValues = %s, want serialized payload", event.OldValues)
	}
	if !strings.Contains(string(event.NewValues), "Staff Engineer") {
		t.Errorf("NewValues = %s, want serialized payload", event.NewValues)
	}
	if !strings.Contains(string(event.CustomData), "profile_editor") {
		t.Errorf("CustomData = %s, want serialized payload", event.CustomData)
	}
}

func TestEnrichRejectsCyclicPayload(t *testing.T) {
	cyclic := map[string]interface{}{}
	cyclic["self"] = cyclic

	raw := validRawEvent()
	raw.CustomData = cyclic

	_, err := NewEnricher().Enrich(raw)
	if !errors.Is(err, ErrCyclicPayload) {
		t.Fatalf("expected ErrCyclicPayload, got %v", err)
	}
}

func TestEnrichRejectsCyclicStructPointer(t *testing.T) {
	type node struct {
		Next *node `json:"next,omitempty"`
	}
	a := &node{}
	a.Next = a

	raw := validRawEvent()
	raw.OldValues = a

	_, err := NewEnricher().Enrich(raw)
	if !errors.Is(err, ErrCyclicPayload) {
		t.Fatalf("expected ErrCyclicPayload, got %v", err)
	}
}

func TestEnrichAllowsSharedAcyclicReferences(t *testing.T) {
	// The same map referenced from two keys is a DAG, not a cycle.
	shared := map[string]interface{}{"k": "v"}
	raw := validRawEvent()
	raw.CustomData = map[string]interface{}{"a": shared, "b": shared}

	if _, err := NewEnricher().Enrich(raw); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
}

func TestEnrichRejectsExcessiveNesting(t *testing.T) {
	nested := map[string]interface{}{"leaf": true}
	for i := 0; i < maxPayloadDepth+2; i++ {
		nested = map[string]interface{}{"child": nested}
	}

	raw := validRawEvent()
	raw.CustomData = nested

	_, err := NewEnricher().Enrich(raw)
	if !errors.Is(err, ErrPayloadTooDeep) {
		t.Fatalf("expected ErrPayloadTooDeep, got %v", err)
	}
}
