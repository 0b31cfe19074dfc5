package schemaregistry

import (
	"errors"
	"testing"
)

func TestLoadDefaultRegistersAllEventTypes(t *testing.T) {
	reg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	want := []string{
		"BACKLOG.ITEM_UNBLOCKED",
		"CLARIFICATION.NEEDED",
		"DELIVERABLE.PUBLISHED",
		"PROJECT.INITIAL_REQUEST_RECEIVED",
		"QUESTION.CREATED",
		"USER.ANSWER_SUBMITTED",
		"WORK.ITEM_COMPLETED",
		"WORK.ITEM_DISPATCHED",
		"WORK.ITEM_FAILED",
		"WORK.ITEM_STARTED",
	}
	got := reg.KnownTypes()
	if len(got) != len(want) {
		t.Fatalf("expected %d event types, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event type mismatch at %d: want %q got %q (%v)", i, want[i], got[i], got)
		}
	}
}

func TestValidateEnvelopeRejectsMissingRequiredField(t *testing.T) {
	reg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	err = reg.ValidateEnvelope(map[string]any{
		"event_id":   "e1",
		"event_type": "WORK.ITEM_STARTED",
	})
	if err == nil {
		t.Fatal("expected validation error for missing required fields")
	}
}

func TestValidateEnvelopeAcceptsWellFormedEnvelope(t *testing.T) {
	reg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	err = reg.ValidateEnvelope(map[string]any{
		"event_id":       "e1",
		"event_type":     "WORK.ITEM_STARTED",
		"event_version":  float64(1),
		"timestamp":      "2026-07-29T00:00:00Z",
		"source":         "orchestrator",
		"instance":       "orchestrator",
		"correlation_id": "c1",
	})
	if err != nil {
		t.Fatalf("expected a valid envelope to pass, got %v", err)
	}
}

func TestValidatePayloadUnknownType(t *testing.T) {
	reg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	err = reg.ValidatePayload("NOPE.NOT_REGISTERED", map[string]any{})
	var unknown *ErrUnknownType
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownType, got %v (%T)", err, err)
	}
}

func TestValidatePayloadRejectsMissingRequired(t *testing.T) {
	reg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	err = reg.ValidatePayload("WORK.ITEM_FAILED", map[string]any{
		"project_id":      "P1",
		"backlog_item_id": "I1",
	})
	if err == nil {
		t.Fatal("expected payload validation error for missing reason/category")
	}
}

func TestValidatePayloadAcceptsWellFormed(t *testing.T) {
	reg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	err = reg.ValidatePayload("WORK.ITEM_DISPATCHED", map[string]any{
		"project_id":      "P1",
		"backlog_item_id": "I1",
		"item_type":       "AGENT_TASK",
		"agent_target":    "time_estimator",
		"work_context":    map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("expected well-formed payload to pass, got %v", err)
	}
}
