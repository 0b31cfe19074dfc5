package envelope

import (
	"testing"
	"time"
)

func TestBuildDecodeRoundTrip(t *testing.T) {
	payload := map[string]any{"project_id": "P1", "request_text": "full audit"}
	before := time.Now().UTC()

	env, err := Build("PROJECT.INITIAL_REQUEST_RECEIVED", payload, "gateway", BuildOptions{
		CorrelationID: "corr-1",
		CausationID:   "cause-1",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if env.EventID == "" {
		t.Fatal("expected a fresh event_id")
	}
	if env.Timestamp.Before(before) {
		t.Fatalf("expected monotone timestamp >= %v, got %v", before, env.Timestamp)
	}

	fields, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	fields["producer_host"] = "extra-field-should-be-tolerated"

	decoded, err := Decode(fields)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.EventType != "PROJECT.INITIAL_REQUEST_RECEIVED" {
		t.Fatalf("event_type mismatch: %q", decoded.EventType)
	}
	if decoded.Source != "gateway" {
		t.Fatalf("source mismatch: %q", decoded.Source)
	}
	if decoded.CorrelationID != "corr-1" {
		t.Fatalf("correlation_id mismatch: %q", decoded.CorrelationID)
	}
	if decoded.CausationID != "cause-1" {
		t.Fatalf("causation_id mismatch: %q", decoded.CausationID)
	}
	if decoded.EventID != env.EventID {
		t.Fatalf("event_id should round-trip unchanged: %q vs %q", decoded.EventID, env.EventID)
	}

	var got map[string]any
	if err := decoded.UnmarshalPayload(&got); err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	if got["project_id"] != "P1" || got["request_text"] != "full audit" {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestBuildDefaultsCorrelationIDWhenAbsent(t *testing.T) {
	env, err := Build("USER.ANSWER_SUBMITTED", map[string]any{}, "gateway", BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if env.CorrelationID == "" {
		t.Fatal("expected a generated correlation_id")
	}
	if env.Instance != "gateway" {
		t.Fatalf("expected instance to default to source, got %q", env.Instance)
	}
	if env.EventVersion != 1 {
		t.Fatalf("expected default event_version 1, got %d", env.EventVersion)
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode(map[string]string{"event": "{not json"}})
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDecodeRejectsMissingEventField(t *testing.T) {
	_, err := Decode(map[string]string{"other": "x"})
	if err == nil {
		t.Fatal("expected decode error for missing event field")
	}
}

func TestTwoBuildsProduceDistinctEventIDs(t *testing.T) {
	a, _ := Build("WORK.ITEM_STARTED", map[string]any{}, "worker", BuildOptions{})
	b, _ := Build("WORK.ITEM_STARTED", map[string]any{}, "worker", BuildOptions{})
	if a.EventID == b.EventID {
		t.Fatal("expected distinct event_id per Build call")
	}
}
