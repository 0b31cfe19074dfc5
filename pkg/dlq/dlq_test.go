package dlq

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

func TestPublishDecodableEnvelopeRecordsOriginalEvent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	p := New(s, "audit:dlq")

	env, err := envelope.Build("WORK.ITEM_FAILED", map[string]any{"reason": "boom"}, "worker", envelope.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fields, err := envelope.Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	id, err := p.Publish(ctx, "envelope_validation", fields, "WORK.ITEM_FAILED")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty dlq entry id")
	}

	entries, err := s.ReadNew(ctx, "audit:dlq", "inspect", "c1", 10, 0)
	if err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 dlq entry, got %d", len(entries))
	}
	var rec Record
	if err := json.Unmarshal([]byte(entries[0].Fields["dlq"]), &rec); err != nil {
		t.Fatalf("unmarshal dlq record: %v", err)
	}
	if rec.EventID != env.EventID {
		t.Fatalf("expected original_event.event_id to match, got %q vs %q", rec.EventID, env.EventID)
	}
	if rec.OriginalFields["event"] != fields["event"] {
		t.Fatal("expected original_fields to be preserved verbatim")
	}
	if rec.Reason != "envelope_validation" {
		t.Fatalf("unexpected reason: %q", rec.Reason)
	}
}

func TestPublishUndecodableEventOmitsOriginalEvent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	p := New(s, "audit:dlq")

	rawFields := map[string]string{"event": "{not json"}
	id, err := p.Publish(ctx, "envelope_decode", rawFields, "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	entries, _ := s.ReadNew(ctx, "audit:dlq", "inspect", "c1", 10, 0)
	var rec Record
	if err := json.Unmarshal([]byte(entries[0].Fields["dlq"]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.OriginalEvent != nil {
		t.Fatal("expected original_event to be omitted for undecodable input")
	}
	if rec.OriginalFields["event"] != "{not json" {
		t.Fatal("expected original_fields preserved verbatim even when undecodable")
	}
}

func TestRequeuePublishesOriginalEventOntoTargetStream(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	env, _ := envelope.Build("PROJECT.INITIAL_REQUEST_RECEIVED", map[string]any{"project_id": "P1", "request_text": "x"}, "gateway", envelope.BuildOptions{})
	fields, _ := envelope.Encode(env)

	rec := Record{OriginalEvent: &env, OriginalFields: fields}
	id, err := Requeue(ctx, s, "audit:events", rec)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty requeue entry id")
	}
	entries, _ := s.ReadNew(ctx, "audit:events", "g", "c", 10, 0)
	if len(entries) != 1 || entries[0].Fields["event"] != fields["event"] {
		t.Fatalf("unexpected requeued entry: %+v", entries)
	}
}
