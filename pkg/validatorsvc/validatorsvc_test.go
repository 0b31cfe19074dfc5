package validatorsvc

import (
	"context"
	"testing"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/consumer"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/dlq"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/idempotency"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/schemaregistry"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

func TestValidatorAcksValidEventsWithoutSideEffects(t *testing.T) {
	s := store.NewMemory()
	reg, err := schemaregistry.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	idem := idempotency.New(s, "audit:idem")
	pub := dlq.New(s, "audit:dlq")

	env, _ := envelope.Build("PROJECT.INITIAL_REQUEST_RECEIVED", map[string]any{"project_id": "P1", "request_text": "x"}, "gateway", envelope.BuildOptions{})
	fields, _ := envelope.Encode(env)
	if _, err := s.StreamAppend(context.Background(), "audit:events", fields); err != nil {
		t.Fatalf("StreamAppend: %v", err)
	}

	rt := New(s, reg, idem, pub, consumer.Options{
		Stream: "audit:events", ConsumerName: "validator-1", BlockDuration: 0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = rt.Run(ctx)

	pending, _ := s.Pending(context.Background(), "audit:events", DefaultGroup, 0, 10)
	if len(pending) != 0 {
		t.Fatalf("expected entry acked, got pending %+v", pending)
	}
	dlqEntries, _ := s.ReadNew(context.Background(), "audit:dlq", "inspect", "c", 10, 0)
	if len(dlqEntries) != 0 {
		t.Fatalf("expected no dlq entries for a valid event, got %d", len(dlqEntries))
	}
}
