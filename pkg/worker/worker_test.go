package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/backlog"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

func dispatchEnvelope(t *testing.T, projectID, itemID, agentTarget string, workContext map[string]any) envelope.Envelope {
	t.Helper()
	env, err := envelope.Build("WORK.ITEM_DISPATCHED", dispatchedPayload{
		ProjectID: projectID, BacklogItemID: itemID, ItemType: "AGENT_TASK",
		AgentTarget: agentTarget, WorkContext: workContext,
	}, "orchestrator", envelope.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return env
}

func readEventTypes(t *testing.T, s store.Store, stream string) []string {
	t.Helper()
	entries, err := s.ReadNew(context.Background(), stream, "inspect", "c1", 10, 0)
	if err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	var out []string
	for _, e := range entries {
		env, derr := envelope.Decode(e.Fields)
		if derr == nil {
			out = append(out, env.EventType)
		}
	}
	return out
}

func TestWorkerHappyPathEmitsStartedPublishedCompleted(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	w := New(s, "audit:events", "worker", "time_estimator",
		func(ctx context.Context, item backlog.Item) (Result, error) {
			return Result{
				Deliverable: map[string]any{"estimate_days": 3},
				Evidence:    map[string]any{"estimate_days": 3},
			}, nil
		}, nil)

	env := dispatchEnvelope(t, "P1", "I1", "time_estimator", map[string]any{"scope": "x"})
	if err := w.Handle(ctx, env, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	types := readEventTypes(t, s, "audit:events")
	want := []string{"WORK.ITEM_STARTED", "DELIVERABLE.PUBLISHED", "WORK.ITEM_COMPLETED"}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i, ty := range want {
		if types[i] != ty {
			t.Fatalf("expected event %d to be %s, got %s", i, ty, types[i])
		}
	}
}

func TestWorkerIgnoresDispatchForOtherAgentTarget(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	called := false
	w := New(s, "audit:events", "worker", "time_estimator",
		func(ctx context.Context, item backlog.Item) (Result, error) {
			called = true
			return Result{}, nil
		}, nil)

	env := dispatchEnvelope(t, "P1", "I1", "cost_estimator", nil)
	if err := w.Handle(ctx, env, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if called {
		t.Fatal("expected compute not to be invoked for a non-matching agent_target")
	}
	types := readEventTypes(t, s, "audit:events")
	if len(types) != 0 {
		t.Fatalf("expected no events emitted, got %v", types)
	}
}

func TestWorkerMissingRequiredFieldEmitsClarification(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	w := New(s, "audit:events", "worker", "time_estimator",
		func(ctx context.Context, item backlog.Item) (Result, error) {
			t.Fatal("compute must not run when required fields are missing")
			return Result{}, nil
		},
		func(workContext map[string]any) []string {
			if _, ok := workContext["scope"]; !ok {
				return []string{"scope"}
			}
			return nil
		})

	env := dispatchEnvelope(t, "P1", "I1", "time_estimator", map[string]any{})
	if err := w.Handle(ctx, env, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	types := readEventTypes(t, s, "audit:events")
	if len(types) != 1 || types[0] != "CLARIFICATION.NEEDED" {
		t.Fatalf("expected only CLARIFICATION.NEEDED, got %v", types)
	}
}

func TestWorkerComputeFailureEmitsWorkItemFailed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	w := New(s, "audit:events", "worker", "time_estimator",
		func(ctx context.Context, item backlog.Item) (Result, error) {
			return Result{}, apierrors.New(apierrors.Tool, "external service unavailable", nil)
		}, nil)

	env := dispatchEnvelope(t, "P1", "I1", "time_estimator", nil)
	if err := w.Handle(ctx, env, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	types := readEventTypes(t, s, "audit:events")
	if len(types) != 2 || types[0] != "WORK.ITEM_STARTED" || types[1] != "WORK.ITEM_FAILED" {
		t.Fatalf("expected STARTED then FAILED, got %v", types)
	}
}

func TestCategoryForUnwrappedErrorDefaultsToTool(t *testing.T) {
	if got := categoryFor(errors.New("boom")); got != "tool" {
		t.Fatalf("expected default category 'tool', got %q", got)
	}
}
