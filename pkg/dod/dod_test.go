package dod

import (
	"testing"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/statemachine"
)

func TestDefaultEvaluatorBlocksOnEmptyEvidence(t *testing.T) {
	status, missing := DefaultEvaluator(nil)
	if status != statemachine.Blocked || len(missing) != 1 {
		t.Fatalf("expected BLOCKED with missing evidence, got %v %v", status, missing)
	}
}

func TestDefaultEvaluatorBlocksOnIncompleteMarker(t *testing.T) {
	status, _ := DefaultEvaluator(map[string]any{"incomplete": true, "notes": "partial"})
	if status != statemachine.Blocked {
		t.Fatalf("expected BLOCKED when incomplete=true, got %v", status)
	}
}

func TestDefaultEvaluatorAcceptsNonEmptyEvidence(t *testing.T) {
	status, missing := DefaultEvaluator(map[string]any{"result": "ok"})
	if status != statemachine.Done || len(missing) != 0 {
		t.Fatalf("expected DONE, got %v %v", status, missing)
	}
}

func TestRegistryDispatchesByItemType(t *testing.T) {
	r := New()
	r.Register("AGENT_TASK", func(evidence map[string]any) (statemachine.Status, []string) {
		return statemachine.Failed, nil
	})
	status, _ := r.Evaluate("AGENT_TASK", map[string]any{"result": "ok"})
	if status != statemachine.Failed {
		t.Fatalf("expected type-specific evaluator to win, got %v", status)
	}
	status, _ = r.Evaluate("GENERIC_TASK", map[string]any{"result": "ok"})
	if status != statemachine.Done {
		t.Fatalf("expected default evaluator fallback, got %v", status)
	}
}
