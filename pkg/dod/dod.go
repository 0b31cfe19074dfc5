// Package dod implements the Definition-of-Done evaluator: invoked on
// every WORK.ITEM_COMPLETED, it decides whether the accumulated evidence
// satisfies the item's type-specific completion criteria.
package dod

import "github.com/Ap3pp3rs94/backlog-runtime/pkg/statemachine"

// Evaluator inspects the evidence object attached to a WORK.ITEM_COMPLETED
// event and returns the backlog status it warrants (DONE, BLOCKED, or
// FAILED) plus, for BLOCKED, the fields still missing.
type Evaluator func(evidence map[string]any) (statemachine.Status, []string)

// Registry dispatches to an Evaluator by item_type, falling back to a
// default when no type-specific evaluator is registered.
type Registry struct {
	byType  map[string]Evaluator
	byTypeD Evaluator
}

// New returns a Registry pre-seeded with DefaultEvaluator as the fallback.
func New() *Registry {
	return &Registry{byType: map[string]Evaluator{}, byTypeD: DefaultEvaluator}
}

// Register installs a type-specific evaluator, replacing any previous one
// for that item_type.
func (r *Registry) Register(itemType string, eval Evaluator) {
	r.byType[itemType] = eval
}

// Evaluate dispatches evidence to the evaluator registered for itemType,
// or DefaultEvaluator when none was registered.
func (r *Registry) Evaluate(itemType string, evidence map[string]any) (statemachine.Status, []string) {
	if eval, ok := r.byType[itemType]; ok {
		return eval(evidence)
	}
	return r.byTypeD(evidence)
}

// DefaultEvaluator requires a non-empty evidence object carrying no
// "incomplete": true marker. Anything else is BLOCKED pending more work,
// never FAILED — a worker that could not complete at all is expected to
// have emitted WORK.ITEM_FAILED instead of WORK.ITEM_COMPLETED.
func DefaultEvaluator(evidence map[string]any) (statemachine.Status, []string) {
	if len(evidence) == 0 {
		return statemachine.Blocked, []string{"evidence"}
	}
	if v, ok := evidence["incomplete"]; ok {
		if b, isBool := v.(bool); isBool && b {
			return statemachine.Blocked, []string{"evidence.incomplete"}
		}
	}
	return statemachine.Done, nil
}
