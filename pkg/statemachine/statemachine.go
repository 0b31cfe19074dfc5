// Package statemachine defines the backlog item status enum and the
// fixed set of legal transitions between them (C10). It holds no state
// of its own; callers persist the resulting status via pkg/backlog.
package statemachine

import "github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"

// Status is a backlog item lifecycle state.
type Status string

const (
	Created    Status = "CREATED"
	Ready      Status = "READY"
	Blocked    Status = "BLOCKED"
	InProgress Status = "IN_PROGRESS"
	Done       Status = "DONE"
	Failed     Status = "FAILED"
)

var transitions = map[Status]map[Status]bool{
	Created:    {Ready: true, Blocked: true, Failed: true},
	Ready:      {InProgress: true, Blocked: true, Failed: true},
	Blocked:    {Ready: true, Failed: true},
	InProgress: {Done: true, Failed: true, Blocked: true},
	Done:       {},
	Failed:     {},
}

// IllegalTransition reports an attempted transition the table forbids.
type IllegalTransition struct {
	From   Status
	To     Status
	Reason string
}

func (e *IllegalTransition) Error() string {
	return "illegal transition " + string(e.From) + " -> " + string(e.To) + ": " + e.Reason
}

// AssertTransition reports whether from -> to is legal. DONE and FAILED
// are absorbing: no transition out of either is ever legal.
func AssertTransition(from, to Status) error {
	allowed, knownFrom := transitions[from]
	if !knownFrom {
		return &IllegalTransition{From: from, To: to, Reason: "unknown source status"}
	}
	if !allowed[to] {
		reason := "not a permitted transition"
		if from == Done || from == Failed {
			reason = "source status is terminal"
		}
		return &IllegalTransition{From: from, To: to, Reason: reason}
	}
	return nil
}

// ToAPIError converts an IllegalTransition into the shared error
// vocabulary, for callers (e.g. the Orchestrator) that route every
// failure through apierrors for DLQ/logging purposes.
func ToAPIError(err *IllegalTransition) *apierrors.Error {
	if err == nil {
		return nil
	}
	return apierrors.New(apierrors.IllegalTransition, err.Error(), map[string]string{
		"from": string(err.From),
		"to":   string(err.To),
	})
}

// IsTerminal reports whether a status accepts no further transitions.
func IsTerminal(s Status) bool {
	return s == Done || s == Failed
}
