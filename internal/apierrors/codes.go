// Package apierrors is the runtime's closed error-code vocabulary, shared
// between DLQ reasons and WORK.ITEM_FAILED.category so failures are
// classified once and surfaced consistently everywhere.
package apierrors

import "sort"

// Code is a stable failure category. Once published, codes are API-stable.
type Code string

// Failure taxonomy (spec §7), plus store-level codes for conditions the
// taxonomy doesn't name.
const (
	Contract           Code = "contract"
	Decode             Code = "decode"
	DataInsufficiency  Code = "data_insufficiency"
	Tool               Code = "tool"
	Reasoning          Code = "reasoning"
	IllegalTransition  Code = "illegal_transition"
	Timeout            Code = "timeout"
	MaxAttempts        Code = "max_attempts"

	NotFound Code = "not_found"
	Invalid  Code = "invalid"
	Internal Code = "internal"
)

// Meta describes a code's retry/propagation characteristics.
type Meta struct {
	Retryable   bool
	Description string
}

var registry = map[Code]Meta{
	Contract:          {Retryable: false, Description: "envelope or payload schema violation"},
	Decode:            {Retryable: false, Description: "unparseable raw stream entry"},
	DataInsufficiency: {Retryable: false, Description: "required work_context inputs absent"},
	Tool:              {Retryable: true, Description: "transient failure calling an external collaborator"},
	Reasoning:         {Retryable: false, Description: "internal contradiction detected by a DoD or sanity check"},
	IllegalTransition: {Retryable: false, Description: "state machine rejected a status change"},
	Timeout:           {Retryable: true, Description: "handler exceeded its wall-clock budget"},
	MaxAttempts:       {Retryable: false, Description: "retried to exhaustion"},

	NotFound: {Retryable: false, Description: "entity not found"},
	Invalid:  {Retryable: false, Description: "malformed input"},
	Internal: {Retryable: true, Description: "internal error"},
}

func MetaFor(code Code) (Meta, bool) {
	m, ok := registry[code]
	return m, ok
}

func Known(code Code) bool {
	_, ok := registry[code]
	return ok
}

func Retryable(code Code) bool {
	m, ok := registry[code]
	return ok && m.Retryable
}

// List returns every known code, sorted.
func List() []Code {
	out := make([]Code, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
