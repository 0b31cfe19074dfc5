// Package validatorsvc implements C13: a Stream Consumer Runtime whose
// handler does nothing beyond what the runtime already does (decode,
// validate, DLQ, ack). Its value is running under its own consumer
// group so schema violations surface regardless of which other groups
// process the same event.
package validatorsvc

import (
	"context"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/consumer"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/dlq"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/idempotency"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/schemaregistry"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

// DefaultGroup is the consumer group validators run under so their
// pass/fail bookkeeping never interferes with the Orchestrator's or any
// worker's own group.
const DefaultGroup = "validators"

// New returns a consumer.Runtime that validates every entry on stream
// and does nothing else: it neither locks nor mutates application
// stores, satisfying spec.md §4.12's "must not race or interfere"
// requirement by construction.
func New(s store.Store, registry *schemaregistry.Registry, idem *idempotency.Guard, dlqPub *dlq.Publisher, opts consumer.Options) *consumer.Runtime {
	if opts.Group == "" {
		opts.Group = DefaultGroup
	}
	noop := func(ctx context.Context, env envelope.Envelope, rawFields map[string]string) error {
		return nil
	}
	return consumer.New(s, registry, idem, dlqPub, noop, opts)
}
