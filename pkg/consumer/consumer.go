// Package consumer is the generic reliable stream processor shared by the
// Validator, the Orchestrator, and every Worker: read-new plus
// pending-reclaim, envelope+payload validation, idempotence, dispatch to a
// handler, then ack/retry/DLQ.
package consumer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
	"github.com/Ap3pp3rs94/backlog-runtime/internal/logging"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/dlq"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/idempotency"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/schemaregistry"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

// Handler processes one validated, de-duplicated envelope. Returning a
// *apierrors.Error with a retryable code (tool, timeout, internal) leaves the entry
// unacked so it reclaims; any other error routes straight to the DLQ.
type Handler func(ctx context.Context, env envelope.Envelope, rawFields map[string]string) error

// Options configures a Runtime. Every duration/count has a sane default
// matching spec §6's configuration surface.
type Options struct {
	Stream       string
	Group        string
	ConsumerName string

	ReadCount           int64
	BlockDuration       time.Duration
	IdleReclaim         time.Duration
	PendingReclaimCount int64
	MaxAttempts         int
	DedupeTTL           time.Duration

	AttemptKeyPrefix string // default "{Group}:attempts"

	Logger *logging.Logger
}

func (o *Options) setDefaults() {
	if o.ReadCount <= 0 {
		o.ReadCount = 10
	}
	if o.BlockDuration <= 0 {
		o.BlockDuration = 5 * time.Second
	}
	if o.IdleReclaim <= 0 {
		o.IdleReclaim = 30 * time.Second
	}
	if o.PendingReclaimCount <= 0 {
		o.PendingReclaimCount = 10
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.DedupeTTL <= 0 {
		o.DedupeTTL = 24 * time.Hour
	}
	if strings.TrimSpace(o.AttemptKeyPrefix) == "" {
		o.AttemptKeyPrefix = o.Group + ":attempts"
	}
	if o.Logger == nil {
		o.Logger = logging.Nop
	}
}

// Runtime binds (stream, group, consumer_name, handler) and repeats the
// read/validate/dedupe/dispatch/ack cycle until its context is canceled.
type Runtime struct {
	store    store.Store
	registry *schemaregistry.Registry
	idem     *idempotency.Guard
	dlqPub   *dlq.Publisher
	handler  Handler
	opts     Options
}

// New constructs a Runtime. It does not start processing; call Run.
func New(s store.Store, registry *schemaregistry.Registry, idem *idempotency.Guard, dlqPub *dlq.Publisher, handler Handler, opts Options) *Runtime {
	opts.setDefaults()
	return &Runtime{store: s, registry: registry, idem: idem, dlqPub: dlqPub, handler: handler, opts: opts}
}

// Run blocks, processing entries until ctx is canceled. A graceful stop
// lets the in-flight handler call finish but does not ack on its behalf
// if it was already past its cancellation check.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.store.EnsureGroup(ctx, r.opts.Stream, r.opts.Group); err != nil {
		return fmt.Errorf("consumer: ensure group: %w", err)
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entries, err := r.store.ReadNew(ctx, r.opts.Stream, r.opts.Group, r.opts.ConsumerName, r.opts.ReadCount, r.opts.BlockDuration)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.opts.Logger.Error(ctx, "consumer: read-new failed", map[string]any{"stream": r.opts.Stream, "group": r.opts.Group, "error": err.Error()})
			continue
		}
		if len(entries) == 0 {
			entries, err = r.reclaimPending(ctx)
			if err != nil {
				r.opts.Logger.Error(ctx, "consumer: reclaim failed", map[string]any{"stream": r.opts.Stream, "group": r.opts.Group, "error": err.Error()})
				continue
			}
		}
		for _, e := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.process(ctx, e)
		}
	}
}

func (r *Runtime) reclaimPending(ctx context.Context) ([]store.StreamEntry, error) {
	pending, err := r.store.Pending(ctx, r.opts.Stream, r.opts.Group, r.opts.IdleReclaim, r.opts.PendingReclaimCount)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	return r.store.Claim(ctx, r.opts.Stream, r.opts.Group, r.opts.ConsumerName, ids)
}

func (r *Runtime) process(ctx context.Context, entry store.StreamEntry) {
	env, err := envelope.Decode(entry.Fields)
	if err != nil {
		r.toDLQ(ctx, entry, "envelope_decode", "")
		r.ack(ctx, entry.ID)
		return
	}

	envMap, err := env.AsMap()
	if err == nil {
		err = r.registry.ValidateEnvelope(envMap)
	}
	if err != nil {
		r.toDLQ(ctx, entry, "envelope_validation", "envelope")
		r.ack(ctx, entry.ID)
		return
	}

	payloadMap, err := env.PayloadMap()
	if err == nil {
		err = r.registry.ValidatePayload(env.EventType, payloadMap)
	}
	if err != nil {
		r.toDLQ(ctx, entry, "payload_validation", env.EventType)
		r.ack(ctx, entry.ID)
		return
	}

	isNew, err := r.idem.MarkIfNew(ctx, r.opts.Group, env.EventID, r.opts.DedupeTTL)
	if err != nil {
		r.opts.Logger.Error(ctx, "consumer: idempotence check failed", map[string]any{"event_id": env.EventID, "error": err.Error()})
		return
	}
	if !isNew {
		// An entry whose handler failed transiently carries an attempt
		// counter and is retried; anything else is a duplicate delivery.
		_, retrying, getErr := r.store.Get(ctx, r.attemptKey(env.EventID))
		if getErr != nil {
			r.opts.Logger.Error(ctx, "consumer: attempt lookup failed", map[string]any{"event_id": env.EventID, "error": getErr.Error()})
			return
		}
		if !retrying {
			r.ack(ctx, entry.ID)
			return
		}
	}

	err = r.handler(ctx, env, entry.Fields)
	if err == nil {
		r.ack(ctx, entry.ID)
		return
	}

	var apiErr *apierrors.Error
	if ae, ok := err.(*apierrors.Error); ok {
		apiErr = ae
	}
	if apiErr != nil && apiErr.Retryable() {
		attempts, incErr := r.store.Incr(ctx, r.attemptKey(env.EventID))
		if incErr != nil {
			r.opts.Logger.Error(ctx, "consumer: attempt counter failed", map[string]any{"event_id": env.EventID, "error": incErr.Error()})
			return
		}
		if int(attempts) < r.opts.MaxAttempts {
			// Leave unacked; the entry reclaims on idle and retries.
			return
		}
		r.toDLQ(ctx, entry, "max_attempts_exhausted", "")
		_ = r.store.Del(ctx, r.attemptKey(env.EventID))
		r.ack(ctx, entry.ID)
		return
	}

	reason := "handler_error"
	if apiErr != nil {
		reason = string(apiErr.Code)
	}
	r.opts.Logger.Error(ctx, "consumer: handler error", map[string]any{"event_id": env.EventID, "event_type": env.EventType, "reason": reason, "error": err.Error()})
	r.toDLQ(ctx, entry, reason, "")
	r.ack(ctx, entry.ID)
}

func (r *Runtime) attemptKey(eventID string) string {
	return fmt.Sprintf("%s:%s", r.opts.AttemptKeyPrefix, eventID)
}

func (r *Runtime) toDLQ(ctx context.Context, entry store.StreamEntry, reason, schemaID string) {
	if _, err := r.dlqPub.Publish(ctx, reason, entry.Fields, schemaID); err != nil {
		r.opts.Logger.Error(ctx, "consumer: dlq publish failed", map[string]any{"reason": reason, "error": err.Error()})
	}
}

func (r *Runtime) ack(ctx context.Context, id string) {
	if err := r.store.Ack(ctx, r.opts.Stream, r.opts.Group, id); err != nil {
		r.opts.Logger.Error(ctx, "consumer: ack failed", map[string]any{"id": id, "error": err.Error()})
	}
}
