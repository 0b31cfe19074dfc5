// Package dlq publishes quarantine records for events the runtime cannot
// process: schema violations, decode failures, and attempts exhausted.
package dlq

import (
	"encoding/json"
	"context"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

const maxReasonLen = 512

// Record is the wire shape of one DLQ entry (spec §6): timestamp, best-
// effort event_id/event_type, reason, schema_id when applicable, the
// decoded envelope when decodable, and the verbatim original fields.
type Record struct {
	Timestamp     time.Time      `json:"timestamp"`
	EventID       string         `json:"event_id,omitempty"`
	EventType     string         `json:"event_type,omitempty"`
	Reason        string         `json:"reason"`
	SchemaID      string         `json:"schema_id,omitempty"`
	OriginalEvent *envelope.Envelope `json:"original_event,omitempty"`
	OriginalFields map[string]string `json:"original_fields"`
}

// Publisher appends Records to the DLQ stream.
type Publisher struct {
	store  store.Store
	stream string
}

// New returns a Publisher writing to the given DLQ stream name.
func New(s store.Store, stream string) *Publisher {
	if strings.TrimSpace(stream) == "" {
		stream = "audit:dlq"
	}
	return &Publisher{store: s, stream: stream}
}

// Publish writes a quarantine record. It never errors on malformed caller
// input (decode failures of rawFields['event'] are expected); it only
// errors if the write to the DLQ stream itself fails.
//
// The open question of "how to record DLQ context" (spec §9) is resolved
// here: the envelope is always decoded best-effort and stored under
// original_event, alongside the verbatim original_fields; on decode
// failure original_event is simply omitted.
func (p *Publisher) Publish(ctx context.Context, reason string, rawFields map[string]string, schemaID string) (string, error) {
	rec := Record{
		Timestamp:      time.Now().UTC(),
		Reason:         sanitizeReason(reason),
		SchemaID:       schemaID,
		OriginalFields: copyFields(rawFields),
	}
	if env, err := envelope.Decode(rawFields); err == nil {
		rec.EventID = env.EventID
		rec.EventType = env.EventType
		rec.OriginalEvent = &env
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return p.store.StreamAppend(ctx, p.stream, map[string]string{"dlq": string(b)})
}

// Requeue re-publishes a previously dead-lettered record's original event
// back onto the target stream, for operator-driven replay after a fix. It
// is an administrative path through the Store interface only; it has no
// bearing on the consumer loop's own retry/DLQ behavior.
func Requeue(ctx context.Context, s store.Store, targetStream string, rec Record) (string, error) {
	if rec.OriginalEvent == nil {
		fields := rec.OriginalFields
		if fields == nil {
			fields = map[string]string{}
		}
		return s.StreamAppend(ctx, targetStream, fields)
	}
	fields, err := envelope.Encode(*rec.OriginalEvent)
	if err != nil {
		return "", err
	}
	return s.StreamAppend(ctx, targetStream, fields)
}

func sanitizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	if reason == "" {
		reason = "unknown"
	}
	return reason
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
