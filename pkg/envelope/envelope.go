// Package envelope is the canonical event wrapper used on the main stream:
// build/decode helpers and correlation/causation propagation.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
)

// Envelope is the canonical wrapper for every event on the main stream.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Instance      string          `json:"instance"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// BuildOptions carries the optional arguments to Build.
type BuildOptions struct {
	CorrelationID string
	CausationID   string
	Instance      string
	EventVersion  int
}

// Build constructs a new envelope with a fresh event_id, the current UTC
// timestamp, and a correlation_id defaulted to a fresh id when absent.
func Build(eventType string, payload any, source string, opts BuildOptions) (Envelope, error) {
	eventType = strings.TrimSpace(eventType)
	source = strings.TrimSpace(source)
	if eventType == "" {
		return Envelope{}, apierrors.New(apierrors.Invalid, "event_type is required", nil)
	}
	if source == "" {
		return Envelope{}, apierrors.New(apierrors.Invalid, "source is required", nil)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, apierrors.Wrap(apierrors.Invalid, err)
	}

	version := opts.EventVersion
	if version == 0 {
		version = 1
	}
	instance := strings.TrimSpace(opts.Instance)
	if instance == "" {
		instance = source
	}
	correlationID := strings.TrimSpace(opts.CorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  version,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Instance:      instance,
		CorrelationID: correlationID,
		CausationID:   strings.TrimSpace(opts.CausationID),
		Payload:       raw,
	}, nil
}

// Encode returns the on-the-wire stream fields: a single field named
// "event" containing the JSON-encoded envelope.
func Encode(env Envelope) (map[string]string, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Invalid, err)
	}
	return map[string]string{"event": string(b)}, nil
}

// Decode parses the "event" field out of raw stream fields into an
// Envelope, tolerating any extra fields the entry may carry.
func Decode(rawFields map[string]string) (Envelope, error) {
	raw, ok := rawFields["event"]
	if !ok || strings.TrimSpace(raw) == "" {
		return Envelope{}, apierrors.New(apierrors.Decode, "missing \"event\" field", nil)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, apierrors.New(apierrors.Decode, fmt.Sprintf("invalid event JSON: %v", err), nil)
	}
	if err := validateRequired(env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func validateRequired(env Envelope) error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(env.EventID) == "" {
		missing = append(missing, "event_id")
	}
	if strings.TrimSpace(env.EventType) == "" {
		missing = append(missing, "event_type")
	}
	if strings.TrimSpace(env.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(env.CorrelationID) == "" {
		missing = append(missing, "correlation_id")
	}
	if env.Timestamp.IsZero() {
		missing = append(missing, "timestamp")
	}
	if len(missing) == 0 {
		return nil
	}
	return apierrors.New(apierrors.Decode, "missing required envelope field(s)", map[string]string{
		"fields": strings.Join(missing, ","),
	})
}

// UnmarshalPayload decodes the envelope's payload into dst.
func (e Envelope) UnmarshalPayload(dst any) error {
	if len(e.Payload) == 0 {
		return apierrors.New(apierrors.Contract, "payload is empty", nil)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return apierrors.New(apierrors.Contract, fmt.Sprintf("payload decode: %v", err), nil)
	}
	return nil
}

// PayloadMap returns the payload decoded as a generic map, for schema
// validation and best-effort DLQ recording.
func (e Envelope) PayloadMap() (map[string]any, error) {
	if len(e.Payload) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return nil, apierrors.New(apierrors.Contract, fmt.Sprintf("payload decode: %v", err), nil)
	}
	return m, nil
}

// AsMap renders the full envelope as a generic map, e.g. for envelope-shape
// schema validation.
func (e Envelope) AsMap() (map[string]any, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
