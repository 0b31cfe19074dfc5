// Package schemaregistry loads the envelope schema plus one payload schema
// per event_type and validates documents against them (JSON Schema draft
// 2020-12, format-aware).
package schemaregistry

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
)

//go:embed schemas/envelope.schema.json schemas/payloads/*.schema.json
var defaultSchemas embed.FS

// SchemaError is returned by validation failures; it carries the schema_id
// so callers (the DLQ publisher) can record which contract was violated.
type SchemaError struct {
	Message  string
	SchemaID string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.SchemaID, e.Message)
}

// ErrUnknownType is returned by ValidatePayload for an event_type with no
// registered payload schema.
type ErrUnknownType struct {
	EventType string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("schemaregistry: unknown event_type %q", e.EventType)
}

// Registry is an immutable, loaded set of compiled schemas.
type Registry struct {
	envelope *jsonschema.Schema
	byType   map[string]*jsonschema.Schema
}

// Load walks fsys under baseDir, compiling schemas/envelope.schema.json as
// the envelope schema and every schemas/payloads/*.schema.json file as a
// payload schema keyed by its "x-event-type" tag. Fails if the envelope
// schema is absent, a file is unparseable, or two payload schemas claim the
// same event_type.
func Load(fsys fs.FS, baseDir string) (*Registry, error) {
	compiler := jsonschema.NewCompiler()

	envelopePath := path.Join(baseDir, "schemas", "envelope.schema.json")
	envelopeSchema, err := compileFile(compiler, fsys, envelopePath)
	if err != nil {
		return nil, fmt.Errorf("schemaregistry: load envelope schema: %w", err)
	}

	payloadsDir := path.Join(baseDir, "schemas", "payloads")
	entries, err := fs.ReadDir(fsys, payloadsDir)
	if err != nil {
		return nil, fmt.Errorf("schemaregistry: read payload schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	byType := make(map[string]*jsonschema.Schema, len(entries))
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".schema.json") {
			continue
		}
		full := path.Join(payloadsDir, ent.Name())
		raw, err := fs.ReadFile(fsys, full)
		if err != nil {
			return nil, fmt.Errorf("schemaregistry: read %s: %w", full, err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("schemaregistry: parse %s: %w", full, err)
		}
		eventType, _ := doc["x-event-type"].(string)
		eventType = strings.TrimSpace(eventType)
		if eventType == "" {
			return nil, fmt.Errorf("schemaregistry: %s missing x-event-type tag", full)
		}
		if _, dup := byType[eventType]; dup {
			return nil, fmt.Errorf("schemaregistry: event_type %q claimed by more than one schema", eventType)
		}
		schema, err := compileFile(compiler, fsys, full)
		if err != nil {
			return nil, fmt.Errorf("schemaregistry: compile %s: %w", full, err)
		}
		byType[eventType] = schema
	}

	return &Registry{envelope: envelopeSchema, byType: byType}, nil
}

// LoadDefault loads the schemas embedded in this package.
func LoadDefault() (*Registry, error) {
	return Load(defaultSchemas, ".")
}

func compileFile(compiler *jsonschema.Compiler, fsys fs.FS, filePath string) (*jsonschema.Schema, error) {
	raw, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	url := "mem://" + filePath
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// ValidateEnvelope validates the envelope's own shape (not its payload).
func (r *Registry) ValidateEnvelope(envelope map[string]any) error {
	if err := r.envelope.Validate(envelope); err != nil {
		return &SchemaError{Message: err.Error(), SchemaID: "envelope"}
	}
	return nil
}

// ValidatePayload validates payload against the schema registered for
// eventType.
func (r *Registry) ValidatePayload(eventType string, payload map[string]any) error {
	schema, ok := r.byType[eventType]
	if !ok {
		return &ErrUnknownType{EventType: eventType}
	}
	if err := schema.Validate(payload); err != nil {
		return &SchemaError{Message: err.Error(), SchemaID: eventType}
	}
	return nil
}

// KnownTypes returns every event_type with a registered payload schema, sorted.
func (r *Registry) KnownTypes() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ToAPIError maps a registry error into the shared apierrors vocabulary.
func ToAPIError(err error) *apierrors.Error {
	if err == nil {
		return nil
	}
	var schemaErr *SchemaError
	if se, ok := err.(*SchemaError); ok {
		schemaErr = se
		return apierrors.New(apierrors.Contract, schemaErr.Message, map[string]string{"schema_id": schemaErr.SchemaID})
	}
	if ue, ok := err.(*ErrUnknownType); ok {
		return apierrors.New(apierrors.Contract, ue.Error(), map[string]string{"schema_id": ue.EventType})
	}
	return apierrors.Wrap(apierrors.Contract, err)
}
