// Package worker implements C12: a consumer.Runtime bound to one
// agent_target, running the per-dispatch protocol from spec.md §4.11.
package worker

import (
	"context"
	"strings"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/backlog"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

// Result is what an AgentCompute produces for a successfully completed
// dispatch: a published deliverable and the evidence the Definition-of-
// Done evaluator will judge.
type Result struct {
	Deliverable map[string]any
	Evidence    map[string]any
}

// AgentCompute is the opaque, per-agent-target computation spec.md §1
// deliberately leaves out of scope for the core. cmd/worker/agents holds
// example implementations.
type AgentCompute func(ctx context.Context, item backlog.Item) (Result, error)

// RequiredFields inspects work_context and returns the fields missing
// for this agent_target to proceed; an empty result means ready to run.
type RequiredFields func(workContext map[string]any) []string

type dispatchedPayload struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	ItemType      string         `json:"item_type"`
	AgentTarget   string         `json:"agent_target"`
	WorkContext   map[string]any `json:"work_context"`
}

type workItemStarted struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
}

type deliverablePublished struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	Deliverable   map[string]any `json:"deliverable"`
}

type workItemCompleted struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	Evidence      map[string]any `json:"evidence"`
}

type workItemFailed struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
	Reason        string `json:"reason"`
	Category      string `json:"category"`
}

type clarificationNeeded struct {
	ProjectID     string   `json:"project_id"`
	BacklogItemID string   `json:"backlog_item_id"`
	MissingFields []string `json:"missing_fields"`
}

// Worker binds one agent_target to an AgentCompute. Its Handle method is
// a consumer.Handler: wire it into a consumer.Runtime with Group set to
// "{agent_target}s" per spec.md §4.11.
type Worker struct {
	s              store.Store
	stream         string
	source         string
	agentTarget    string
	compute        AgentCompute
	requiredFields RequiredFields
}

// New returns a Worker for the given agent_target.
func New(s store.Store, stream, source, agentTarget string, compute AgentCompute, requiredFields RequiredFields) *Worker {
	if requiredFields == nil {
		requiredFields = func(map[string]any) []string { return nil }
	}
	return &Worker{s: s, stream: stream, source: source, agentTarget: agentTarget, compute: compute, requiredFields: requiredFields}
}

// Handle implements consumer.Handler. Events whose agent_target does not
// match, or whose event_type is not WORK.ITEM_DISPATCHED, are acked
// without action (the caller's idempotence check already covers replay).
func (w *Worker) Handle(ctx context.Context, env envelope.Envelope, rawFields map[string]string) error {
	if env.EventType != "WORK.ITEM_DISPATCHED" {
		return nil
	}
	var payload dispatchedPayload
	if err := env.UnmarshalPayload(&payload); err != nil {
		return err
	}
	if !strings.EqualFold(payload.AgentTarget, w.agentTarget) {
		return nil
	}

	if missing := w.requiredFields(payload.WorkContext); len(missing) > 0 {
		return w.emit(ctx, "CLARIFICATION.NEEDED", clarificationNeeded{
			ProjectID: payload.ProjectID, BacklogItemID: payload.BacklogItemID, MissingFields: missing,
		}, env.CorrelationID, env.EventID)
	}

	if err := w.emit(ctx, "WORK.ITEM_STARTED", workItemStarted{
		ProjectID: payload.ProjectID, BacklogItemID: payload.BacklogItemID,
	}, env.CorrelationID, env.EventID); err != nil {
		return err
	}

	item := backlog.Item{
		ProjectID: payload.ProjectID, ItemID: payload.BacklogItemID,
		ItemType: backlog.ItemType(payload.ItemType), AgentTarget: payload.AgentTarget,
		WorkContext: payload.WorkContext,
	}
	result, err := w.compute(ctx, item)
	if err != nil {
		return w.emit(ctx, "WORK.ITEM_FAILED", workItemFailed{
			ProjectID: payload.ProjectID, BacklogItemID: payload.BacklogItemID,
			Reason: err.Error(), Category: categoryFor(err),
		}, env.CorrelationID, env.EventID)
	}

	if err := w.emit(ctx, "DELIVERABLE.PUBLISHED", deliverablePublished{
		ProjectID: payload.ProjectID, BacklogItemID: payload.BacklogItemID, Deliverable: result.Deliverable,
	}, env.CorrelationID, env.EventID); err != nil {
		return err
	}
	return w.emit(ctx, "WORK.ITEM_COMPLETED", workItemCompleted{
		ProjectID: payload.ProjectID, BacklogItemID: payload.BacklogItemID, Evidence: result.Evidence,
	}, env.CorrelationID, env.EventID)
}

func (w *Worker) emit(ctx context.Context, eventType string, payload any, correlationID, causationID string) error {
	env, err := envelope.Build(eventType, payload, w.source, envelope.BuildOptions{
		CorrelationID: correlationID,
		CausationID:   causationID,
	})
	if err != nil {
		return err
	}
	fields, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	_, err = w.s.StreamAppend(ctx, w.stream, fields)
	return err
}

// categoryFor classifies an agent computation failure into the shared
// failure taxonomy. AgentCompute implementations that need a specific
// category should wrap their error in *apierrors.Error; anything else
// defaults to "tool" (a transient external-collaborator failure).
func categoryFor(err error) string {
	if ae, ok := err.(*apierrors.Error); ok && ae != nil {
		return string(ae.Code)
	}
	return "tool"
}
