// Package orchestrator implements C11: intake handling, the clarification
// loop, and dispatch_ready — the only writer of backlog item status and
// the sole source of WORK.ITEM_DISPATCHED.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/logging"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/backlog"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/dod"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/envelope"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/lock"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/question"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/statemachine"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
	"github.com/google/uuid"
)

// Options configures an Orchestrator.
type Options struct {
	Stream    string
	Source    string
	LockTTL   time.Duration
	Ambiguity AmbiguityRule
	Templates TemplateSelector
	DoD       *dod.Registry
	Logger    *logging.Logger
}

func (o *Options) setDefaults() {
	if strings.TrimSpace(o.Stream) == "" {
		o.Stream = "audit:events"
	}
	if strings.TrimSpace(o.Source) == "" {
		o.Source = "orchestrator"
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 120 * time.Second
	}
	if o.Ambiguity == nil {
		o.Ambiguity = RequiredFieldsRule{}
	}
	if o.Templates == nil {
		o.Templates = KeywordTemplateSelector{}
	}
	if o.DoD == nil {
		o.DoD = dod.New()
	}
	if o.Logger == nil {
		o.Logger = logging.Nop
	}
}

// Orchestrator owns backlog generation, the clarification loop, and
// dispatch_ready. It is driven by pkg/consumer.Runtime as its Handler.
type Orchestrator struct {
	s         store.Store
	backlog   *backlog.Store
	questions *question.Store
	locks     *lock.Service
	opts      Options
}

// New constructs an Orchestrator over the given stores.
func New(s store.Store, bs *backlog.Store, qs *question.Store, locks *lock.Service, opts Options) *Orchestrator {
	opts.setDefaults()
	return &Orchestrator{s: s, backlog: bs, questions: qs, locks: locks, opts: opts}
}

// Handle is the consumer.Handler entrypoint: it dispatches on event_type
// and acks-without-action for anything it does not own.
func (o *Orchestrator) Handle(ctx context.Context, env envelope.Envelope, rawFields map[string]string) error {
	switch env.EventType {
	case "PROJECT.INITIAL_REQUEST_RECEIVED":
		return o.handleIntake(ctx, env)
	case "USER.ANSWER_SUBMITTED":
		return o.handleAnswer(ctx, env)
	case "WORK.ITEM_COMPLETED":
		return o.handleCompleted(ctx, env)
	case "WORK.ITEM_FAILED":
		return o.handleFailed(ctx, env)
	default:
		return nil
	}
}

// handleCompleted applies the Definition of Done to a worker's evidence
// and transitions the item to DONE, BLOCKED (re-opening a question when
// evidence is insufficient), or FAILED. Workers never write backlog
// status directly (spec.md §5's shared-resource policy); this is the
// single place completion evidence turns into a status change.
func (o *Orchestrator) handleCompleted(ctx context.Context, env envelope.Envelope) error {
	var payload workItemCompleted
	if err := env.UnmarshalPayload(&payload); err != nil {
		return err
	}
	item, err := o.backlog.GetItem(ctx, payload.ProjectID, payload.BacklogItemID)
	if err != nil {
		return err
	}
	verdict, missing := o.opts.DoD.Evaluate(string(item.ItemType), payload.Evidence)

	from := statemachine.Status(item.Status)
	if err := statemachine.AssertTransition(from, verdict); err != nil {
		o.opts.Logger.Error(ctx, "orchestrator: DoD verdict rejected by state machine", map[string]any{
			"item_id": payload.BacklogItemID, "from": string(from), "to": string(verdict), "error": err.Error(),
		})
		return nil
	}
	item.Evidence = payload.Evidence
	item.Status = backlog.Status(verdict)
	if err := o.backlog.PutItem(ctx, *item); err != nil {
		return err
	}
	if verdict == statemachine.Blocked {
		q, err := o.questions.Create(ctx, payload.ProjectID, payload.BacklogItemID,
			missingFieldsQuestionText(missing), question.Text, env.CorrelationID)
		if err != nil {
			return err
		}
		if err := o.emit(ctx, "QUESTION.CREATED", questionCreated{
			ProjectID: payload.ProjectID, QuestionID: q.QuestionID, BacklogItemID: payload.BacklogItemID,
			QuestionText: q.QuestionText, ExpectedAnswerType: string(q.ExpectedAnswerType),
		}, env.CorrelationID, env.EventID); err != nil {
			return err
		}
		return o.emit(ctx, "CLARIFICATION.NEEDED", clarificationNeeded{
			ProjectID: payload.ProjectID, BacklogItemID: payload.BacklogItemID, MissingFields: missing,
		}, env.CorrelationID, env.EventID)
	}
	return nil
}

// handleFailed applies a worker-reported failure to the backlog item.
// An illegal transition (e.g. the item already terminal) is logged and
// skipped rather than propagated, per spec.md §7's illegal_transition
// propagation policy.
func (o *Orchestrator) handleFailed(ctx context.Context, env envelope.Envelope) error {
	var payload workItemFailed
	if err := env.UnmarshalPayload(&payload); err != nil {
		return err
	}
	item, err := o.backlog.GetItem(ctx, payload.ProjectID, payload.BacklogItemID)
	if err != nil {
		return err
	}
	if err := statemachine.AssertTransition(statemachine.Status(item.Status), statemachine.Failed); err != nil {
		o.opts.Logger.Error(ctx, "orchestrator: illegal transition on WORK.ITEM_FAILED", map[string]any{
			"item_id": payload.BacklogItemID, "from": string(item.Status), "error": err.Error(),
		})
		return nil
	}
	_, err = o.backlog.SetStatus(ctx, payload.ProjectID, payload.BacklogItemID, backlog.Status(statemachine.Failed))
	return err
}

func (o *Orchestrator) handleIntake(ctx context.Context, env envelope.Envelope) error {
	var payload initialRequestReceived
	if err := env.UnmarshalPayload(&payload); err != nil {
		return err
	}

	tpl := o.opts.Templates.Select(payload.RequestText)
	ambiguous, missing := o.opts.Ambiguity.Evaluate(tpl, payload.RequestText)

	if ambiguous {
		itemType := backlog.GenericTask
		var agentTarget string
		if len(tpl.Items) > 0 {
			itemType = tpl.Items[0].ItemType
			agentTarget = tpl.Items[0].AgentTarget
		}
		itemID := uuid.NewString()
		item := backlog.Item{
			ProjectID:   payload.ProjectID,
			ItemID:      itemID,
			ItemType:    itemType,
			AgentTarget: agentTarget,
			Status:      backlog.Status(statemachine.Blocked),
			WorkContext: ExtractWorkContext(payload.RequestText),
		}
		if err := o.backlog.PutItem(ctx, item); err != nil {
			return err
		}
		q, err := o.questions.Create(ctx, payload.ProjectID, itemID,
			missingFieldsQuestionText(missing), question.Text, env.CorrelationID)
		if err != nil {
			return err
		}
		if err := o.emit(ctx, "QUESTION.CREATED", questionCreated{
			ProjectID: payload.ProjectID, QuestionID: q.QuestionID, BacklogItemID: itemID,
			QuestionText: q.QuestionText, ExpectedAnswerType: string(q.ExpectedAnswerType),
		}, env.CorrelationID, env.EventID); err != nil {
			return err
		}
		return o.emit(ctx, "CLARIFICATION.NEEDED", clarificationNeeded{
			ProjectID: payload.ProjectID, BacklogItemID: itemID, MissingFields: missing,
		}, env.CorrelationID, env.EventID)
	}

	workCtx := ExtractWorkContext(payload.RequestText)
	for _, it := range tpl.Items {
		item := backlog.Item{
			ProjectID:   payload.ProjectID,
			ItemID:      uuid.NewString(),
			ItemType:    it.ItemType,
			AgentTarget: it.AgentTarget,
			Status:      backlog.Status(statemachine.Ready),
			WorkContext: mergeContext(workCtx, it.WorkContext),
		}
		if err := o.backlog.PutItem(ctx, item); err != nil {
			return err
		}
	}

	_, err := o.dispatchReady(ctx, payload.ProjectID, env.CorrelationID, env.EventID)
	return err
}

func (o *Orchestrator) handleAnswer(ctx context.Context, env envelope.Envelope) error {
	var payload userAnswerSubmitted
	if err := env.UnmarshalPayload(&payload); err != nil {
		return err
	}

	q, err := o.questions.GetQuestion(ctx, payload.ProjectID, payload.QuestionID)
	if err != nil {
		return err
	}
	normalized, err := question.NormalizeAnswer(q.ExpectedAnswerType, payload.Answer, nil)
	if err != nil {
		return err
	}
	if err := o.questions.SetAnswer(ctx, payload.ProjectID, payload.QuestionID, normalized); err != nil {
		return err
	}

	item, err := o.backlog.GetItem(ctx, payload.ProjectID, q.BacklogItemID)
	if err != nil {
		return err
	}
	if item.Status == backlog.Status(statemachine.Blocked) {
		if err := statemachine.AssertTransition(statemachine.Blocked, statemachine.Ready); err != nil {
			return statemachine.ToAPIError(err.(*statemachine.IllegalTransition))
		}
		if _, err := o.backlog.SetStatus(ctx, payload.ProjectID, q.BacklogItemID, backlog.Status(statemachine.Ready)); err != nil {
			return err
		}
		if err := o.emit(ctx, "BACKLOG.ITEM_UNBLOCKED", backlogItemUnblocked{
			ProjectID: payload.ProjectID, BacklogItemID: q.BacklogItemID,
		}, env.CorrelationID, env.EventID); err != nil {
			return err
		}
	}

	_, err = o.dispatchReady(ctx, payload.ProjectID, env.CorrelationID, env.EventID)
	return err
}

// DispatchReady runs the dispatch_ready algorithm across one project (or
// every project with a backlog, when projectID is empty) and returns the
// count of items dispatched. Exported so operators/tests can re-run
// dispatch outside the event-driven path (e.g. after a crash recovery).
func (o *Orchestrator) DispatchReady(ctx context.Context, projectID, correlationID, causationID string) (int, error) {
	return o.dispatchReady(ctx, projectID, correlationID, causationID)
}

func (o *Orchestrator) dispatchReady(ctx context.Context, projectID, correlationID, causationID string) (int, error) {
	projects := []string{projectID}
	if strings.TrimSpace(projectID) == "" {
		var err error
		projects, err = o.backlog.ListProjectIDs(ctx)
		if err != nil {
			return 0, err
		}
	}

	dispatched := 0
	for _, project := range projects {
		ids, err := o.backlog.ListItemIDsByStatus(ctx, project, backlog.Status(statemachine.Ready))
		if err != nil {
			return dispatched, err
		}
		for _, itemID := range ids {
			ok, err := o.locks.Acquire(ctx, "dispatch:backlog:"+itemID, o.opts.LockTTL)
			if err != nil {
				return dispatched, err
			}
			if !ok {
				continue
			}
			count, transitionErr := o.tryDispatchOne(ctx, project, itemID, correlationID, causationID)
			if relErr := o.locks.Release(ctx, "dispatch:backlog:"+itemID); relErr != nil {
				o.opts.Logger.Error(ctx, "orchestrator: lock release failed", map[string]any{"item_id": itemID, "error": relErr.Error()})
			}
			if transitionErr != nil {
				o.opts.Logger.Error(ctx, "orchestrator: dispatch skipped", map[string]any{"item_id": itemID, "error": transitionErr.Error()})
				continue
			}
			dispatched += count
		}
	}
	return dispatched, nil
}

// tryDispatchOne holds the lock for one item across transition, event
// emission, and persistence (I4): the new status is written before the
// caller releases the lock.
func (o *Orchestrator) tryDispatchOne(ctx context.Context, projectID, itemID, correlationID, causationID string) (int, error) {
	item, err := o.backlog.GetItem(ctx, projectID, itemID)
	if err != nil {
		return 0, err
	}
	if item.Status != backlog.Status(statemachine.Ready) {
		return 0, nil // raced with another dispatcher; nothing to do
	}
	if err := statemachine.AssertTransition(statemachine.Ready, statemachine.InProgress); err != nil {
		return 0, err
	}

	if err := o.emit(ctx, "WORK.ITEM_DISPATCHED", workItemDispatched{
		ProjectID: projectID, BacklogItemID: itemID, ItemType: string(item.ItemType),
		AgentTarget: item.AgentTarget, WorkContext: item.WorkContext,
	}, correlationID, causationID); err != nil {
		return 0, err
	}
	if _, err := o.backlog.SetStatus(ctx, projectID, itemID, backlog.Status(statemachine.InProgress)); err != nil {
		return 0, err
	}
	return 1, nil
}

func (o *Orchestrator) emit(ctx context.Context, eventType string, payload any, correlationID, causationID string) error {
	env, err := envelope.Build(eventType, payload, o.opts.Source, envelope.BuildOptions{
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
	_, err = o.s.StreamAppend(ctx, o.opts.Stream, fields)
	return err
}

func mergeContext(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func missingFieldsQuestionText(missing []string) string {
	if len(missing) == 0 {
		return "Please provide additional detail to proceed."
	}
	return fmt.Sprintf("Please provide: %s", strings.Join(missing, ", "))
}
