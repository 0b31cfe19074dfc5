package orchestrator

import (
	"strings"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/backlog"
)

// ItemTemplate describes one backlog item a TemplateSelector wants created
// for an intake, before fresh ids and project id are assigned.
type ItemTemplate struct {
	ItemType    backlog.ItemType
	AgentTarget string
	WorkContext map[string]any
}

// Template is a backlog skeleton plus the work_context fields intake must
// supply for the skeleton to be dispatchable without clarification.
type Template struct {
	Name           string
	RequiredFields []string
	Items          []ItemTemplate
}

// TemplateSelector picks a backlog skeleton for an intake request. This is
// the pluggable seam spec.md §4.10 asks for in place of a hard-coded
// heuristic: callers may register a richer selector (e.g. one driven by an
// LLM classifier or a rules engine) without touching the Orchestrator.
type TemplateSelector interface {
	Select(requestText string) Template
}

// KeywordTemplateSelector chooses between a small set of fixed templates
// by keyword presence in the request text. It is the default selector;
// any production deployment is expected to replace it.
type KeywordTemplateSelector struct{}

var _ TemplateSelector = KeywordTemplateSelector{}

// Select implements TemplateSelector.
func (KeywordTemplateSelector) Select(requestText string) Template {
	lower := strings.ToLower(requestText)
	switch {
	case strings.Contains(lower, "audit"):
		return Template{
			Name:           "audit",
			RequiredFields: []string{"scope"},
			Items: []ItemTemplate{
				{ItemType: backlog.AgentTask, AgentTarget: "time_estimator"},
				{ItemType: backlog.AgentTask, AgentTarget: "cost_estimator"},
				{ItemType: backlog.AgentTask, AgentTarget: "friction_estimator"},
			},
		}
	case strings.Contains(lower, "estimate"):
		return Template{
			Name:           "single-estimate",
			RequiredFields: []string{"scope"},
			Items: []ItemTemplate{
				{ItemType: backlog.AgentTask, AgentTarget: "time_estimator"},
			},
		}
	default:
		return Template{
			Name:           "generic",
			RequiredFields: []string{"request_text"},
			Items: []ItemTemplate{
				{ItemType: backlog.GenericTask},
			},
		}
	}
}

// ExtractWorkContext is the simple field extractor RequiredFieldsRule
// checks required fields against. It sets request_text to the whole
// trimmed text and derives scope as described below; it does no other
// parsing. A production deployment is expected to replace this with an
// actual intake-form or NLU-driven extraction step.
//
// scope defaults to the entire trimmed request text: a request carries
// its own scope by virtue of being the thing the requester wrote, and
// an explicit "scope:" prefix only narrows that down when present. A
// request with no text at all yields no scope and no request_text,
// which is the only case RequiredFieldsRule should flag as ambiguous.
func ExtractWorkContext(requestText string) map[string]any {
	ctx := map[string]any{}
	trimmed := strings.TrimSpace(requestText)
	if trimmed == "" {
		return ctx
	}
	ctx["request_text"] = trimmed

	scope := trimmed
	if idx := strings.Index(strings.ToLower(trimmed), "scope:"); idx >= 0 {
		rest := trimmed[idx+len("scope:"):]
		if explicit := strings.TrimSpace(strings.SplitN(rest, "\n", 2)[0]); explicit != "" {
			scope = explicit
		}
	}
	ctx["scope"] = scope
	return ctx
}
