// Package agents holds example worker.AgentCompute implementations for
// the estimator agent_targets. time_estimator, cost_estimator and
// friction_estimator are referenced by the sample backlog templates in
// pkg/orchestrator; scenario_estimator is not. They are intentionally simple: real
// deployments are expected to replace them with calls into whatever
// estimation engine backs a given agent_target.
package agents

import (
	"context"
	"strings"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/backlog"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/worker"
)

// TimeEstimator produces a rough day estimate from the item's scope text.
// It reads the "scope" field, which the default ambiguity rule requires at
// intake for the estimator templates.
func TimeEstimator(ctx context.Context, item backlog.Item) (worker.Result, error) {
	scope, _ := item.WorkContext["scope"].(string)
	if strings.TrimSpace(scope) == "" {
		return worker.Result{}, apierrors.New(apierrors.DataInsufficiency, "scope is required to estimate time", nil)
	}
	days := estimateDaysFromScope(scope)
	return worker.Result{
		Deliverable: map[string]any{"estimate_days": days, "basis": "scope_length"},
		Evidence:    map[string]any{"estimate_days": days},
	}, nil
}

// CostEstimator derives a rough dollar cost from its own scope-based day
// estimate at a fixed daily rate; it does not read a day estimate from
// work_context.
func CostEstimator(ctx context.Context, item backlog.Item) (worker.Result, error) {
	scope, _ := item.WorkContext["scope"].(string)
	if strings.TrimSpace(scope) == "" {
		return worker.Result{}, apierrors.New(apierrors.DataInsufficiency, "scope is required to estimate cost", nil)
	}
	days := estimateDaysFromScope(scope)
	const dailyRate = 800
	cost := days * dailyRate
	return worker.Result{
		Deliverable: map[string]any{"estimate_cost_usd": cost, "daily_rate_usd": dailyRate},
		Evidence:    map[string]any{"estimate_cost_usd": cost},
	}, nil
}

// FrictionEstimator flags scope text mentioning integration points or
// approvals as higher-friction, a coarse proxy for coordination overhead.
func FrictionEstimator(ctx context.Context, item backlog.Item) (worker.Result, error) {
	scope, _ := item.WorkContext["scope"].(string)
	if strings.TrimSpace(scope) == "" {
		return worker.Result{}, apierrors.New(apierrors.DataInsufficiency, "scope is required to estimate friction", nil)
	}
	level := "low"
	lower := strings.ToLower(scope)
	for _, kw := range []string{"legal", "security review", "third-party", "approval", "compliance"} {
		if strings.Contains(lower, kw) {
			level = "high"
			break
		}
	}
	return worker.Result{
		Deliverable: map[string]any{"friction_level": level},
		Evidence:    map[string]any{"friction_level": level},
	}, nil
}

// ScenarioEstimator sketches a best/likely/worst-case range around the
// time estimate, the closest analogue this runtime offers to the
// original's scenario modeling without carrying over its full engine.
func ScenarioEstimator(ctx context.Context, item backlog.Item) (worker.Result, error) {
	scope, _ := item.WorkContext["scope"].(string)
	if strings.TrimSpace(scope) == "" {
		return worker.Result{}, apierrors.New(apierrors.DataInsufficiency, "scope is required to build scenarios", nil)
	}
	likely := estimateDaysFromScope(scope)
	scenarios := map[string]any{
		"best_case_days":   maxInt(1, likely-likely/3),
		"likely_case_days": likely,
		"worst_case_days":  likely + likely/2,
	}
	return worker.Result{
		Deliverable: map[string]any{"scenarios": scenarios},
		Evidence:    map[string]any{"scenarios": scenarios},
	}, nil
}

// estimateDaysFromScope is a deliberately crude heuristic: longer scope
// descriptions imply more distinct pieces of work. Real deployments
// should replace this with a call into an actual estimation model.
func estimateDaysFromScope(scope string) int {
	words := len(strings.Fields(scope))
	days := 1 + words/8
	return maxInt(1, days)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
