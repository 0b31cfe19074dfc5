// Command worker runs a Worker Runtime bound to a single agent_target,
// selected by the AGENT_TARGET environment variable. Each agent_target
// is expected to run as its own deployment/replica set, consuming under
// its own "{agent_target}s" group per spec §4.11.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Ap3pp3rs94/backlog-runtime/cmd/worker/agents"
	"github.com/Ap3pp3rs94/backlog-runtime/internal/bootstrap"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/consumer"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/worker"
)

const defaultAgentTarget = "time_estimator"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agentTarget := strings.TrimSpace(os.Getenv("AGENT_TARGET"))
	if agentTarget == "" {
		agentTarget = defaultAgentTarget
	}
	compute, requiredFields, err := resolveAgent(agentTarget)
	if err != nil {
		os.Stderr.WriteString("worker: " + err.Error() + "\n")
		os.Exit(1)
	}

	serviceName := "worker-" + agentTarget

	rt, err := bootstrap.New(ctx, serviceName)
	if err != nil {
		os.Stderr.WriteString("worker: bootstrap failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	w := worker.New(rt.Store, rt.Config.Stream, serviceName, agentTarget, compute, requiredFields)

	group := agentTarget + "s"
	runtime := consumer.New(rt.Store, rt.Registry, rt.Idem, rt.DLQ, w.Handle, consumer.Options{
		Stream:              rt.Config.Stream,
		Group:               group,
		ConsumerName:        rt.Config.ConsumerName,
		ReadCount:           rt.Config.ReadCount,
		BlockDuration:       rt.Config.BlockDuration(),
		IdleReclaim:         rt.Config.IdleReclaimDuration(),
		PendingReclaimCount: rt.Config.PendingReclaimCount,
		MaxAttempts:         rt.Config.MaxAttempts,
		DedupeTTL:           rt.Config.DedupeTTL(),
		Logger:              rt.Logger,
	})

	rt.Logger.Info(ctx, "service_start", map[string]any{"stream": rt.Config.Stream, "group": group, "agent_target": agentTarget})

	errCh := make(chan error, 1)
	go func() { errCh <- runtime.Run(ctx) }()

	select {
	case <-ctx.Done():
		rt.Logger.Info(context.Background(), "shutdown_signal", nil)
		<-errCh
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			rt.Logger.Error(context.Background(), "runtime_exited", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}
	rt.Logger.Info(context.Background(), "shutdown_complete", nil)
}

func resolveAgent(agentTarget string) (worker.AgentCompute, worker.RequiredFields, error) {
	requireScope := func(workContext map[string]any) []string {
		if v, ok := workContext["scope"].(string); ok && strings.TrimSpace(v) != "" {
			return nil
		}
		return []string{"scope"}
	}
	switch agentTarget {
	case "time_estimator":
		return agents.TimeEstimator, requireScope, nil
	case "cost_estimator":
		return agents.CostEstimator, requireScope, nil
	case "friction_estimator":
		return agents.FrictionEstimator, requireScope, nil
	case "scenario_estimator":
		return agents.ScenarioEstimator, requireScope, nil
	default:
		return nil, nil, unknownAgentTargetError(agentTarget)
	}
}

func unknownAgentTargetError(agentTarget string) error {
	return &unknownAgentTarget{agentTarget: agentTarget}
}

type unknownAgentTarget struct{ agentTarget string }

func (e *unknownAgentTarget) Error() string {
	return "unknown AGENT_TARGET " + e.agentTarget + " (expected one of time_estimator, cost_estimator, friction_estimator, scenario_estimator)"
}
