// Command orchestrator runs the Orchestrator consumer: it owns every
// backlog status transition and drives the clarification loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/bootstrap"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/consumer"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/orchestrator"
)

const serviceName = "orchestrator"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, serviceName)
	if err != nil {
		os.Stderr.WriteString("orchestrator: bootstrap failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	orch := orchestrator.New(rt.Store, rt.Backlog, rt.Questions, rt.Locks, orchestrator.Options{
		Stream:  rt.Config.Stream,
		Source:  serviceName,
		LockTTL: rt.Config.LockTTL(),
		Logger:  rt.Logger,
	})

	runtime := consumer.New(rt.Store, rt.Registry, rt.Idem, rt.DLQ, orch.Handle, consumer.Options{
		Stream:              rt.Config.Stream,
		Group:               serviceName,
		ConsumerName:        rt.Config.ConsumerName,
		ReadCount:           rt.Config.ReadCount,
		BlockDuration:       rt.Config.BlockDuration(),
		IdleReclaim:         rt.Config.IdleReclaimDuration(),
		PendingReclaimCount: rt.Config.PendingReclaimCount,
		MaxAttempts:         rt.Config.MaxAttempts,
		DedupeTTL:           rt.Config.DedupeTTL(),
		Logger:              rt.Logger,
	})

	rt.Logger.Info(ctx, "service_start", map[string]any{"stream": rt.Config.Stream, "group": serviceName})

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
