// Command validator runs an independent consumer group whose only job is
// to decode and validate every event on the stream, routing schema
// violations to the dead-letter queue regardless of what any other
// consumer group does with the same event.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/bootstrap"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/consumer"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/validatorsvc"
)

const serviceName = "validator"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, serviceName)
	if err != nil {
		os.Stderr.WriteString("validator: bootstrap failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	runtime := validatorsvc.New(rt.Store, rt.Registry, rt.Idem, rt.DLQ, consumer.Options{
		Stream:              rt.Config.Stream,
		Group:               validatorsvc.DefaultGroup,
		ConsumerName:        rt.Config.ConsumerName,
		ReadCount:           rt.Config.ReadCount,
		BlockDuration:       rt.Config.BlockDuration(),
		IdleReclaim:         rt.Config.IdleReclaimDuration(),
		PendingReclaimCount: rt.Config.PendingReclaimCount,
		MaxAttempts:         rt.Config.MaxAttempts,
		DedupeTTL:           rt.Config.DedupeTTL(),
		Logger:              rt.Logger,
	})

	rt.Logger.Info(ctx, "service_start", map[string]any{"stream": rt.Config.Stream, "group": validatorsvc.DefaultGroup})

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
