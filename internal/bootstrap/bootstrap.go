// Package bootstrap wires the shared substrate (store, schema registry,
// idempotence guard, lock service, DLQ publisher) every cmd/ binary
// needs from one internal/config.Config, mirroring the teacher's
// loadCfg-then-wire-dependencies shape in cmd/*/main.go.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
	"github.com/Ap3pp3rs94/backlog-runtime/internal/config"
	"github.com/Ap3pp3rs94/backlog-runtime/internal/health"
	"github.com/Ap3pp3rs94/backlog-runtime/internal/logging"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/backlog"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/dlq"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/idempotency"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/lock"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/question"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/schemaregistry"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

// Runtime bundles every shared dependency a service main() needs.
type Runtime struct {
	Config    config.Config
	Store     store.Store
	Registry  *schemaregistry.Registry
	Idem      *idempotency.Guard
	Locks     *lock.Service
	DLQ       *dlq.Publisher
	Backlog   *backlog.Store
	Questions *question.Store
	Logger    *logging.Logger
}

// New loads configuration from the environment, connects to the
// substrate, compiles the default schema set, and constructs every
// shared component. serviceName tags the logger and the health snapshot;
// the consumer instance name comes from config (CONSUMER_NAME, else the
// hostname).
func New(ctx context.Context, serviceName string) (*Runtime, error) {
	cfg := config.Load()
	logger := logging.NewFromLevelName(nil, serviceName, cfg.LogLevel)

	redisStore := store.Open(cfg.Substrate.Host, cfg.Substrate.Port, cfg.Substrate.DB, cfg.Substrate.Password)
	if err := redisStore.Ping(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: connect to substrate: %w", err)
	}

	registry, err := schemaregistry.LoadDefault()
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Internal, err)
	}

	snap := health.Run(ctx, serviceName, map[string]health.Check{
		"substrate": func(ctx context.Context) (health.Status, string) {
			if err := redisStore.Ping(ctx); err != nil {
				return health.StatusFatal, err.Error()
			}
			return health.StatusOK, ""
		},
	})
	logger.Info(ctx, "health_snapshot", map[string]any{"overall": string(snap.Overall)})

	return &Runtime{
		Config:    cfg,
		Store:     redisStore,
		Registry:  registry,
		Idem:      idempotency.New(redisStore, cfg.IdempotencePrefix),
		Locks:     lock.New(redisStore, cfg.KeyPrefix),
		DLQ:       dlq.New(redisStore, cfg.DLQStream),
		Backlog:   backlog.New(redisStore, cfg.KeyPrefix),
		Questions: question.New(redisStore, cfg.KeyPrefix),
		Logger:    logger,
	}, nil
}
