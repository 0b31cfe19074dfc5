// Package lock implements named TTL leases used to serialize dispatch of a
// given backlog_item_id. Leases are advisory, not mutexes: handlers must
// stay idempotent regardless of whether they believe they hold one.
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

// Service grants and releases TTL leases over a Store.
type Service struct {
	store  store.Store
	prefix string
}

// New returns a Service keying leases as "{prefix}:lock:{name}".
func New(s store.Store, prefix string) *Service {
	if strings.TrimSpace(prefix) == "" {
		prefix = "audit"
	}
	return &Service{store: s, prefix: prefix}
}

func (s *Service) key(name string) string {
	return fmt.Sprintf("%s:lock:%s", s.prefix, name)
}

// Acquire attempts to take the named lease for ttl; it returns true iff
// this call acquired it (set-if-absent semantics).
func (s *Service) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("lock: name is required")
	}
	return s.store.SetNX(ctx, s.key(name), "1", ttl)
}

// Release unconditionally drops the named lease. Callers that need to
// verify they still own it must do so themselves; the default runtime
// treats locks as advisory and TTL-protected.
func (s *Service) Release(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("lock: name is required")
	}
	return s.store.Del(ctx, s.key(name))
}
