// Package idempotency implements the per-(consumer_group, event_id)
// once-only marker.
package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

// Guard marks (group, event_id) pairs processed, once, for a TTL window.
type Guard struct {
	store  store.Store
	prefix string
}

// New returns a Guard keying markers as "{prefix}:{group}:{event_id}".
func New(s store.Store, prefix string) *Guard {
	if strings.TrimSpace(prefix) == "" {
		prefix = "audit:idem"
	}
	return &Guard{store: s, prefix: prefix}
}

func (g *Guard) key(group, eventID string) string {
	return fmt.Sprintf("%s:%s:%s", g.prefix, group, eventID)
}

// MarkIfNew atomically records that (group, eventID) has been processed;
// it returns true exactly once per pair within the TTL window, and the
// caller should proceed with handling only when it returns true.
func (g *Guard) MarkIfNew(ctx context.Context, group, eventID string, ttl time.Duration) (bool, error) {
	group = strings.TrimSpace(group)
	eventID = strings.TrimSpace(eventID)
	if group == "" || eventID == "" {
		return false, fmt.Errorf("idempotency: group and event_id are required")
	}
	return g.store.SetNX(ctx, g.key(group, eventID), "1", ttl)
}

// Seen reports whether (group, eventID) has already been marked, without
// marking it.
func (g *Guard) Seen(ctx context.Context, group, eventID string) (bool, error) {
	_, ok, err := g.store.Get(ctx, g.key(group, eventID))
	return ok, err
}
