package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

func TestMarkIfNewOnlyOnceWithinTTL(t *testing.T) {
	ctx := context.Background()
	g := New(store.NewMemory(), "audit:idem")

	first, err := g.MarkIfNew(ctx, "orchestrator", "evt-1", time.Hour)
	if err != nil || !first {
		t.Fatalf("expected first mark true, got %v %v", first, err)
	}
	second, err := g.MarkIfNew(ctx, "orchestrator", "evt-1", time.Hour)
	if err != nil || second {
		t.Fatalf("expected second mark false, got %v %v", second, err)
	}
	// a distinct group sees it as new.
	third, err := g.MarkIfNew(ctx, "validators", "evt-1", time.Hour)
	if err != nil || !third {
		t.Fatalf("expected distinct group to see a fresh marker, got %v %v", third, err)
	}
}

func TestSeenReflectsMarkWithoutMarking(t *testing.T) {
	ctx := context.Background()
	g := New(store.NewMemory(), "audit:idem")

	seen, err := g.Seen(ctx, "orchestrator", "evt-1")
	if err != nil || seen {
		t.Fatalf("expected unseen before marking, got %v %v", seen, err)
	}
	if _, err := g.MarkIfNew(ctx, "orchestrator", "evt-1", time.Hour); err != nil {
		t.Fatalf("MarkIfNew: %v", err)
	}
	seen, err = g.Seen(ctx, "orchestrator", "evt-1")
	if err != nil || !seen {
		t.Fatalf("expected seen after marking, got %v %v", seen, err)
	}
}
