package backlog

import (
	"context"
	"testing"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

func TestPutItemIndexesByProjectStatusAndRegistry(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), "audit")

	item := Item{ProjectID: "P1", ItemID: "I1", ItemType: GenericTask, Status: "READY"}
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	ids, err := s.ListItemIDs(ctx, "P1")
	if err != nil || len(ids) != 1 || ids[0] != "I1" {
		t.Fatalf("ListItemIDs: %v %v", ids, err)
	}
	byStatus, err := s.ListItemIDsByStatus(ctx, "P1", "READY")
	if err != nil || len(byStatus) != 1 || byStatus[0] != "I1" {
		t.Fatalf("ListItemIDsByStatus: %v %v", byStatus, err)
	}
	projects, err := s.ListProjectIDs(ctx)
	if err != nil || len(projects) != 1 || projects[0] != "P1" {
		t.Fatalf("ListProjectIDs: %v %v", projects, err)
	}
}

func TestSetStatusMovesItemBetweenStatusIndices(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), "audit")

	if err := s.PutItem(ctx, Item{ProjectID: "P1", ItemID: "I1", Status: "READY"}); err != nil {
		t.Fatalf("PutItem: %v", err)
	}
	if _, err := s.SetStatus(ctx, "P1", "I1", "IN_PROGRESS"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	ready, _ := s.ListItemIDsByStatus(ctx, "P1", "READY")
	if len(ready) != 0 {
		t.Fatalf("expected item removed from READY index, got %v", ready)
	}
	inProgress, _ := s.ListItemIDsByStatus(ctx, "P1", "IN_PROGRESS")
	if len(inProgress) != 1 || inProgress[0] != "I1" {
		t.Fatalf("expected item in IN_PROGRESS index, got %v", inProgress)
	}
}

func TestSetStatusOnMissingItemReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), "audit")
	if _, err := s.SetStatus(ctx, "P1", "missing", "READY"); err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestListingsAreSortedForDeterminism(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), "audit")
	for _, id := range []string{"z", "a", "m"} {
		if err := s.PutItem(ctx, Item{ProjectID: "P1", ItemID: id, Status: "READY"}); err != nil {
			t.Fatalf("PutItem(%s): %v", id, err)
		}
	}
	ids, err := s.ListItemIDs(ctx, "P1")
	if err != nil {
		t.Fatalf("ListItemIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "m" || ids[2] != "z" {
		t.Fatalf("expected sorted ids, got %v", ids)
	}
}
