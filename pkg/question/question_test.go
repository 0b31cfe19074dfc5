package question

import (
	"context"
	"testing"

	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

func TestCreateIndexesUnderProjectAndOpen(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), "audit")

	q, err := s.Create(ctx, "P1", "I1", "what timezone?", Text, "corr-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if q.Status != Open {
		t.Fatalf("expected Open status, got %v", q.Status)
	}
	open, _ := s.ListOpen(ctx, "P1")
	if len(open) != 1 || open[0] != q.QuestionID {
		t.Fatalf("expected question in open index, got %v", open)
	}
	all, _ := s.ListAll(ctx, "P1")
	if len(all) != 1 || all[0] != q.QuestionID {
		t.Fatalf("expected question in project index, got %v", all)
	}
}

func TestCloseIsIdempotentAndRemovesFromOpenIndex(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), "audit")
	q, _ := s.Create(ctx, "P1", "I1", "q?", Text, "")

	if err := s.Close(ctx, "P1", q.QuestionID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(ctx, "P1", q.QuestionID); err != nil {
		t.Fatalf("second Close should be idempotent, got: %v", err)
	}
	open, _ := s.ListOpen(ctx, "P1")
	if len(open) != 0 {
		t.Fatalf("expected question removed from open index, got %v", open)
	}
	got, err := s.GetQuestion(ctx, "P1", q.QuestionID)
	if err != nil || got.Status != Closed {
		t.Fatalf("expected status Closed, got %v %v", got, err)
	}
}

func TestSetAnswerStoresAndClosesQuestion(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), "audit")
	q, _ := s.Create(ctx, "P1", "I1", "how many?", Number, "")

	if err := s.SetAnswer(ctx, "P1", q.QuestionID, "42"); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	answer, ok, err := s.GetAnswer(ctx, q.QuestionID)
	if err != nil || !ok || answer != "42" {
		t.Fatalf("GetAnswer: %q %v %v", answer, ok, err)
	}
	got, _ := s.GetQuestion(ctx, "P1", q.QuestionID)
	if got.Status != Closed {
		t.Fatalf("expected question closed after SetAnswer, got %v", got.Status)
	}
}

func TestNormalizeAnswerNumber(t *testing.T) {
	if _, err := NormalizeAnswer(Number, "not a number", nil); err == nil {
		t.Fatal("expected contract error for malformed number")
	}
	got, err := NormalizeAnswer(Number, "  3.5 ", nil)
	if err != nil || got != "3.5" {
		t.Fatalf("NormalizeAnswer(Number): %q %v", got, err)
	}
}

func TestNormalizeAnswerChoice(t *testing.T) {
	choices := []string{"small", "medium", "large"}
	got, err := NormalizeAnswer(Choice, "Medium", choices)
	if err != nil || got != "medium" {
		t.Fatalf("NormalizeAnswer(Choice): %q %v", got, err)
	}
	if _, err := NormalizeAnswer(Choice, "extra-large", choices); err == nil {
		t.Fatal("expected contract error for disallowed choice")
	}
}

func TestNormalizeAnswerTextRejectsEmpty(t *testing.T) {
	if _, err := NormalizeAnswer(Text, "   ", nil); err == nil {
		t.Fatal("expected contract error for empty text answer")
	}
}
