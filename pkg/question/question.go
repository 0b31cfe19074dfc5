// Package question persists clarification questions and their answers on
// top of the shared KV store (C9), keyed by (project_id, question_id),
// with a per-project index and a separate open-question index.
package question

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
	"github.com/google/uuid"
)

// AnswerType constrains how a submitted answer is normalized before storage.
type AnswerType string

const (
	Text   AnswerType = "text"
	Number AnswerType = "number"
	Choice AnswerType = "choice"
)

// Status is a question's open/closed lifecycle state. Unlike backlog item
// status, this is a two-state flag, not a full state machine.
type Status string

const (
	Open   Status = "OPEN"
	Closed Status = "CLOSED"
)

// Question is one clarification question owned by C9.
type Question struct {
	ProjectID          string     `json:"project_id"`
	QuestionID         string     `json:"question_id"`
	BacklogItemID      string     `json:"backlog_item_id"`
	QuestionText       string     `json:"question_text"`
	ExpectedAnswerType AnswerType `json:"expected_answer_type"`
	Status             Status     `json:"status"`
	CorrelationID      string     `json:"correlation_id"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Store is the Question Store (C9).
type Store struct {
	kv     store.Store
	prefix string
}

// New returns a Store writing keys under the given prefix.
func New(kv store.Store, prefix string) *Store {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "audit"
	}
	return &Store{kv: kv, prefix: prefix}
}

func (s *Store) questionKey(projectID, questionID string) string {
	return fmt.Sprintf("%s:question:%s:%s", s.prefix, projectID, questionID)
}

func (s *Store) projectIndexKey(projectID string) string {
	return fmt.Sprintf("%s:question_index:%s", s.prefix, projectID)
}

func (s *Store) openIndexKey(projectID string) string {
	return fmt.Sprintf("%s:question_open:%s", s.prefix, projectID)
}

func (s *Store) answerKey(questionID string) string {
	return fmt.Sprintf("%s:question_answer:%s", s.prefix, questionID)
}

// Create allocates a fresh question_id, persists the question with
// status=OPEN, and adds it to the per-project and open-question indices.
func (s *Store) Create(ctx context.Context, projectID, backlogItemID, questionText string, answerType AnswerType, correlationID string) (Question, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(backlogItemID) == "" {
		return Question{}, apierrors.New(apierrors.Invalid, "project_id and backlog_item_id are required", nil)
	}
	q := Question{
		ProjectID:          projectID,
		QuestionID:         uuid.NewString(),
		BacklogItemID:      backlogItemID,
		QuestionText:       questionText,
		ExpectedAnswerType: answerType,
		Status:             Open,
		CorrelationID:      correlationID,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store(ctx, q); err != nil {
		return Question{}, err
	}
	if err := s.kv.SAdd(ctx, s.projectIndexKey(projectID), q.QuestionID); err != nil {
		return Question{}, err
	}
	if err := s.kv.SAdd(ctx, s.openIndexKey(projectID), q.QuestionID); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *Store) store(ctx context.Context, q Question) error {
	b, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("question: marshal: %w", err)
	}
	return s.kv.Put(ctx, s.questionKey(q.ProjectID, q.QuestionID), string(b))
}

// Close marks the question CLOSED and removes it from the open index.
// Idempotent: closing an already-closed question is a no-op success (R3).
func (s *Store) Close(ctx context.Context, projectID, questionID string) error {
	q, err := s.GetQuestion(ctx, projectID, questionID)
	if err != nil {
		return err
	}
	if q.Status == Closed {
		return nil
	}
	q.Status = Closed
	if err := s.store(ctx, *q); err != nil {
		return err
	}
	return s.kv.SRem(ctx, s.openIndexKey(projectID), questionID)
}

// SetAnswer stores the normalized answer and closes the question.
func (s *Store) SetAnswer(ctx context.Context, projectID, questionID, normalizedAnswer string) error {
	if _, err := s.GetQuestion(ctx, projectID, questionID); err != nil {
		return err
	}
	if err := s.kv.Put(ctx, s.answerKey(questionID), normalizedAnswer); err != nil {
		return err
	}
	return s.Close(ctx, projectID, questionID)
}

// GetQuestion returns apierrors.NotFound when absent.
func (s *Store) GetQuestion(ctx context.Context, projectID, questionID string) (*Question, error) {
	raw, ok, err := s.kv.Get(ctx, s.questionKey(projectID, questionID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.NotFound, "question not found", map[string]string{"project_id": projectID, "question_id": questionID})
	}
	var q Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("question: unmarshal: %w", err)
	}
	return &q, nil
}

// GetAnswer returns the normalized answer and whether one has been set.
func (s *Store) GetAnswer(ctx context.Context, questionID string) (string, bool, error) {
	return s.kv.Get(ctx, s.answerKey(questionID))
}

// ListOpen returns open question ids for a project, sorted for determinism.
func (s *Store) ListOpen(ctx context.Context, projectID string) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, s.openIndexKey(projectID))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ListAll returns every question id for a project, sorted for determinism.
func (s *Store) ListAll(ctx context.Context, projectID string) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, s.projectIndexKey(projectID))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// NormalizeAnswer coerces a free-text answer against the question's
// declared expected_answer_type, rejecting malformed numeric/choice
// answers with a contract error rather than storing garbage silently.
// choices is the allowed value set for AnswerType Choice; it is ignored
// for the other types.
func NormalizeAnswer(answerType AnswerType, raw string, choices []string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch answerType {
	case Number:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", apierrors.New(apierrors.Contract, "answer is not a valid number", map[string]string{"raw": raw})
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case Choice:
		for _, c := range choices {
			if strings.EqualFold(c, raw) {
				return c, nil
			}
		}
		return "", apierrors.New(apierrors.Contract, "answer is not one of the allowed choices", map[string]string{"raw": raw})
	case Text, "":
		if raw == "" {
			return "", apierrors.New(apierrors.Contract, "text answer must not be empty", nil)
		}
		return raw, nil
	default:
		return "", apierrors.New(apierrors.Contract, "unknown expected_answer_type", map[string]string{"expected_answer_type": string(answerType)})
	}
}
