// Package backlog persists backlog items on top of the shared KV store,
// keyed by (project_id, item_id), with per-project, per-status, and
// project-registry indices maintained atomically by every write.
package backlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/backlog-runtime/internal/apierrors"
	"github.com/Ap3pp3rs94/backlog-runtime/pkg/store"
)

// Status is a backlog item lifecycle state, see pkg/statemachine.
type Status string

// ItemType distinguishes items a worker must act on from those the core
// leaves opaque to external tooling.
type ItemType string

const (
	GenericTask ItemType = "GENERIC_TASK"
	AgentTask   ItemType = "AGENT_TASK"
)

// Item is one backlog entry. WorkContext and Evidence are opaque per
// item_type; the core never inspects their shape beyond what a
// Definition-of-Done evaluator or agent chooses to read.
type Item struct {
	ProjectID   string         `json:"project_id"`
	ItemID      string         `json:"item_id"`
	ItemType    ItemType       `json:"item_type"`
	AgentTarget string         `json:"agent_target,omitempty"`
	Status      Status         `json:"status"`
	WorkContext map[string]any `json:"work_context,omitempty"`
	Evidence    map[string]any `json:"evidence,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Store is the Backlog Store (C8): one writer (the Orchestrator, or an
// external tool minting items directly), unrestricted readers.
type Store struct {
	kv     store.Store
	prefix string
}

// New returns a Store writing keys under the given prefix (e.g. "audit").
func New(kv store.Store, prefix string) *Store {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "audit"
	}
	return &Store{kv: kv, prefix: prefix}
}

func (s *Store) itemKey(projectID, itemID string) string {
	return fmt.Sprintf("%s:backlog:%s:%s", s.prefix, projectID, itemID)
}

func (s *Store) allIndexKey(projectID string) string {
	return fmt.Sprintf("%s:backlog_index:%s", s.prefix, projectID)
}

func (s *Store) statusIndexKey(projectID string, status Status) string {
	return fmt.Sprintf("%s:backlog_status:%s:%s", s.prefix, projectID, status)
}

func (s *Store) projectRegistryKey() string {
	return fmt.Sprintf("%s:projects:index", s.prefix)
}

// PutItem upserts item: it is added to the all-items and current-status
// indices, removed from its previous status index if status changed, and
// its project id is ensured in the project registry. This keeps I2 (one
// status index, project registry membership) atomic with respect to the
// caller's view, though individual index writes are not transactional
// against the underlying substrate.
func (s *Store) PutItem(ctx context.Context, item Item) error {
	if strings.TrimSpace(item.ProjectID) == "" || strings.TrimSpace(item.ItemID) == "" {
		return apierrors.New(apierrors.Invalid, "project_id and item_id are required", nil)
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	prev, err := s.GetItem(ctx, item.ProjectID, item.ItemID)
	if err != nil && !isNotFound(err) {
		return err
	}

	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("backlog: marshal item: %w", err)
	}
	if err := s.kv.Put(ctx, s.itemKey(item.ProjectID, item.ItemID), string(b)); err != nil {
		return err
	}
	if err := s.kv.SAdd(ctx, s.allIndexKey(item.ProjectID), item.ItemID); err != nil {
		return err
	}
	if prev != nil && prev.Status != item.Status {
		if err := s.kv.SRem(ctx, s.statusIndexKey(item.ProjectID, prev.Status), item.ItemID); err != nil {
			return err
		}
	}
	if err := s.kv.SAdd(ctx, s.statusIndexKey(item.ProjectID, item.Status), item.ItemID); err != nil {
		return err
	}
	return s.kv.SAdd(ctx, s.projectRegistryKey(), item.ProjectID)
}

// SetStatus loads the item, changes its status, and reindexes. It errors
// with apierrors.NotFound when the item does not exist.
func (s *Store) SetStatus(ctx context.Context, projectID, itemID string, newStatus Status) (Item, error) {
	item, err := s.GetItem(ctx, projectID, itemID)
	if err != nil {
		return Item{}, err
	}
	item.Status = newStatus
	if err := s.PutItem(ctx, *item); err != nil {
		return Item{}, err
	}
	return *item, nil
}

// GetItem returns apierrors.NotFound when absent.
func (s *Store) GetItem(ctx context.Context, projectID, itemID string) (*Item, error) {
	raw, ok, err := s.kv.Get(ctx, s.itemKey(projectID, itemID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.NotFound, "backlog item not found", map[string]string{"project_id": projectID, "item_id": itemID})
	}
	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("backlog: unmarshal item: %w", err)
	}
	return &item, nil
}

// ListItemIDs returns every item id for a project, sorted for determinism.
func (s *Store) ListItemIDs(ctx context.Context, projectID string) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, s.allIndexKey(projectID))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ListItemIDsByStatus returns item ids for a project under one status,
// sorted for determinism (the Orchestrator dispatches READY items in
// this order).
func (s *Store) ListItemIDsByStatus(ctx context.Context, projectID string, status Status) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, s.statusIndexKey(projectID, status))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ListProjectIDs returns every project with at least one backlog item,
// sorted for determinism.
func (s *Store) ListProjectIDs(ctx context.Context) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, s.projectRegistryKey())
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func isNotFound(err error) bool {
	ae, ok := err.(*apierrors.Error)
	return ok && ae != nil && ae.Code == apierrors.NotFound
}
