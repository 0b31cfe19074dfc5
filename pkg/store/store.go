// Package store is a thin facade over the shared KV & stream substrate:
// stream append/read-group/ack/claim, set-if-absent with TTL, and the
// set/scalar operations the Backlog and Question stores index with.
//
// All other components depend only on the Store interface; Memory is the
// in-process fake used by unit tests and Redis is the production backend.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound marks a lookup that found nothing. Get does not return
	// it; Get reports absence through its ok result.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalid is returned for malformed arguments (empty keys or stream names).
	ErrInvalid = errors.New("store: invalid argument")
)

// StreamEntry is one delivered (or claimed) stream entry.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// PendingEntry describes one entry in a consumer group's pending list.
type PendingEntry struct {
	ID       string
	Consumer string
	Idle     time.Duration
}

// Store is the full substrate surface the runtime needs.
type Store interface {
	// StreamAppend appends one entry (XADD-like) and returns its id.
	StreamAppend(ctx context.Context, stream string, fields map[string]string) (string, error)

	// EnsureGroup creates the consumer group at the start of the stream if
	// it does not already exist, so entries appended before the group was
	// created are delivered to it too. Idempotent.
	EnsureGroup(ctx context.Context, stream, group string) error

	// ReadNew reads up to count new entries for this group/consumer,
	// blocking up to block for at least one. block == 0 means no block.
	ReadNew(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]StreamEntry, error)

	// Pending lists up to count pending entries for the group whose idle
	// time is >= minIdle, in stream-id order.
	Pending(ctx context.Context, stream, group string, minIdle time.Duration, count int64) ([]PendingEntry, error)

	// Claim reassigns the given pending entry ids to consumer and returns
	// their current field content. Ids already acked are silently skipped.
	Claim(ctx context.Context, stream, group, consumer string, ids []string) ([]StreamEntry, error)

	// Ack removes entries from the group's pending list.
	Ack(ctx context.Context, stream, group string, ids ...string) error

	// SetNX sets key=value with ttl iff key is currently absent; returns
	// true iff this call set it.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del unconditionally deletes keys; missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Put upserts a scalar document value (no TTL).
	Put(ctx context.Context, key, value string) error

	// Get fetches a scalar document value; ok is false when absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SAdd adds members to a set key.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from a set key.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of a set key, order unspecified.
	SMembers(ctx context.Context, key string) ([]string, error)

	// Incr increments an integer counter key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}
