package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Memory is a pure-Go, in-process Store. It has no external dependency and
// is the default substrate for unit tests exercising components above it.
type Memory struct {
	mu sync.Mutex

	streams map[string]*memStream
	kv      map[string]memValue
	sets    map[string]map[string]struct{}
	seq     int64
}

type memValue struct {
	value   string
	expires time.Time // zero means no expiry
}

type memEntry struct {
	id     string
	fields map[string]string
}

type memPending struct {
	consumer    string
	deliveredAt time.Time
}

type memGroup struct {
	nextIdx int // index into stream.entries of the next undelivered entry
	pending map[string]*memPending
}

type memStream struct {
	entries []memEntry
	groups  map[string]*memGroup
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		streams: make(map[string]*memStream),
		kv:      make(map[string]memValue),
		sets:    make(map[string]map[string]struct{}),
	}
}

func pollInterval(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	const step = 10 * time.Millisecond
	if d <= 0 {
		return 0
	}
	if d < step {
		return d
	}
	return step
}

func (m *Memory) stream(name string) *memStream {
	s, ok := m.streams[name]
	if !ok {
		s = &memStream{groups: make(map[string]*memGroup)}
		m.streams[name] = s
	}
	return s
}

func (m *Memory) nextID() string {
	m.seq++
	return strconv.FormatInt(m.seq, 10)
}

func (m *Memory) StreamAppend(ctx context.Context, stream string, fields map[string]string) (string, error) {
	if strings.TrimSpace(stream) == "" {
		return "", fmt.Errorf("%w: stream name required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s := m.stream(stream)
	s.entries = append(s.entries, memEntry{id: id, fields: cp})
	return id, nil
}

func (m *Memory) EnsureGroup(ctx context.Context, stream, group string) error {
	if strings.TrimSpace(stream) == "" || strings.TrimSpace(group) == "" {
		return fmt.Errorf("%w: stream and group required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stream(stream)
	if _, ok := s.groups[group]; !ok {
		s.groups[group] = &memGroup{nextIdx: 0, pending: make(map[string]*memPending)}
	}
	return nil
}

func (m *Memory) ReadNew(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]StreamEntry, error) {
	if count <= 0 {
		count = 1
	}
	deadline := time.Now().Add(block)
	for {
		m.mu.Lock()
		s := m.stream(stream)
		g, ok := s.groups[group]
		if !ok {
			g = &memGroup{nextIdx: 0, pending: make(map[string]*memPending)}
			s.groups[group] = g
		}
		if g.nextIdx < len(s.entries) {
			end := g.nextIdx + int(count)
			if end > len(s.entries) {
				end = len(s.entries)
			}
			out := make([]StreamEntry, 0, end-g.nextIdx)
			now := time.Now()
			for _, e := range s.entries[g.nextIdx:end] {
				g.pending[e.id] = &memPending{consumer: consumer, deliveredAt: now}
				out = append(out, StreamEntry{ID: e.id, Fields: e.fields})
			}
			g.nextIdx = end
			m.mu.Unlock()
			return out, nil
		}
		m.mu.Unlock()
		if block <= 0 || time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-time.After(pollInterval(deadline)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Memory) Pending(ctx context.Context, stream, group string, minIdle time.Duration, count int64) ([]PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[stream]
	if !ok {
		return nil, nil
	}
	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })
	out := make([]PendingEntry, 0, count)
	for _, id := range ids {
		p := g.pending[id]
		idle := now.Sub(p.deliveredAt)
		if idle < minIdle {
			continue
		}
		out = append(out, PendingEntry{ID: id, Consumer: p.consumer, Idle: idle})
		if count > 0 && int64(len(out)) >= count {
			break
		}
	}
	return out, nil
}

func (m *Memory) Claim(ctx context.Context, stream, group, consumer string, ids []string) ([]StreamEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[stream]
	if !ok {
		return nil, nil
	}
	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}
	byID := make(map[string]map[string]string, len(s.entries))
	for _, e := range s.entries {
		byID[e.id] = e.fields
	}
	now := time.Now()
	out := make([]StreamEntry, 0, len(ids))
	for _, id := range ids {
		if _, stillPending := g.pending[id]; !stillPending {
			continue
		}
		g.pending[id] = &memPending{consumer: consumer, deliveredAt: now}
		out = append(out, StreamEntry{ID: id, Fields: byID[id]})
	}
	return out, nil
}

func (m *Memory) Ack(ctx context.Context, stream, group string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[stream]
	if !ok {
		return nil
	}
	g, ok := s.groups[group]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(g.pending, id)
	}
	return nil
}

func (m *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("%w: key required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.kv[key]; ok && !expired(v) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.kv[key] = memValue{value: value, expires: exp}
	return true, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *Memory) Put(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = memValue{value: value}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok || expired(v) {
		return "", false, nil
	}
	return v.value, true, nil
}

func (m *Memory) SAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		m.sets[key] = set
	}
	for _, mem := range members {
		set[mem] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		return nil
	}
	for _, mem := range members {
		delete(set, mem)
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for mem := range set {
		out = append(out, mem)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	n := int64(0)
	if ok && !expired(v) {
		parsed, err := strconv.ParseInt(v.value, 10, 64)
		if err == nil {
			n = parsed
		}
	}
	n++
	m.kv[key] = memValue{value: strconv.FormatInt(n, 10)}
	return n, nil
}

func expired(v memValue) bool {
	return !v.expires.IsZero() && time.Now().After(v.expires)
}

// idLess compares memory stream ids, which are decimal strings; numeric
// comparison keeps ordering correct past 9 entries.
func idLess(a, b string) bool {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return an < bn
	}
	return a < b
}

var _ Store = (*Memory)(nil)
