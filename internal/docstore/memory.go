package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memDoc struct {
	data map[string]any
	seq  int64
}

// Memory is an in-process Store. Deliveries happen synchronously on the writing goroutine unless
// another goroutine is already draining the dispatch queue.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     int64
	nextSub int64
	colls   map[string]map[string]*memDoc
	subs    map[int64]*subscription
	closed  bool
	// writeHook, when set, can fail a write before it is applied.
	writeHook func(op, collection, id string) error

	dispatch dispatcher
}

type MemoryOption func(*Memory)

// WithClock overrides the clock used for ServerTimestamp.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithWriteHook installs a hook called before every write; a non-nil error aborts the write.
func WithWriteHook(fn func(op, collection, id string) error) MemoryOption {
	return func(m *Memory) { m.writeHook = fn }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:   time.Now,
		colls: map[string]map[string]*memDoc{},
		subs:  map[int64]*subscription{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetWriteHook replaces the write hook at runtime.
func (m *Memory) SetWriteHook(fn func(op, collection, id string) error) {
	m.mu.Lock()
	m.writeHook = fn
	m.mu.Unlock()
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	if err := m.write(ctx, "create", collection, id, func(cur *memDoc) (*memDoc, error) {
		return &memDoc{data: resolveTimestamps(fields, m.now())}, nil
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("set %s: id is required", collection)
	}
	return m.write(ctx, "set", collection, id, func(cur *memDoc) (*memDoc, error) {
		return &memDoc{data: resolveTimestamps(fields, m.now())}, nil
	})
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return m.write(ctx, "update", collection, id, func(cur *memDoc) (*memDoc, error) {
		if cur == nil {
			return nil, fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
		}
		next := copyData(cur.data)
		for k, v := range resolveTimestamps(patch, m.now()) {
			next[k] = v
		}
		return &memDoc{data: next}, nil
	})
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	return m.write(ctx, "delete", collection, id, func(cur *memDoc) (*memDoc, error) {
		return nil, nil
	})
}

// write applies fn to the current document under the lock and queues one snapshot per
// affected subscription before releasing it, so deliveries follow write order.
func (m *Memory) write(ctx context.Context, op, collection, id string, fn func(cur *memDoc) (*memDoc, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validCollection(collection); err != nil {
		return err
	}
	collection = strings.Trim(collection, "/")

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.writeHook != nil {
		if err := m.writeHook(op, collection, id); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	docs := m.colls[collection]
	var cur *memDoc
	if docs != nil {
		cur = docs[id]
	}
	next, err := fn(cur)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if next == nil && cur == nil {
		m.mu.Unlock()
		return nil
	}
	if next == nil {
		delete(docs, id)
	} else {
		if docs == nil {
			docs = map[string]*memDoc{}
			m.colls[collection] = docs
		}
		m.seq++
		next.seq = m.seq
		if cur != nil && op == "update" {
			// Updates keep their position among equal timestamps.
			next.seq = cur.seq
		}
		docs[id] = next
	}
	m.enqueueAffectedLocked(collection)
	m.mu.Unlock()

	m.dispatch.drain()
	return nil
}

func (m *Memory) enqueueAffectedLocked(collection string) {
	for _, s := range m.sortedSubsLocked() {
		if !s.query.Matches(collection) {
			continue
		}
		snap := m.snapshotLocked(s.query)
		m.dispatch.enqueue(func() { s.deliver(snap) })
	}
}

func (m *Memory) sortedSubsLocked() []*subscription {
	out := make([]*subscription, 0, len(m.subs))
	for i := int64(1); i <= m.nextSub; i++ {
		if s, ok := m.subs[i]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (m *Memory) snapshotLocked(q Query) []Doc {
	var xs []orderedDoc
	for coll, docs := range m.colls {
		if !q.Matches(coll) {
			continue
		}
		for id, d := range docs {
			xs = append(xs, orderedDoc{
				doc: Doc{ID: id, Path: coll + "/" + id, Data: copyData(d.data)},
				at:  createdAt(d.data),
				seq: d.seq,
			})
		}
	}
	return sortDocs(xs)
}

func (m *Memory) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.Collection = strings.Trim(q.Collection, "/")

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.nextSub++
	s := &subscription{id: m.nextSub, query: q, onSnapshot: onSnapshot, onError: onError}
	m.subs[s.id] = s
	snap := m.snapshotLocked(q)
	m.dispatch.enqueue(func() { s.deliver(snap) })
	m.mu.Unlock()

	m.dispatch.drain()

	return func() {
		s.closed.Store(true)
		m.mu.Lock()
		delete(m.subs, s.id)
		m.mu.Unlock()
	}, nil
}

// Fail delivers err to every live subscription whose query matches collection, the way a
// backend reports a broken listener.
func (m *Memory) Fail(collection string, err error) {
	collection = strings.Trim(collection, "/")
	m.mu.Lock()
	for _, s := range m.sortedSubsLocked() {
		if !s.query.Matches(collection) {
			continue
		}
		m.dispatch.enqueue(func() { s.fail(err) })
	}
	m.mu.Unlock()
	m.dispatch.drain()
}

// Subscribers returns the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Get returns a copy of one document (tests, CLI).
func (m *Memory) Get(collection, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.colls[strings.Trim(collection, "/")][id]
	if !ok {
		return nil, false
	}
	return copyData(d.data), true
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, s := range m.subs {
		s.closed.Store(true)
		delete(m.subs, id)
	}
	return nil
}
