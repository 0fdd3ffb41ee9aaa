package subscribe

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"teamboard/internal/docstore"
	"teamboard/internal/scope"
)

// SubscriptionError wraps a listener failure with the scope it belongs to.
type SubscriptionError struct {
	Key scope.Key
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Key, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

type (
	SnapshotFunc func(docs []docstore.Doc)
	ErrorFunc    func(err error)
)

// Manager owns at most one live store subscription per scope key.
type Manager struct {
	store docstore.Store
	log   *slog.Logger

	mu   sync.Mutex
	live map[string]*Handle
}

func NewManager(store docstore.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, log: log, live: map[string]*Handle{}}
}

// Handle is one attached subscription.
type Handle struct {
	m   *Manager
	key scope.Key

	mu     sync.Mutex
	closed bool
	unsub  docstore.Unsubscribe
}

func (h *Handle) Key() scope.Key { return h.key }

// Active reports whether the handle has not been detached.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Detach stops the subscription. It is idempotent; no callback starts after it returns.
func (h *Handle) Detach() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	unsub := h.unsub
	h.unsub = nil
	h.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	h.m.release(h)
	h.m.log.Debug("subscription detached", "scope", h.key.String())
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live[h.key.String()] == h {
		delete(m.live, h.key.String())
	}
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Attach subscribes to key. An invalid key returns its scope.PreconditionError without touching
// the store. A live subscription for the same key is detached first.
func (m *Manager) Attach(key scope.Key, onSnapshot SnapshotFunc, onError ErrorFunc) (*Handle, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	h := &Handle{m: m, key: key}

	m.mu.Lock()
	prev := m.live[key.String()]
	m.live[key.String()] = h
	m.mu.Unlock()
	if prev != nil {
		m.log.Debug("replacing live subscription", "scope", key.String())
		prev.Detach()
	}

	q := docstore.Query{Collection: key.Path()}
	if key.Group {
		q = docstore.Query{Group: key.Leaf(), Prefix: key.Prefix()}
	}
	unsub, err := m.store.Subscribe(q, func(docs []docstore.Doc) {
		if h.isClosed() || onSnapshot == nil {
			return
		}
		onSnapshot(docs)
	}, func(err error) {
		if h.isClosed() {
			return
		}
		m.log.Warn("subscription error", "scope", key.String(), "err", err)
		if onError != nil {
			onError(&SubscriptionError{Key: key, Err: err})
		}
	})
	if err != nil {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		m.release(h)
		return nil, &SubscriptionError{Key: key, Err: err}
	}

	h.mu.Lock()
	if h.closed {
		// Detached from inside the initial delivery.
		h.mu.Unlock()
		unsub()
		return h, nil
	}
	h.unsub = unsub
	h.mu.Unlock()
	m.log.Debug("subscription attached", "scope", key.String())
	return h, nil
}

// Live returns the keys with a live subscription, sorted.
func (m *Manager) Live() []scope.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scope.Key, 0, len(m.live))
	for _, h := range m.live {
		out = append(out, h.key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// IsLive reports whether key has a live subscription.
func (m *Manager) IsLive(key scope.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[key.String()]
	return ok
}

// DetachAll detaches every live subscription.
func (m *Manager) DetachAll() {
	m.mu.Lock()
	hs := make([]*Handle, 0, len(m.live))
	for _, h := range m.live {
		hs = append(hs, h)
	}
	m.mu.Unlock()
	for _, h := range hs {
		h.Detach()
	}
}
