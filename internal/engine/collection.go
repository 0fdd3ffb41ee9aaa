package engine

import (
	"context"
	"log/slog"
	"sync"

	"teamboard/internal/cache"
	"teamboard/internal/docstore"
	"teamboard/internal/model"
	"teamboard/internal/mutate"
	"teamboard/internal/scope"
	"teamboard/internal/subscribe"
)

// Collection is one scoped slot of the session: the cache of a kind, the live subscription that
// feeds it, and the coordinator that writes through it. The cache object lives as long as the
// engine so watchers survive scope switches; its contents do not.
type Collection[T model.Entity] struct {
	name  string
	store docstore.Store
	mgr   *subscribe.Manager
	opts  mutate.Options
	log   *slog.Logger
	cache *cache.Cache[T]

	mu     sync.Mutex
	key    scope.Key
	bound  bool
	co     *mutate.Coordinator[T]
	handle *subscribe.Handle
}

func newCollection[T model.Entity](name string, store docstore.Store, mgr *subscribe.Manager, opts mutate.Options, log *slog.Logger) *Collection[T] {
	return &Collection[T]{
		name:  name,
		store: store,
		mgr:   mgr,
		opts:  opts,
		log:   log,
		cache: cache.New[T](),
	}
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) Cache() *cache.Cache[T] { return c.cache }

// Key returns the attached scope, if any.
func (c *Collection[T]) Key() (scope.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.bound
}

func (c *Collection[T]) coordinator() (*mutate.Coordinator[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.co == nil {
		return nil, scope.PreconditionError{Field: c.name + " scope", Reason: "is not selected"}
	}
	return c.co, nil
}

// attach resets the cache and subscribes it to key.
func (c *Collection[T]) attach(key scope.Key) error {
	c.teardown()
	if err := key.Validate(); err != nil {
		return err
	}
	co := mutate.New(c.store, c.cache, key, c.opts)
	c.mu.Lock()
	c.key = key
	c.bound = true
	c.co = co
	c.mu.Unlock()

	h, err := subscribe.Into(c.mgr, key, c.cache)
	if err != nil {
		c.log.Warn("attach failed", "collection", c.name, "scope", key.String(), "err", err)
		return err
	}
	c.mu.Lock()
	if c.co != co {
		// Torn down while the first snapshot was being delivered.
		c.mu.Unlock()
		h.Detach()
		return nil
	}
	c.handle = h
	c.mu.Unlock()
	return nil
}

// teardown detaches the subscription and empties the cache.
func (c *Collection[T]) teardown() {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.co = nil
	c.bound = false
	c.key = scope.Key{}
	c.mu.Unlock()
	if h != nil {
		h.Detach()
	}
	c.cache.Reset()
}

// Mutate applies an optimistic edit. Without an attached scope it is dropped.
func (c *Collection[T]) Mutate(id string, patch model.Patch) {
	co, err := c.coordinator()
	if err != nil {
		c.log.Debug("mutate without scope", "collection", c.name, "id", id)
		return
	}
	co.Mutate(id, patch)
}

func (c *Collection[T]) Create(ctx context.Context, item T) (string, error) {
	co, err := c.coordinator()
	if err != nil {
		return "", err
	}
	return co.Create(ctx, item)
}

func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	co, err := c.coordinator()
	if err != nil {
		return err
	}
	return co.Remove(ctx, id)
}

// Coordinator exposes the attached coordinator for helpers such as mutate.AddResource.
func (c *Collection[T]) Coordinator() (*mutate.Coordinator[T], error) {
	return c.coordinator()
}

// Lookup resolves a board card to its cached entity.
func (c *Collection[T]) Lookup(id string) (model.Groupable, bool) {
	v, ok := c.cache.Get(id)
	if !ok {
		return nil, false
	}
	g, ok := any(v).(model.Groupable)
	return g, ok
}

func (c *Collection[T]) Has(id string) bool {
	_, ok := c.cache.Get(id)
	return ok
}

// Snapshot is the serializable state of a collection.
type Snapshot struct {
	Collection string     `json:"collection"`
	Kind       model.Kind `json:"kind"`
	Scope      string     `json:"scope,omitempty"`
	Loading    bool       `json:"loading"`
	Error      string     `json:"error,omitempty"`
	Items      any        `json:"items"`
}

func (c *Collection[T]) Snapshot() Snapshot {
	var zero T
	s := Snapshot{
		Collection: c.name,
		Kind:       zero.EntityKind(),
		Loading:    c.cache.Loading(),
		Items:      c.cache.Items(),
	}
	if k, ok := c.Key(); ok {
		s.Scope = k.String()
	}
	if err := c.cache.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
