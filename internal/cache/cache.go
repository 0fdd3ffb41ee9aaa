package cache

import (
	"context"
	"sync"

	"teamboard/internal/model"
)

// Cache holds the latest ordered list of one entity kind for one scope, plus any optimistic
// edits layered on top since the last snapshot. The zero value is not usable; use New.
type Cache[T model.Entity] struct {
	mu       sync.Mutex
	items    []T
	gen      uint64
	loading  bool
	err      error
	loadedCh chan struct{}

	nextWatch int
	watchers  map[int]func()
}

func New[T model.Entity]() *Cache[T] {
	return &Cache[T]{
		loading:  true,
		loadedCh: make(chan struct{}),
		watchers: map[int]func(){},
	}
}

// Binding is a writer pinned to one cache generation. Once the cache is reset its writes are
// dropped, so late events from a torn-down subscription cannot leak into a new scope.
type Binding[T model.Entity] struct {
	c   *Cache[T]
	gen uint64
}

// Bind returns a Binding for the current generation.
func (c *Cache[T]) Bind() Binding[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Binding[T]{c: c, gen: c.gen}
}

// Generation is bumped by every Reset.
func (c *Cache[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Stale reports whether the cache has been reset since b was created.
func (b Binding[T]) Stale() bool {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	return b.gen != b.c.gen
}

// ReplaceAll installs an authoritative snapshot. It returns false when the binding is stale.
func (b Binding[T]) ReplaceAll(items []T) bool {
	c := b.c
	c.mu.Lock()
	if b.gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.items = append(make([]T, 0, len(items)), items...)
	c.err = nil
	c.markLoadedLocked()
	c.mu.Unlock()
	c.notify()
	return true
}

// Fail records a subscription error. Data is kept; loading ends.
func (b Binding[T]) Fail(err error) bool {
	c := b.c
	c.mu.Lock()
	if b.gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.err = err
	c.markLoadedLocked()
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Cache[T]) markLoadedLocked() {
	if c.loading {
		c.loading = false
		close(c.loadedCh)
	}
}

// ReplaceAll replaces the contents for the current generation.
func (c *Cache[T]) ReplaceAll(items []T) {
	c.Bind().ReplaceAll(items)
}

// PatchOne applies fn to the item with id. It reports whether the item was present.
func (c *Cache[T]) PatchOne(id string, fn func(T) (T, error)) (bool, error) {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return false, nil
	}
	next, err := fn(c.items[idx])
	if err != nil {
		c.mu.Unlock()
		return true, err
	}
	items := append(make([]T, 0, len(c.items)), c.items...)
	items[idx] = next
	c.items = items
	c.mu.Unlock()
	c.notify()
	return true, nil
}

// RemoveOne drops the item with id, returning it when present.
func (c *Cache[T]) RemoveOne(id string) (T, bool) {
	var zero T
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return zero, false
	}
	removed := c.items[idx]
	items := make([]T, 0, len(c.items)-1)
	items = append(items, c.items[:idx]...)
	items = append(items, c.items[idx+1:]...)
	c.items = items
	c.mu.Unlock()
	c.notify()
	return removed, true
}

// InsertOne puts item at the head of the list (newest first). It is a no-op when an item with
// the same id is already present, so inserting what a snapshot already delivered is harmless.
func (c *Cache[T]) InsertOne(item T) bool {
	c.mu.Lock()
	if c.indexLocked(item.EntityID()) >= 0 {
		c.mu.Unlock()
		return false
	}
	items := make([]T, 0, len(c.items)+1)
	items = append(items, item)
	items = append(items, c.items...)
	c.items = items
	c.mu.Unlock()
	c.notify()
	return true
}

// Reset wipes the cache and starts a new generation. Existing bindings become stale.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	c.gen++
	c.items = nil
	c.err = nil
	if !c.loading {
		c.loading = true
		c.loadedCh = make(chan struct{})
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Cache[T]) indexLocked(id string) int {
	for i, it := range c.items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}

// Items returns a copy of the current ordered list.
func (c *Cache[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(id); idx >= 0 {
		return c.items[idx], true
	}
	var zero T
	return zero, false
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Loading is true until the first snapshot or error of the current generation.
func (c *Cache[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err is the last subscription error of the current generation.
func (c *Cache[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// WaitLoaded blocks until the current generation receives its first snapshot or error.
func (c *Cache[T]) WaitLoaded(ctx context.Context) error {
	c.mu.Lock()
	ch := c.loadedCh
	c.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch registers fn to run after every change. Listeners run on the writer's goroutine and
// must not block. The returned func unregisters.
func (c *Cache[T]) Watch(fn func()) func() {
	c.mu.Lock()
	c.nextWatch++
	id := c.nextWatch
	c.watchers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Cache[T]) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.watchers))
	for i := 1; i <= c.nextWatch; i++ {
		if fn, ok := c.watchers[i]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
