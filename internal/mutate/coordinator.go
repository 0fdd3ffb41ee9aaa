package mutate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"teamboard/internal/cache"
	"teamboard/internal/docstore"
	"teamboard/internal/model"
	"teamboard/internal/scope"
)

type Options struct {
	Strategy WriteStrategy
	Logger   *slog.Logger
	// Now stamps locally inserted items until the store's snapshot replaces them.
	Now func() time.Time
}

// Coordinator applies optimistic edits to one cache and forwards them to the store.
type Coordinator[T model.Entity] struct {
	store    docstore.Store
	cache    *cache.Cache[T]
	key      scope.Key
	kind     model.Kind
	strategy WriteStrategy
	log      *slog.Logger
	now      func() time.Time
}

func New[T model.Entity](store docstore.Store, c *cache.Cache[T], key scope.Key, opts Options) *Coordinator[T] {
	var zero T
	co := &Coordinator[T]{
		store:    store,
		cache:    c,
		key:      key,
		kind:     zero.EntityKind(),
		strategy: opts.Strategy,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if co.log == nil {
		co.log = slog.Default()
	}
	if co.strategy == nil {
		co.strategy = &FireAndForget{Log: co.log}
	}
	if co.now == nil {
		co.now = time.Now
	}
	return co
}

func (c *Coordinator[T]) Key() scope.Key { return c.key }

func (c *Coordinator[T]) Cache() *cache.Cache[T] { return c.cache }

// touchesUpdatedAt reports whether the kind carries an updatedAt field.
func touchesUpdatedAt(k model.Kind) bool {
	switch k {
	case model.KindProject, model.KindTask, model.KindIssue:
		return true
	}
	return false
}

// collectionFor resolves the store collection of an item. Group scopes locate the parent
// project from the cached item.
func (c *Coordinator[T]) collectionFor(id string) (string, bool) {
	if !c.key.Group {
		return c.key.Path(), true
	}
	it, ok := c.cache.Get(id)
	if !ok {
		return "", false
	}
	pc, ok := any(it).(model.ProjectChild)
	if !ok || strings.TrimSpace(pc.ParentProjectID()) == "" {
		return "", false
	}
	child := scope.Key{Collection: c.key.Collection, WorkspaceID: c.key.WorkspaceID, ProjectID: pc.ParentProjectID()}
	return child.Path(), true
}

// Mutate applies patch to the cached item immediately and hands the remote write to the
// strategy. It never blocks on the store and never reports failure; the next snapshot decides
// the final value.
func (c *Coordinator[T]) Mutate(id string, patch model.Patch) {
	id = strings.TrimSpace(id)
	if id == "" || len(patch) == 0 {
		return
	}
	collection, ok := c.collectionFor(id)

	found, err := c.cache.PatchOne(id, func(cur T) (T, error) {
		return model.ApplyPatch(cur, patch)
	})
	if err != nil {
		c.log.Warn("local patch failed", "kind", string(c.kind), "id", id, "err", err)
	}
	if !found {
		c.log.Debug("mutate on item missing from cache", "kind", string(c.kind), "id", id)
	}
	if !ok {
		c.log.Warn("cannot locate item for remote update", "kind", string(c.kind), "id", id, "scope", c.key.String())
		return
	}

	remote := patch.Clone()
	if touchesUpdatedAt(c.kind) {
		remote["updatedAt"] = docstore.ServerTimestamp
	}
	w := RemoteWrite{Kind: c.kind, Collection: collection, ID: id, Patch: patch.Clone()}
	c.strategy.Submit(w, func(ctx context.Context) error {
		return c.store.Update(ctx, collection, id, remote)
	})
}

type validator interface {
	Validate() error
}

// Create validates synchronously (scope ids, required fields) and returns the
// scope.PreconditionError without any I/O on failure. A store failure is a *CreateError. The new
// item is inserted into the cache unless a snapshot already delivered it.
func (c *Coordinator[T]) Create(ctx context.Context, item T) (string, error) {
	return c.create(ctx, "", item)
}

// Put is Create with a caller-chosen document id (memberships are keyed by user id).
func (c *Coordinator[T]) Put(ctx context.Context, id string, item T) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", scope.PreconditionError{Field: "id"}
	}
	return c.create(ctx, strings.TrimSpace(id), item)
}

func (c *Coordinator[T]) create(ctx context.Context, id string, item T) (string, error) {
	if err := c.key.Validate(); err != nil {
		return "", err
	}
	if c.key.Group {
		return "", scope.PreconditionError{Field: "scope", Reason: "cannot create in a collection group"}
	}
	if v, ok := any(item).(validator); ok {
		if err := v.Validate(); err != nil {
			return "", err
		}
	}
	fields, err := model.Fields(item)
	if err != nil {
		return "", &CreateError{Kind: c.kind, Err: err}
	}
	fields["createdAt"] = docstore.ServerTimestamp
	if touchesUpdatedAt(c.kind) {
		fields["updatedAt"] = docstore.ServerTimestamp
	}

	if id == "" {
		id, err = c.store.Create(ctx, c.key.Path(), fields)
	} else {
		err = c.store.Set(ctx, c.key.Path(), id, fields)
	}
	if err != nil {
		c.log.Warn("create failed", "kind", string(c.kind), "scope", c.key.String(), "err", err)
		return "", &CreateError{Kind: c.kind, Err: err}
	}

	local := make(map[string]any, len(fields))
	now := c.now()
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			v = now
		}
		local[k] = v
	}
	if v, err := model.Decode[T](id, local); err == nil {
		c.cache.InsertOne(v)
	} else {
		c.log.Warn("could not decode created item", "kind", string(c.kind), "id", id, "err", err)
	}
	return id, nil
}

// Remove drops the item locally, then deletes it remotely. A remote failure is returned as a
// *DeleteError and the item stays removed locally until the next snapshot.
func (c *Coordinator[T]) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return scope.PreconditionError{Field: "id"}
	}
	if err := c.key.Validate(); err != nil {
		return err
	}
	collection, ok := c.collectionFor(id)
	if !ok {
		return NotFoundError{Kind: string(c.kind), ID: id}
	}
	c.cache.RemoveOne(id)
	if err := c.store.Delete(ctx, collection, id); err != nil {
		c.log.Warn("delete failed", "kind", string(c.kind), "id", id, "err", err)
		return &DeleteError{Kind: c.kind, ID: id, Err: err}
	}
	return nil
}
