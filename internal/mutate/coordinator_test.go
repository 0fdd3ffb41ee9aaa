package mutate

import (
	"context"
	"errors"
	"testing"

	"teamboard/internal/cache"
	"teamboard/internal/docstore"
	"teamboard/internal/model"
	"teamboard/internal/scope"
	"teamboard/internal/subscribe"
)

// heldWrites keeps remote writes in flight until the test releases them.
type heldWrites struct {
	pending []func(context.Context) error
}

func (h *heldWrites) Submit(_ RemoteWrite, run func(ctx context.Context) error) {
	h.pending = append(h.pending, run)
}

func (h *heldWrites) release(t *testing.T) {
	t.Helper()
	for _, run := range h.pending {
		if err := run(context.Background()); err != nil {
			t.Fatalf("held write failed: %v", err)
		}
	}
	h.pending = nil
}

type fixture struct {
	store *docstore.Memory
	mgr   *subscribe.Manager
}

func newFixture() fixture {
	store := docstore.NewMemory()
	return fixture{store: store, mgr: subscribe.NewManager(store, nil)}
}

func projects(t *testing.T, f fixture, strategy WriteStrategy) (*Coordinator[model.Project], *cache.Cache[model.Project]) {
	t.Helper()
	key := scope.ProjectsKey("w1")
	c := cache.New[model.Project]()
	h, err := subscribe.Into(f.mgr, key, c)
	if err != nil {
		t.Fatalf("Into error: %v", err)
	}
	t.Cleanup(h.Detach)
	return New(f.store, c, key, Options{Strategy: strategy}), c
}

func TestTransientRevertThenConverge(t *testing.T) {
	f := newFixture()
	held := &heldWrites{}
	co, c := projects(t, f, held)
	ctx := context.Background()

	id, err := co.Create(ctx, model.Project{Name: "P1", Status: model.ProjectPlanned})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	co.Mutate(id, SetStatus(string(model.ProjectInProgress)))
	if p, _ := c.Get(id); p.Status != model.ProjectInProgress {
		t.Fatalf("expected optimistic in-progress; got %q", p.Status)
	}

	// An unrelated write produces a snapshot before our write is durable.
	if _, err := f.store.Create(ctx, "workspaces/w1/projects", map[string]any{"name": "other", "createdAt": docstore.ServerTimestamp}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if p, _ := c.Get(id); p.Status != model.ProjectPlanned {
		t.Fatalf("expected snapshot to revert to planned; got %q", p.Status)
	}

	held.release(t)
	if p, _ := c.Get(id); p.Status != model.ProjectInProgress {
		t.Fatalf("expected converged in-progress; got %q", p.Status)
	}
	doc, _ := f.store.Get("workspaces/w1/projects", id)
	if _, ok := doc["updatedAt"]; !ok {
		t.Fatalf("expected updatedAt to be stamped remotely")
	}
}

func TestMutateFailureIsObservedNotRolledBack(t *testing.T) {
	f := newFixture()
	var observed *MutationError
	co, c := projects(t, f, Inline{OnError: func(e *MutationError) { observed = e }})
	ctx := context.Background()
	id, err := co.Create(ctx, model.Project{Name: "P1"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	boom := errors.New("permission denied")
	f.store.SetWriteHook(func(op, collection, docID string) error {
		if op == "update" {
			return boom
		}
		return nil
	})
	co.Mutate(id, SetName("Renamed"))

	if observed == nil || !errors.Is(observed, boom) || observed.ID != id {
		t.Fatalf("expected MutationError wrapping %v; got %v", boom, observed)
	}
	if p, _ := c.Get(id); p.Name != "Renamed" {
		t.Fatalf("expected optimistic value kept; got %q", p.Name)
	}
}

func TestCreatePreconditionsNeverReachStore(t *testing.T) {
	f := newFixture()
	writes := 0
	f.store.SetWriteHook(func(string, string, string) error { writes++; return nil })

	tasks := New(f.store, cache.New[model.Task](), scope.TasksKey("w1", ""), Options{Strategy: Inline{}})
	_, err := tasks.Create(context.Background(), model.Task{Title: "x"})
	var pe scope.PreconditionError
	if !errors.As(err, &pe) || pe.Field != "project id" {
		t.Fatalf("expected project id precondition; got %v", err)
	}

	ok := New(f.store, cache.New[model.Task](), scope.TasksKey("w1", "p1"), Options{Strategy: Inline{}})
	if _, err := ok.Create(context.Background(), model.Task{Title: "   "}); !errors.As(err, &pe) || pe.Field != "title" {
		t.Fatalf("expected title precondition; got %v", err)
	}
	if writes != 0 {
		t.Fatalf("expected no store writes; got %d", writes)
	}
}

func TestCreateStoreFailure(t *testing.T) {
	f := newFixture()
	boom := errors.New("unavailable")
	f.store.SetWriteHook(func(op, _, _ string) error { return boom })
	co, c := projects(t, f, Inline{})
	_, err := co.Create(context.Background(), model.Project{Name: "P"})
	var ce *CreateError
	if !errors.As(err, &ce) || !errors.Is(err, boom) || ce.Kind != model.KindProject {
		t.Fatalf("expected CreateError wrapping %v; got %v", boom, err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected nothing inserted; got %d", c.Len())
	}
}

func TestCreateInsertsWithoutSubscription(t *testing.T) {
	f := newFixture()
	c := cache.New[model.Task]()
	co := New(f.store, c, scope.TasksKey("w1", "p1"), Options{Strategy: Inline{}})
	id, err := co.Create(context.Background(), model.Task{Title: "T", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	got, ok := c.Get(id)
	if !ok || got.Title != "T" || got.CreatedAt.IsZero() {
		t.Fatalf("expected locally inserted task with createdAt; got %+v (ok=%v)", got, ok)
	}
}

func TestRemoveFailureKeepsLocalRemoval(t *testing.T) {
	f := newFixture()
	co, c := projects(t, f, Inline{})
	ctx := context.Background()
	id, err := co.Create(ctx, model.Project{Name: "P"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	boom := errors.New("denied")
	f.store.SetWriteHook(func(op, _, _ string) error {
		if op == "delete" {
			return boom
		}
		return nil
	})
	err = co.Remove(ctx, id)
	var de *DeleteError
	if !errors.As(err, &de) || de.ID != id || !errors.Is(err, boom) {
		t.Fatalf("expected DeleteError; got %v", err)
	}
	if _, ok := c.Get(id); ok {
		t.Fatalf("expected item to stay removed locally")
	}

	f.store.SetWriteHook(nil)
	if err := co.Remove(ctx, id); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, ok := f.store.Get("workspaces/w1/projects", id); ok {
		t.Fatalf("expected document deleted")
	}
}

func TestGroupScopeMutateLocatesParent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tasksP1 := New(f.store, cache.New[model.Task](), scope.TasksKey("w1", "p1"), Options{Strategy: Inline{}})
	id, err := tasksP1.Create(ctx, model.Task{Title: "T", ProjectID: "p1", Status: model.TaskTodo})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	key := scope.WorkspaceTasksKey("w1")
	c := cache.New[model.Task]()
	h, err := subscribe.Into(f.mgr, key, c)
	if err != nil {
		t.Fatalf("Into error: %v", err)
	}
	defer h.Detach()
	co := New(f.store, c, key, Options{Strategy: Inline{}})

	co.Mutate(id, SetStatus(string(model.TaskDone)))
	doc, ok := f.store.Get("workspaces/w1/projects/p1/tasks", id)
	if !ok || doc["status"] != "done" {
		t.Fatalf("expected remote status done; got %v", doc)
	}
	if _, err := co.Create(ctx, model.Task{Title: "x"}); err == nil {
		t.Fatalf("expected create in group scope to fail")
	}
}

func TestResources(t *testing.T) {
	f := newFixture()
	co, c := projects(t, f, Inline{})
	id, err := co.Create(context.Background(), model.Project{Name: "P"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	r1, err := AddResource(co, id, model.Resource{Title: "Spec", URL: "https://a"})
	if err != nil {
		t.Fatalf("AddResource error: %v", err)
	}
	if r1.ID == "" {
		t.Fatalf("expected generated id")
	}
	if _, err := AddResource(co, id, model.Resource{ID: r1.ID, Title: "Spec v2", URL: "https://b"}); err != nil {
		t.Fatalf("AddResource error: %v", err)
	}
	p, _ := c.Get(id)
	if len(p.Resources) != 1 || p.Resources[0].Title != "Spec v2" {
		t.Fatalf("expected one replaced resource; got %+v", p.Resources)
	}

	if err := RemoveResource(co, id, "nope"); err == nil {
		t.Fatalf("expected NotFoundError")
	}
	if err := RemoveResource(co, id, r1.ID); err != nil {
		t.Fatalf("RemoveResource error: %v", err)
	}
	p, _ = c.Get(id)
	if len(p.Resources) != 0 {
		t.Fatalf("expected no resources; got %+v", p.Resources)
	}
	if _, err := AddResource(co, "missing", model.Resource{URL: "https://x"}); err == nil {
		t.Fatalf("expected NotFoundError for missing project")
	}
}

func TestPatchBuilders(t *testing.T) {
	if v := SetLead(" ")["lead"]; v != nil {
		t.Fatalf("expected nil lead; got %v", v)
	}
	if v := SetAssignees([]string{"a", "a", " "})["assignees"].([]string); len(v) != 1 {
		t.Fatalf("expected deduped assignees; got %v", v)
	}
	if v := SetAssignees(nil)["assignees"].([]string); v == nil {
		t.Fatalf("expected empty, non-nil assignees")
	}
	if v := SetTargetDate(nil)["targetDate"]; v != nil {
		t.Fatalf("expected nil target date; got %v", v)
	}
}
