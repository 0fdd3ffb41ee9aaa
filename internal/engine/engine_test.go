package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamboard/internal/board"
	"teamboard/internal/docstore"
	"teamboard/internal/logging"
	"teamboard/internal/model"
	"teamboard/internal/mutate"
	"teamboard/internal/resolver"
	"teamboard/internal/scope"
)

func seed(t *testing.T, store *docstore.Memory, collection, id string, fields map[string]any) {
	t.Helper()
	fields["createdAt"] = docstore.ServerTimestamp
	if err := store.Set(context.Background(), collection, id, fields); err != nil {
		t.Fatalf("Set error: %v", err)
	}
}

func newEngine(t *testing.T) (*Engine, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	seed(t, store, "workspaces", "w1", map[string]any{"name": "Acme", "slug": "acme"})
	seed(t, store, "workspaces", "w2", map[string]any{"name": "Other", "slug": "other"})
	seed(t, store, "workspaces/w1/projects", "p1", map[string]any{"name": "Alpha", "status": "planned"})
	seed(t, store, "workspaces/w1/projects/p1/tasks", "t1", map[string]any{"title": "Task", "projectId": "p1", "status": "todo"})
	seed(t, store, "workspaces/w2/projects", "p9", map[string]any{"name": "Beta"})

	e, err := New(Options{Store: store, UserID: "u1", Logger: logging.Discard(), Strategy: mutate.Inline{}})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, store
}

func TestStartResolvesAndAttaches(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.Start("/acme/projects/p1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	st := e.Status()
	if st.State != resolver.Valid || st.Workspace == nil || st.Workspace.ID != "w1" {
		t.Fatalf("expected valid w1; got %+v", st)
	}
	if got := e.Projects.Cache().Len(); got != 1 {
		t.Fatalf("expected 1 project; got %d", got)
	}
	if sc := e.Scope(); sc.ProjectID != "p1" {
		t.Fatalf("expected p1 selected from location; got %+v", sc)
	}
	if got := e.Tasks.Cache().Len(); got != 1 {
		t.Fatalf("expected 1 task; got %d", got)
	}
	if got := e.WorkspaceTasks.Cache().Len(); got != 1 {
		t.Fatalf("expected 1 workspace task; got %d", got)
	}
	if !e.Manager().IsLive(scope.TasksKey("w1", "p1")) {
		t.Fatalf("expected live task subscription")
	}
}

func TestScopeSwitchResetsImmediately(t *testing.T) {
	e, store := newEngine(t)
	if err := e.Start("/acme/projects/p1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	var sawStale bool
	stop := e.Projects.Cache().Watch(func() {
		for _, p := range e.Projects.Cache().Items() {
			if p.ID == "p1" && e.Scope().WorkspaceID == "w2" {
				sawStale = true
			}
		}
	})
	defer stop()

	e.Navigate("/other")
	if sawStale {
		t.Fatalf("w1 projects were visible while w2 was active")
	}
	if sc := e.Scope(); sc.WorkspaceID != "w2" || sc.ProjectID != "" {
		t.Fatalf("expected w2 with no project; got %+v", sc)
	}
	if e.Tasks.Cache().Len() != 0 || !e.Tasks.Cache().Loading() {
		t.Fatalf("expected task cache reset")
	}
	if e.Manager().IsLive(scope.ProjectsKey("w1")) || e.Manager().IsLive(scope.TasksKey("w1", "p1")) {
		t.Fatalf("expected w1 subscriptions detached; live: %v", e.Manager().Live())
	}
	items := e.Projects.Cache().Items()
	if len(items) != 1 || items[0].ID != "p9" {
		t.Fatalf("expected only w2 projects; got %+v", items)
	}

	// A late write to w1 must not leak into the w2 cache.
	seed(t, store, "workspaces/w1/projects", "p2", map[string]any{"name": "Late"})
	if _, ok := e.Projects.Cache().Get("p2"); ok {
		t.Fatalf("expected late w1 project to be ignored")
	}
}

func TestUnknownWorkspaceRedirects(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.Start("/nope/projects/p1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	// The newest workspace is listed first.
	st := e.Status()
	if st.Redirected != "/other/projects/p1" || e.Scope().WorkspaceID != "w2" {
		t.Fatalf("expected redirect to other; got %+v", st)
	}
	if e.Location() != "/other/projects/p1" {
		t.Fatalf("expected location to round trip; got %q", e.Location())
	}
}

func TestSelectTaskAndProjectUpdates(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	if err := e.Start("/acme"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := e.SelectTask("t1"); err == nil {
		t.Fatalf("expected precondition without a project")
	}
	if err := e.SelectProject("p1"); err != nil {
		t.Fatalf("SelectProject error: %v", err)
	}
	if err := e.SelectTask("t1"); err != nil {
		t.Fatalf("SelectTask error: %v", err)
	}
	id, err := e.PostTaskUpdate(ctx, model.Update{Content: "halfway"})
	if err != nil {
		t.Fatalf("PostTaskUpdate error: %v", err)
	}
	doc, ok := store.Get("workspaces/w1/projects/p1/tasks/t1/updates", id)
	if !ok || doc["authorId"] != "u1" {
		t.Fatalf("expected update by u1; got %v", doc)
	}
	if e.TaskUpdates.Cache().Len() != 1 {
		t.Fatalf("expected 1 task update; got %d", e.TaskUpdates.Cache().Len())
	}

	if err := e.SelectProject(""); err != nil {
		t.Fatalf("SelectProject error: %v", err)
	}
	if _, err := e.PostProjectUpdate(ctx, model.Update{Content: "x"}); err == nil {
		t.Fatalf("expected precondition without a project")
	}
	var pe scope.PreconditionError
	if _, err := e.CreateIssue(ctx, model.Issue{Title: "bug"}); !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError; got %v", err)
	}
}

func TestCreateWorkspaceWritesOwner(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	if err := e.Start("/"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if _, err := e.CreateWorkspace(ctx, "Acme", ""); err == nil {
		t.Fatalf("expected duplicate slug to be rejected")
	}
	ws, err := e.CreateWorkspace(ctx, "New Team", "")
	if err != nil {
		t.Fatalf("CreateWorkspace error: %v", err)
	}
	if ws.Slug != "new-team" {
		t.Fatalf("expected slug new-team; got %q", ws.Slug)
	}
	doc, ok := store.Get("workspaces/"+ws.ID+"/members", "u1")
	if !ok || doc["role"] != "owner" {
		t.Fatalf("expected owner membership; got %v", doc)
	}
}

func TestBoardDropThroughEngine(t *testing.T) {
	e, store := newEngine(t)
	if err := e.Start("/acme/projects/p1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	b, err := board.FromCache(e.Tasks.Cache(), board.ByStatus, nil)
	if err != nil {
		t.Fatalf("FromCache error: %v", err)
	}
	from, _ := b.Column("todo")
	to, _ := b.Column("done")
	d, ok := b.PickUp(from, 0)
	if !ok {
		t.Fatalf("expected a card to pick up")
	}
	d.Hover(to, 0)
	if res := b.Drop(d, e.Tasks.Lookup, e.Tasks); res.Outcome != board.DropMoved {
		t.Fatalf("expected moved; got %q", res.Outcome)
	}
	doc, _ := store.Get("workspaces/w1/projects/p1/tasks", "t1")
	if doc["status"] != "done" {
		t.Fatalf("expected remote status done; got %v", doc["status"])
	}
	if tk, _ := e.Tasks.Cache().Get("t1"); tk.Status != model.TaskDone {
		t.Fatalf("expected cached status done; got %q", tk.Status)
	}
}

func TestCreateTaskOutsideSelectedProject(t *testing.T) {
	e, store := newEngine(t)
	if err := e.Start("/acme"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	id, err := e.CreateTask(context.Background(), model.Task{Title: "Elsewhere", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}
	if _, ok := store.Get("workspaces/w1/projects/p1/tasks", id); !ok {
		t.Fatalf("expected task document")
	}
	if _, ok := e.WorkspaceTasks.Cache().Get(id); !ok {
		t.Fatalf("expected task in workspace-wide cache")
	}
	if _, err := e.CreateTask(context.Background(), model.Task{Title: "none"}); err == nil {
		t.Fatalf("expected precondition without a project")
	}
}

func TestSettleWaitsForNestedScope(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.Start("/acme/projects/p1/tasks/t1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Settle(ctx); err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if sc := e.Scope(); sc.ProjectID != "p1" || sc.TaskID != "t1" {
		t.Fatalf("expected p1/t1; got %+v", sc)
	}
	if e.TaskUpdates.Cache().Loading() {
		t.Fatalf("expected task updates loaded")
	}
}
