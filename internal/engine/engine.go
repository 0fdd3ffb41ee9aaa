package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"teamboard/internal/docstore"
	"teamboard/internal/logging"
	"teamboard/internal/model"
	"teamboard/internal/mutate"
	"teamboard/internal/resolver"
	"teamboard/internal/scope"
	"teamboard/internal/subscribe"
)

type Options struct {
	Store docstore.Store
	// UserID is the authenticated user; it becomes createdBy/authorId and the workspace owner.
	UserID string
	Logger *slog.Logger
	// Strategy defaults to a shared mutate.FireAndForget.
	Strategy        mutate.WriteStrategy
	OnMutationError func(*mutate.MutationError)
	Now             func() time.Time
}

// Scope is the current selection.
type Scope struct {
	WorkspaceID string `json:"workspaceId,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	TaskID      string `json:"taskId,omitempty"`
}

// Engine is one session: the subscriptions, caches and coordinators of the scope the user is
// looking at. Construct one per session; nothing is global. Every scope transition runs through
// the resolver, which serializes them.
type Engine struct {
	store    docstore.Store
	mgr      *subscribe.Manager
	resolver *resolver.Resolver
	log      *slog.Logger
	user     string
	strategy mutate.WriteStrategy
	now      func() time.Time

	Workspaces     *Collection[model.Workspace]
	Members        *Collection[model.Member]
	Projects       *Collection[model.Project]
	WorkspaceTasks *Collection[model.Task]
	Tasks          *Collection[model.Task]
	Issues         *Collection[model.Issue]
	ProjectUpdates *Collection[model.Update]
	TaskUpdates    *Collection[model.Update]

	mu      sync.Mutex
	scope   Scope
	lastErr error

	stopWatch func()
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	log := logging.Component(opts.Logger, "engine")
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = &mutate.FireAndForget{Log: log, OnError: opts.OnMutationError}
	}
	e := &Engine{
		store:    opts.Store,
		mgr:      subscribe.NewManager(opts.Store, logging.Component(opts.Logger, "subscribe")),
		log:      log,
		user:     strings.TrimSpace(opts.UserID),
		strategy: strategy,
		now:      now,
	}
	mopts := mutate.Options{Strategy: strategy, Logger: logging.Component(opts.Logger, "mutate"), Now: now}
	e.Workspaces = newCollection[model.Workspace]("workspaces", e.store, e.mgr, mopts, log)
	e.Members = newCollection[model.Member]("members", e.store, e.mgr, mopts, log)
	e.Projects = newCollection[model.Project]("projects", e.store, e.mgr, mopts, log)
	e.WorkspaceTasks = newCollection[model.Task]("workspace tasks", e.store, e.mgr, mopts, log)
	e.Tasks = newCollection[model.Task]("tasks", e.store, e.mgr, mopts, log)
	e.Issues = newCollection[model.Issue]("issues", e.store, e.mgr, mopts, log)
	e.ProjectUpdates = newCollection[model.Update]("project updates", e.store, e.mgr, mopts, log)
	e.TaskUpdates = newCollection[model.Update]("task updates", e.store, e.mgr, mopts, log)

	e.resolver = resolver.New(resolver.Hooks{
		Teardown: func(string) { e.teardownWorkspace() },
		Activate: func(ws model.Workspace, _ string) { e.activateWorkspace(ws) },
		Changed:  e.onResolved,
	}, logging.Component(opts.Logger, "resolver"))
	return e, nil
}

func (e *Engine) UserID() string { return e.user }

func (e *Engine) Store() docstore.Store { return e.store }

func (e *Engine) Manager() *subscribe.Manager { return e.mgr }

func (e *Engine) Status() resolver.Status { return e.resolver.Status() }

func (e *Engine) Scope() Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scope
}

// Start subscribes to the workspace list and feeds every loaded list to the resolver. location
// is the initial navigation location.
func (e *Engine) Start(location string) error {
	e.resolver.SetLocation(location)
	ws := e.Workspaces.Cache()
	e.stopWatch = ws.Watch(func() {
		if ws.Loading() {
			return
		}
		e.resolver.SetWorkspaces(ws.Items())
	})
	return e.Workspaces.attach(scope.WorkspacesKey())
}

// Navigate moves to a location such as "/acme/projects/p1/tasks/t1".
func (e *Engine) Navigate(location string) resolver.Status {
	return e.resolver.SetLocation(location)
}

// Location renders the current selection as a navigation location.
func (e *Engine) Location() string {
	st := e.resolver.Status()
	if st.Workspace == nil {
		return st.Location
	}
	sc := e.Scope()
	var segs []string
	if sc.ProjectID != "" {
		segs = append(segs, "projects", sc.ProjectID)
		if sc.TaskID != "" {
			segs = append(segs, "tasks", sc.TaskID)
		}
	}
	return resolver.Path(*st.Workspace, segs...)
}

func (e *Engine) activateWorkspace(ws model.Workspace) {
	e.mu.Lock()
	e.scope = Scope{WorkspaceID: ws.ID}
	e.mu.Unlock()
	ctx := logging.WithFields(context.Background(), logging.Fields{WorkspaceID: ws.ID})
	e.log.InfoContext(ctx, "activating workspace", "slug", ws.Slug)

	for _, attach := range []func() error{
		func() error { return e.Members.attach(scope.MembersKey(ws.ID)) },
		func() error { return e.Projects.attach(scope.ProjectsKey(ws.ID)) },
		func() error { return e.WorkspaceTasks.attach(scope.WorkspaceTasksKey(ws.ID)) },
	} {
		if err := attach(); err != nil {
			e.log.WarnContext(ctx, "workspace attach failed", "err", err)
		}
	}
}

// teardownWorkspace detaches and resets everything below the workspace list.
func (e *Engine) teardownWorkspace() {
	e.teardownProject()
	e.WorkspaceTasks.teardown()
	e.Projects.teardown()
	e.Members.teardown()
	e.mu.Lock()
	prev := e.scope.WorkspaceID
	e.scope = Scope{}
	e.mu.Unlock()
	e.log.Info("workspace torn down", "workspace_id", prev)
}

func (e *Engine) teardownProject() {
	e.TaskUpdates.teardown()
	e.ProjectUpdates.teardown()
	e.Issues.teardown()
	e.Tasks.teardown()
	e.mu.Lock()
	e.scope.ProjectID = ""
	e.scope.TaskID = ""
	e.mu.Unlock()
}

// onResolved follows the project/task part of the location inside the active workspace. It
// runs inside the resolver's serialized drain, like every other scope transition.
func (e *Engine) onResolved(st resolver.Status) {
	if st.State != resolver.Valid || st.Workspace == nil {
		return
	}
	segs := resolver.SubPath(st.Location)
	if len(segs) > 0 && segs[0] != "projects" {
		// Other views (e.g. "/tasks") keep whatever project is selected.
		return
	}
	project, task := "", ""
	if len(segs) >= 2 {
		project = segs[1]
		if len(segs) >= 4 && segs[2] == "tasks" {
			task = segs[3]
		}
	}
	err := e.applyProject(project)
	if err == nil && project != "" {
		err = e.applyTask(task)
	}
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	if err != nil {
		e.log.Warn("scope attach failed", "location", st.Location, "err", err)
	}
}

func (e *Engine) applyProject(projectID string) error {
	sc := e.Scope()
	if sc.ProjectID == projectID {
		return nil
	}
	e.teardownProject()
	if projectID == "" {
		return nil
	}
	e.mu.Lock()
	e.scope.ProjectID = projectID
	e.mu.Unlock()

	ws := sc.WorkspaceID
	ctx := logging.WithFields(context.Background(), logging.Fields{WorkspaceID: ws, ProjectID: projectID})
	e.log.DebugContext(ctx, "selecting project")
	return errors.Join(
		e.Tasks.attach(scope.TasksKey(ws, projectID)),
		e.Issues.attach(scope.IssuesKey(ws, projectID)),
		e.ProjectUpdates.attach(scope.ProjectUpdatesKey(ws, projectID)),
	)
}

func (e *Engine) applyTask(taskID string) error {
	sc := e.Scope()
	if sc.TaskID == taskID {
		return nil
	}
	e.TaskUpdates.teardown()
	e.mu.Lock()
	e.scope.TaskID = taskID
	e.mu.Unlock()
	if taskID == "" {
		return nil
	}
	return e.TaskUpdates.attach(scope.TaskUpdatesKey(sc.WorkspaceID, sc.ProjectID, taskID))
}

// SelectProject navigates to the project, attaching its tasks, issues and updates. "" clears
// the selection; selecting the current project is a no-op.
func (e *Engine) SelectProject(projectID string) error {
	ws, ok := e.Workspace()
	if !ok {
		return scope.PreconditionError{Field: "workspace id"}
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		e.Navigate(resolver.Path(ws))
	} else {
		e.Navigate(resolver.Path(ws, "projects", projectID))
	}
	return e.LastError()
}

// SelectTask navigates to a task of the selected project, attaching its updates.
func (e *Engine) SelectTask(taskID string) error {
	ws, ok := e.Workspace()
	if !ok {
		return scope.PreconditionError{Field: "workspace id"}
	}
	sc := e.Scope()
	if sc.ProjectID == "" {
		return scope.PreconditionError{Field: "project id"}
	}
	e.Navigate(resolver.Path(ws, "projects", sc.ProjectID, "tasks", strings.TrimSpace(taskID)))
	return e.LastError()
}

// LastError is the attach error of the most recent scope transition, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Flush waits for pending fire-and-forget writes when the strategy supports it.
func (e *Engine) Flush(ctx context.Context) error {
	if f, ok := e.strategy.(interface{ Flush(context.Context) error }); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Close flushes pending writes and detaches every subscription. The store is not closed.
func (e *Engine) Close(ctx context.Context) error {
	if e.stopWatch != nil {
		e.stopWatch()
	}
	err := e.Flush(ctx)
	e.mgr.DetachAll()
	return err
}

// WaitLoaded blocks until every attached collection has received its first snapshot or error.
func (e *Engine) WaitLoaded(ctx context.Context) error {
	waits := []func(context.Context) error{
		bound(e.Workspaces), bound(e.Members), bound(e.Projects), bound(e.WorkspaceTasks),
		bound(e.Tasks), bound(e.Issues), bound(e.ProjectUpdates), bound(e.TaskUpdates),
	}
	for _, w := range waits {
		if err := w(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Settle waits until the resolver has finished with the current location and every collection
// it attached has loaded. One-shot commands call it before reading caches.
func (e *Engine) Settle(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := e.WaitLoaded(ctx); err != nil {
			return err
		}
		if e.settled() {
			// A workspace or project that activated meanwhile may have attached more.
			if err := e.WaitLoaded(ctx); err != nil {
				return err
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (e *Engine) settled() bool {
	st := e.resolver.Status()
	switch st.State {
	case resolver.Invalid:
		return true
	case resolver.Valid:
	default:
		return false
	}
	want := Scope{WorkspaceID: st.Workspace.ID}
	segs := resolver.SubPath(st.Location)
	if len(segs) > 0 && segs[0] != "projects" {
		return e.Scope().WorkspaceID == want.WorkspaceID
	}
	if len(segs) >= 2 {
		want.ProjectID = segs[1]
		if len(segs) >= 4 && segs[2] == "tasks" {
			want.TaskID = segs[3]
		}
	}
	if e.LastError() != nil {
		// A bad project or task id never attaches; the error is the outcome.
		return e.Scope().WorkspaceID == want.WorkspaceID
	}
	return e.Scope() == want
}

func bound[T model.Entity](c *Collection[T]) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, ok := c.Key(); !ok {
			return nil
		}
		return c.Cache().WaitLoaded(ctx)
	}
}

// Workspace returns the active workspace record.
func (e *Engine) Workspace() (model.Workspace, bool) {
	st := e.resolver.Status()
	if st.Workspace == nil {
		return model.Workspace{}, false
	}
	return *st.Workspace, true
}

// MemberList returns the active workspace's members in cache order.
func (e *Engine) MemberList() []model.Member {
	return e.Members.Cache().Items()
}

func watchAll(fn func(), caches ...interface{ Watch(func()) func() }) func() {
	stops := make([]func(), 0, len(caches))
	for _, c := range caches {
		stops = append(stops, c.Watch(fn))
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}

// Watch runs fn after any cache of the session changes.
func (e *Engine) Watch(fn func(kind model.Kind)) func() {
	wrap := func(k model.Kind) func() { return func() { fn(k) } }
	stops := []func(){
		e.Workspaces.Cache().Watch(wrap(model.KindWorkspace)),
		e.Members.Cache().Watch(wrap(model.KindMember)),
		e.Projects.Cache().Watch(wrap(model.KindProject)),
		watchAll(wrap(model.KindTask), e.Tasks.Cache(), e.WorkspaceTasks.Cache()),
		e.Issues.Cache().Watch(wrap(model.KindIssue)),
		watchAll(wrap(model.KindUpdate), e.ProjectUpdates.Cache(), e.TaskUpdates.Cache()),
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}

// View is the kind-erased surface of a Collection.
type View interface {
	Name() string
	Key() (scope.Key, bool)
	Has(id string) bool
	Mutate(id string, patch model.Patch)
	Lookup(id string) (model.Groupable, bool)
	Snapshot() Snapshot
	Watch(fn func()) func()
}

func (c *Collection[T]) Watch(fn func()) func() { return c.cache.Watch(fn) }

// Views lists every collection of the session.
func (e *Engine) Views() []View {
	return []View{e.Workspaces, e.Members, e.Projects, e.WorkspaceTasks, e.Tasks, e.Issues, e.ProjectUpdates, e.TaskUpdates}
}

// ViewFor resolves an API kind name ("projects", "task", ...) to its collection. Tasks resolve
// to the selected project's tasks, or the workspace-wide list when no project is selected.
func (e *Engine) ViewFor(kind string) (View, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "workspace", "workspaces":
		return e.Workspaces, true
	case "member", "members":
		return e.Members, true
	case "project", "projects":
		return e.Projects, true
	case "task", "tasks":
		if _, ok := e.Tasks.Key(); ok {
			return e.Tasks, true
		}
		return e.WorkspaceTasks, true
	case "workspace-tasks", "all-tasks":
		return e.WorkspaceTasks, true
	case "issue", "issues":
		return e.Issues, true
	case "update", "updates", "project-updates":
		return e.ProjectUpdates, true
	case "task-updates":
		return e.TaskUpdates, true
	}
	return nil, false
}
