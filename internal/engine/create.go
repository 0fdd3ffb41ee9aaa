package engine

import (
	"context"
	"strings"

	"teamboard/internal/cache"
	"teamboard/internal/logging"
	"teamboard/internal/model"
	"teamboard/internal/mutate"
	"teamboard/internal/scope"
)

func (e *Engine) requireUser() error {
	if e.user == "" {
		return scope.PreconditionError{Field: "user id"}
	}
	return nil
}

func (e *Engine) mutateOptions() mutate.Options {
	return mutate.Options{Strategy: e.strategy, Logger: logging.Component(e.log, "mutate"), Now: e.now}
}

// CreateWorkspace creates a workspace and the creator's owner membership. An empty slug is
// derived from the name; a slug already used by a listed workspace is rejected.
func (e *Engine) CreateWorkspace(ctx context.Context, name, slug string) (model.Workspace, error) {
	if err := e.requireUser(); err != nil {
		return model.Workspace{}, err
	}
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = model.Slugify(name)
	}
	for _, w := range e.Workspaces.Cache().Items() {
		if w.Slug == slug {
			return model.Workspace{}, scope.PreconditionError{Field: "slug", Reason: "is already taken"}
		}
	}
	ws := model.Workspace{Name: name, Slug: slug, CreatedBy: e.user}
	id, err := e.Workspaces.Create(ctx, ws)
	if err != nil {
		return model.Workspace{}, err
	}
	ws.ID = id

	members := mutate.New(e.store, cache.New[model.Member](), scope.MembersKey(id), e.mutateOptions())
	owner := model.Member{UserID: e.user, DisplayName: e.user, Role: model.RoleOwner}
	if _, err := members.Put(ctx, e.user, owner); err != nil {
		return ws, err
	}
	e.log.InfoContext(logging.WithFields(ctx, logging.Fields{WorkspaceID: id}), "workspace created", "slug", slug)
	if got, ok := e.Workspaces.Cache().Get(id); ok {
		ws = got
	}
	return ws, nil
}

// AddMember writes a membership into the active workspace.
func (e *Engine) AddMember(ctx context.Context, m model.Member) error {
	co, err := e.Members.Coordinator()
	if err != nil {
		return err
	}
	role, err := model.NormalizeRole(string(m.Role))
	if err != nil {
		return scope.PreconditionError{Field: "role", Reason: err.Error()}
	}
	m.Role = role
	_, err = co.Put(ctx, m.UserID, m)
	return err
}

// CreateProject creates a project in the active workspace.
func (e *Engine) CreateProject(ctx context.Context, p model.Project) (string, error) {
	sc := e.Scope()
	if sc.WorkspaceID == "" {
		return "", scope.PreconditionError{Field: "workspace id"}
	}
	p.WorkspaceID = sc.WorkspaceID
	if p.CreatedBy == "" {
		p.CreatedBy = e.user
	}
	if p.Status == "" {
		p.Status = model.ProjectPlanned
	}
	if p.Priority == "" {
		p.Priority = model.ProjectPriorityNone
	}
	if p.Resources == nil {
		p.Resources = []model.Resource{}
	}
	id, err := e.Projects.Create(ctx, p)
	if err != nil {
		return "", err
	}
	e.log.InfoContext(logging.WithFields(ctx, logging.Fields{WorkspaceID: sc.WorkspaceID, ProjectID: id}), "project created")
	return id, nil
}

// CreateTask creates a task in t.ProjectID, or in the selected project when it is empty.
func (e *Engine) CreateTask(ctx context.Context, t model.Task) (string, error) {
	sc := e.Scope()
	if t.ProjectID == "" {
		t.ProjectID = sc.ProjectID
	}
	if t.CreatedBy == "" {
		t.CreatedBy = e.user
	}
	if t.Status == "" {
		t.Status = model.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = model.TaskNoPriority
	}
	t.Assignees = model.NormalizeAssignees(t.Assignees)
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []model.Attachment{}
	}

	var (
		id  string
		err error
	)
	if t.ProjectID == sc.ProjectID && sc.ProjectID != "" {
		id, err = e.Tasks.Create(ctx, t)
	} else {
		// Outside the selected project the workspace-wide cache is the only one that shows it.
		co := mutate.New(e.store, e.WorkspaceTasks.Cache(), scope.TasksKey(sc.WorkspaceID, t.ProjectID), e.mutateOptions())
		id, err = co.Create(ctx, t)
	}
	if err != nil {
		return "", err
	}
	e.log.InfoContext(logging.WithFields(ctx, logging.Fields{WorkspaceID: sc.WorkspaceID, ProjectID: t.ProjectID, TaskID: id}), "task created")
	return id, nil
}

// CreateIssue creates an issue in the selected project.
func (e *Engine) CreateIssue(ctx context.Context, i model.Issue) (string, error) {
	sc := e.Scope()
	if i.ProjectID == "" {
		i.ProjectID = sc.ProjectID
	}
	if i.ProjectID != sc.ProjectID {
		return "", scope.PreconditionError{Field: "project id", Reason: "must be the selected project"}
	}
	if i.CreatedBy == "" {
		i.CreatedBy = e.user
	}
	if i.Status == "" {
		i.Status = model.IssueBacklog
	}
	if i.Priority == "" {
		i.Priority = model.IssuePriorityNone
	}
	if i.Attachments == nil {
		i.Attachments = []model.Attachment{}
	}
	return e.Issues.Create(ctx, i)
}

// PostProjectUpdate posts an update on the selected project.
func (e *Engine) PostProjectUpdate(ctx context.Context, u model.Update) (string, error) {
	if u.AuthorID == "" {
		u.AuthorID = e.user
	}
	return e.ProjectUpdates.Create(ctx, u)
}

// PostTaskUpdate posts an update on the selected task.
func (e *Engine) PostTaskUpdate(ctx context.Context, u model.Update) (string, error) {
	if u.AuthorID == "" {
		u.AuthorID = e.user
	}
	return e.TaskUpdates.Create(ctx, u)
}
