package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"teamboard/internal/model"
	"teamboard/internal/mutate"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Task commands",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksSetCmd(app))
	cmd.AddCommand(newTasksRmCmd(app))
	return cmd
}

// selectTaskProject selects the project that owns taskID. Without --project the workspace-wide
// task list locates it.
func (s *session) selectTaskProject(ctx context.Context, projectID, taskID string) error {
	if strings.TrimSpace(projectID) == "" {
		if err := s.requireWorkspace(); err != nil {
			return err
		}
		if t, ok := s.engine.WorkspaceTasks.Cache().Get(taskID); ok {
			projectID = t.ProjectID
		}
	}
	if err := s.selectProject(ctx, projectID); err != nil {
		return err
	}
	if !s.engine.Tasks.Has(taskID) {
		return errNotFound("task", taskID)
	}
	return nil
}

func newTasksListCmd(app *App) *cobra.Command {
	var (
		project  string
		all      bool
		status   string
		assignee string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks of a project, or of the whole workspace with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			var want string
			if strings.TrimSpace(status) != "" {
				v, err := parseEnum("status", model.TaskStatuses, status)
				if err != nil {
					return writeErr(cmd, err)
				}
				want = v
			}
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			var items []model.Task
			if all {
				if err := s.requireWorkspace(); err != nil {
					return writeErr(cmd, err)
				}
				items = s.engine.WorkspaceTasks.Cache().Items()
			} else {
				if err := s.selectProject(cmd.Context(), project); err != nil {
					return writeErr(cmd, err)
				}
				items = s.engine.Tasks.Cache().Items()
			}
			out := make([]model.Task, 0, len(items))
			for _, t := range items {
				if want != "" && string(t.Status) != want {
					continue
				}
				if assignee != "" && !containsID(t.Assignees, assignee) {
					continue
				}
				out = append(out, t)
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: the remembered project)")
	cmd.Flags().BoolVar(&all, "all", false, "List tasks across every project of the workspace")
	cmd.Flags().StringVar(&status, "status", "", "Only tasks with this status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Only tasks assigned to this member")
	return cmd
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type taskFlags struct {
	title       string
	summary     string
	description string
	status      string
	priority    string
	assignees   []string
	startDate   string
	targetDate  string
}

func (f *taskFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Task title")
	cmd.Flags().StringVar(&f.summary, "summary", "", "One-line summary")
	cmd.Flags().StringVar(&f.description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&f.status, "status", "", "Status (backlog|todo|in-progress|in-review|done|cancelled)")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Priority (no-priority|urgent|high|medium|low)")
	cmd.Flags().StringSliceVar(&f.assignees, "assignee", nil, "Assignee member id (repeatable; an empty value clears)")
	cmd.Flags().StringVar(&f.startDate, "start-date", "", "Start date (YYYY-MM-DD; empty clears)")
	cmd.Flags().StringVar(&f.targetDate, "target-date", "", "Target date (YYYY-MM-DD; empty clears)")
}

func (f *taskFlags) patch(cmd *cobra.Command) (model.Patch, error) {
	p := model.Patch{}
	changed := cmd.Flags().Changed
	merge := func(q model.Patch) {
		for k, v := range q {
			p[k] = v
		}
	}
	if changed("title") {
		merge(mutate.SetTitle(f.title))
	}
	if changed("summary") {
		merge(mutate.SetSummary(f.summary))
	}
	if changed("description") {
		merge(mutate.SetDescription(f.description))
	}
	if changed("status") {
		v, err := parseEnum("status", model.TaskStatuses, f.status)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetStatus(v))
	}
	if changed("priority") {
		v, err := parseEnum("priority", model.TaskPriorities, f.priority)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetPriority(v))
	}
	if changed("assignee") {
		merge(mutate.SetAssignees(f.assignees))
	}
	if changed("start-date") {
		t, err := parseDate("start-date", f.startDate)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetStartDate(t))
	}
	if changed("target-date") {
		t, err := parseDate("target-date", f.targetDate)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetTargetDate(t))
	}
	return p, nil
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var (
		f       taskFlags
		project string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := model.Task{
				Title:       strings.TrimSpace(f.title),
				Summary:     f.summary,
				Description: f.description,
				Assignees:   f.assignees,
			}
			if f.status != "" {
				v, err := parseEnum("status", model.TaskStatuses, f.status)
				if err != nil {
					return writeErr(cmd, err)
				}
				t.Status = model.TaskStatus(v)
			}
			if f.priority != "" {
				v, err := parseEnum("priority", model.TaskPriorities, f.priority)
				if err != nil {
					return writeErr(cmd, err)
				}
				t.Priority = model.TaskPriority(v)
			}
			var err error
			if t.StartDate, err = parseDate("start-date", f.startDate); err != nil {
				return writeErr(cmd, err)
			}
			if t.TargetDate, err = parseDate("target-date", f.targetDate); err != nil {
				return writeErr(cmd, err)
			}

			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.selectProject(cmd.Context(), project); err != nil {
				return writeErr(cmd, err)
			}
			id, err := s.engine.CreateTask(cmd.Context(), t)
			if err != nil {
				return writeErr(cmd, err)
			}
			if got, ok := s.engine.Tasks.Cache().Get(id); ok {
				t = got
			} else {
				t.ID = id
			}
			return writeOut(cmd, app, t)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: the remembered project)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTasksSetCmd(app *App) *cobra.Command {
	var (
		f       taskFlags
		project string
	)
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			patch, err := f.patch(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(patch) == 0 {
				return writeErr(cmd, errNothingToSet)
			}
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.selectTaskProject(cmd.Context(), project, id); err != nil {
				return writeErr(cmd, err)
			}
			s.engine.Tasks.Mutate(id, patch)
			if err := s.writeError(); err != nil {
				return writeErr(cmd, err)
			}
			t, _ := s.engine.Tasks.Cache().Get(id)
			return writeOut(cmd, app, t)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: looked up from the task)")
	return cmd
}

func newTasksRmCmd(app *App) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.selectTaskProject(cmd.Context(), project, id); err != nil {
				return writeErr(cmd, err)
			}
			if err := s.engine.Tasks.Remove(cmd.Context(), id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"id": id, "deleted": true})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: looked up from the task)")
	return cmd
}
