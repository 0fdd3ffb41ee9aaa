package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"teamboard/internal/config"
	"teamboard/internal/model"
	"teamboard/internal/mutate"
	"teamboard/internal/publish"
	"teamboard/internal/resolver"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Project commands",
	}
	cmd.AddCommand(newProjectsListCmd(app))
	cmd.AddCommand(newProjectsCreateCmd(app))
	cmd.AddCommand(newProjectsSetCmd(app))
	cmd.AddCommand(newProjectsRmCmd(app))
	cmd.AddCommand(newProjectsAddResourceCmd(app))
	cmd.AddCommand(newProjectsUseCmd(app))
	cmd.AddCommand(newProjectsExportCmd(app))
	return cmd
}

func newProjectsListCmd(app *App) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects in the current workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			var want string
			if strings.TrimSpace(status) != "" {
				v, err := parseEnum("status", model.ProjectStatuses, status)
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
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			out := make([]model.Project, 0)
			for _, p := range s.engine.Projects.Cache().Items() {
				if want != "" && string(p.Status) != want {
					continue
				}
				out = append(out, p)
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only projects with this status")
	return cmd
}

type projectFlags struct {
	name        string
	summary     string
	description string
	status      string
	priority    string
	lead        string
	startDate   string
	targetDate  string
}

func (f *projectFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Project name")
	cmd.Flags().StringVar(&f.summary, "summary", "", "One-line summary")
	cmd.Flags().StringVar(&f.description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&f.status, "status", "", "Status (planned|in-progress|completed|cancelled)")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Priority (none|urgent|high|medium|low)")
	cmd.Flags().StringVar(&f.lead, "lead", "", "Lead member id (empty clears)")
	cmd.Flags().StringVar(&f.startDate, "start-date", "", "Start date (YYYY-MM-DD; empty clears)")
	cmd.Flags().StringVar(&f.targetDate, "target-date", "", "Target date (YYYY-MM-DD; empty clears)")
}

// patch builds a patch from the flags the user actually passed.
func (f *projectFlags) patch(cmd *cobra.Command) (model.Patch, error) {
	p := model.Patch{}
	changed := cmd.Flags().Changed
	merge := func(q model.Patch) {
		for k, v := range q {
			p[k] = v
		}
	}
	if changed("name") {
		merge(mutate.SetName(f.name))
	}
	if changed("summary") {
		merge(mutate.SetSummary(f.summary))
	}
	if changed("description") {
		merge(mutate.SetDescription(f.description))
	}
	if changed("status") {
		v, err := parseEnum("status", model.ProjectStatuses, f.status)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetStatus(v))
	}
	if changed("priority") {
		v, err := parseEnum("priority", model.ProjectPriorities, f.priority)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetPriority(v))
	}
	if changed("lead") {
		merge(mutate.SetLead(f.lead))
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

func newProjectsCreateCmd(app *App) *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := model.Project{
				Name:        strings.TrimSpace(f.name),
				Summary:     f.summary,
				Description: f.description,
				Lead:        optionalString(f.lead),
			}
			if f.status != "" {
				v, err := parseEnum("status", model.ProjectStatuses, f.status)
				if err != nil {
					return writeErr(cmd, err)
				}
				p.Status = model.ProjectStatus(v)
			}
			if f.priority != "" {
				v, err := parseEnum("priority", model.ProjectPriorities, f.priority)
				if err != nil {
					return writeErr(cmd, err)
				}
				p.Priority = model.ProjectPriority(v)
			}
			var err error
			if p.StartDate, err = parseDate("start-date", f.startDate); err != nil {
				return writeErr(cmd, err)
			}
			if p.TargetDate, err = parseDate("target-date", f.targetDate); err != nil {
				return writeErr(cmd, err)
			}

			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			id, err := s.engine.CreateProject(cmd.Context(), p)
			if err != nil {
				return writeErr(cmd, err)
			}
			if got, ok := s.engine.Projects.Cache().Get(id); ok {
				p = got
			} else {
				p.ID = id
			}
			return writeOut(cmd, app, p)
		},
	}
	f.bind(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectsSetCmd(app *App) *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update project fields",
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
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			if !s.engine.Projects.Has(id) {
				return writeErr(cmd, errNotFound("project", id))
			}
			s.engine.Projects.Mutate(id, patch)
			if err := s.writeError(); err != nil {
				return writeErr(cmd, err)
			}
			p, _ := s.engine.Projects.Cache().Get(id)
			return writeOut(cmd, app, p)
		},
	}
	f.bind(cmd)
	return cmd
}

func newProjectsRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			if !s.engine.Projects.Has(id) {
				return writeErr(cmd, errNotFound("project", id))
			}
			if err := s.engine.Projects.Remove(cmd.Context(), id); err != nil {
				return writeErr(cmd, err)
			}
			if s.app.file != nil && strings.Contains(s.app.file.Location, "/projects/"+id) {
				// Forget a remembered location that points into the deleted project.
				if ws, ok := s.engine.Workspace(); ok {
					_ = config.Update(func(f *config.File) { f.Location = resolver.Path(ws) })
				}
			}
			return writeOut(cmd, app, map[string]any{"id": id, "deleted": true})
		},
	}
}

func newProjectsAddResourceCmd(app *App) *cobra.Command {
	var title, url string
	cmd := &cobra.Command{
		Use:   "add-resource <id>",
		Short: "Attach a link to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			co, err := s.engine.Projects.Coordinator()
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(title) == "" {
				title = url
			}
			r, err := mutate.AddResource(co, id, model.Resource{Title: strings.TrimSpace(title), URL: strings.TrimSpace(url), AddedBy: app.cfg.UserID})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.writeError(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, r)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Link title (default: the URL)")
	cmd.Flags().StringVar(&url, "url", "", "Link URL")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newProjectsUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Remember a project as the current location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.selectProject(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			loc := s.engine.Location()
			if err := config.Update(func(f *config.File) { f.Location = loc }); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"location": loc, "scope": s.engine.Scope()})
		},
	}
}

func newProjectsExportCmd(app *App) *cobra.Command {
	var (
		to        string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a project, its tasks, issues and updates as markdown files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.open(ctx, openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.selectProject(ctx, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			e := s.engine
			p, _ := e.Projects.Cache().Get(e.Scope().ProjectID)
			page := publish.ProjectPage{
				Project: p,
				Tasks:   e.Tasks.Cache().Items(),
				Issues:  e.Issues.Cache().Items(),
				Updates: e.ProjectUpdates.Cache().Items(),
				Members: e.MemberList(),
			}
			updates := make(map[string][]model.Update, len(page.Tasks))
			for _, t := range page.Tasks {
				if err := e.SelectTask(t.ID); err != nil {
					return writeErr(cmd, err)
				}
				if err := s.settle(ctx); err != nil {
					return writeErr(cmd, err)
				}
				updates[t.ID] = e.TaskUpdates.Cache().Items()
			}
			res, err := publish.WriteProject(page, updates, to, publish.WriteOptions{Overwrite: overwrite})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, res)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
