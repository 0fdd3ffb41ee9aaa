package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"teamboard/internal/model"
	"teamboard/internal/mutate"
)

func newIssuesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "issues",
		Aliases: []string{"issue", "i"},
		Short:   "Issue commands",
	}
	cmd.AddCommand(newIssuesListCmd(app))
	cmd.AddCommand(newIssuesCreateCmd(app))
	cmd.AddCommand(newIssuesSetCmd(app))
	return cmd
}

func newIssuesListCmd(app *App) *cobra.Command {
	var project, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			var want string
			if strings.TrimSpace(status) != "" {
				v, err := parseEnum("status", model.IssueStatuses, status)
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
			if err := s.selectProject(cmd.Context(), project); err != nil {
				return writeErr(cmd, err)
			}
			out := make([]model.Issue, 0)
			for _, i := range s.engine.Issues.Cache().Items() {
				if want == "" || string(i.Status) == want {
					out = append(out, i)
				}
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: the remembered project)")
	cmd.Flags().StringVar(&status, "status", "", "Only issues with this status")
	return cmd
}

type issueFlags struct {
	title       string
	summary     string
	description string
	status      string
	priority    string
	assignee    string
	targetDate  string
}

func (f *issueFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Issue title")
	cmd.Flags().StringVar(&f.summary, "summary", "", "One-line summary")
	cmd.Flags().StringVar(&f.description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&f.status, "status", "", "Status (backlog|todo|in-progress|done|cancelled)")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Priority (none|urgent|high|medium|low)")
	cmd.Flags().StringVar(&f.assignee, "assignee", "", "Assignee member id (empty clears)")
	cmd.Flags().StringVar(&f.targetDate, "target-date", "", "Target date (YYYY-MM-DD; empty clears)")
}

func (f *issueFlags) patch(cmd *cobra.Command) (model.Patch, error) {
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
		v, err := parseEnum("status", model.IssueStatuses, f.status)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetStatus(v))
	}
	if changed("priority") {
		v, err := parseEnum("priority", model.IssuePriorities, f.priority)
		if err != nil {
			return nil, err
		}
		merge(mutate.SetPriority(v))
	}
	if changed("assignee") {
		merge(mutate.SetAssignee(f.assignee))
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

func newIssuesCreateCmd(app *App) *cobra.Command {
	var (
		f       issueFlags
		project string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Report an issue on a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			i := model.Issue{
				Title:       strings.TrimSpace(f.title),
				Summary:     f.summary,
				Description: f.description,
				AssigneeID:  optionalString(f.assignee),
			}
			if f.status != "" {
				v, err := parseEnum("status", model.IssueStatuses, f.status)
				if err != nil {
					return writeErr(cmd, err)
				}
				i.Status = model.IssueStatus(v)
			}
			if f.priority != "" {
				v, err := parseEnum("priority", model.IssuePriorities, f.priority)
				if err != nil {
					return writeErr(cmd, err)
				}
				i.Priority = model.IssuePriority(v)
			}
			var err error
			if i.TargetDate, err = parseDate("target-date", f.targetDate); err != nil {
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
			id, err := s.engine.CreateIssue(cmd.Context(), i)
			if err != nil {
				return writeErr(cmd, err)
			}
			if got, ok := s.engine.Issues.Cache().Get(id); ok {
				i = got
			} else {
				i.ID = id
			}
			return writeOut(cmd, app, i)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: the remembered project)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newIssuesSetCmd(app *App) *cobra.Command {
	var (
		f       issueFlags
		project string
	)
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update issue fields",
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
			if err := s.selectProject(cmd.Context(), project); err != nil {
				return writeErr(cmd, err)
			}
			if !s.engine.Issues.Has(id) {
				return writeErr(cmd, errNotFound("issue", id))
			}
			s.engine.Issues.Mutate(id, patch)
			if err := s.writeError(); err != nil {
				return writeErr(cmd, err)
			}
			i, _ := s.engine.Issues.Cache().Get(id)
			return writeOut(cmd, app, i)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: the remembered project)")
	return cmd
}
