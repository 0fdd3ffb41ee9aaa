package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"teamboard/internal/model"
)

func newUpdatesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "updates",
		Short: "Status updates on projects and tasks",
	}
	cmd.AddCommand(newUpdatesListCmd(app))
	cmd.AddCommand(newUpdatesPostCmd(app))
	return cmd
}

// selectUpdateParent selects the project, and the task when one is given.
func (s *session) selectUpdateParent(ctx context.Context, project, task string) error {
	task = strings.TrimSpace(task)
	if task == "" {
		return s.selectProject(ctx, project)
	}
	if err := s.selectTaskProject(ctx, project, task); err != nil {
		return err
	}
	if err := s.engine.SelectTask(task); err != nil {
		return err
	}
	return s.settle(ctx)
}

func newUpdatesListCmd(app *App) *cobra.Command {
	var project, task string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List updates of a project, or of a task with --task",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.selectUpdateParent(cmd.Context(), project, task); err != nil {
				return writeErr(cmd, err)
			}
			var out []model.Update
			if strings.TrimSpace(task) != "" {
				out = s.engine.TaskUpdates.Cache().Items()
			} else {
				out = s.engine.ProjectUpdates.Cache().Items()
			}
			if out == nil {
				out = []model.Update{}
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: the remembered project)")
	cmd.Flags().StringVar(&task, "task", "", "Task id")
	return cmd
}

func newUpdatesPostCmd(app *App) *cobra.Command {
	var (
		project string
		task    string
		content string
		status  string
		links   []string
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post an update on a project, or on a task with --task",
		RunE: func(cmd *cobra.Command, args []string) error {
			u := model.Update{Content: strings.TrimSpace(content), Status: strings.TrimSpace(status)}
			for _, l := range links {
				if l = strings.TrimSpace(l); l != "" {
					u.Links = append(u.Links, model.Link{URL: l})
				}
			}
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.selectUpdateParent(cmd.Context(), project, task); err != nil {
				return writeErr(cmd, err)
			}
			post := s.engine.PostProjectUpdate
			get := s.engine.ProjectUpdates.Cache().Get
			if strings.TrimSpace(task) != "" {
				post = s.engine.PostTaskUpdate
				get = s.engine.TaskUpdates.Cache().Get
			}
			id, err := post(cmd.Context(), u)
			if err != nil {
				return writeErr(cmd, err)
			}
			if got, ok := get(id); ok {
				u = got
			} else {
				u.ID = id
			}
			return writeOut(cmd, app, u)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project id (default: the remembered project)")
	cmd.Flags().StringVar(&task, "task", "", "Task id")
	cmd.Flags().StringVar(&content, "content", "", "Update text (markdown)")
	cmd.Flags().StringVar(&status, "status", "", "Health label such as on-track or at-risk")
	cmd.Flags().StringSliceVar(&links, "link", nil, "Related URL (repeatable)")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}
