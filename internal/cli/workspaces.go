package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"teamboard/internal/config"
	"teamboard/internal/model"
	"teamboard/internal/resolver"
)

func newWorkspacesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"workspace", "ws"},
		Short:   "Workspace commands",
	}
	cmd.AddCommand(newWorkspacesListCmd(app))
	cmd.AddCommand(newWorkspacesCreateCmd(app))
	cmd.AddCommand(newWorkspacesUseCmd(app))
	return cmd
}

func newWorkspacesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			return writeOut(cmd, app, s.engine.Workspaces.Cache().Items())
		},
	}
}

func newWorkspacesCreateCmd(app *App) *cobra.Command {
	var (
		name string
		slug string
		use  bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workspace owned by the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			ws, err := s.engine.CreateWorkspace(cmd.Context(), name, slug)
			if err != nil {
				return writeErr(cmd, err)
			}
			if use {
				if err := config.Update(func(f *config.File) {
					f.Location = resolver.Path(ws)
					if f.UserID == "" {
						f.UserID = app.cfg.UserID
					}
				}); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, ws)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Workspace name")
	cmd.Flags().StringVar(&slug, "slug", "", "URL slug (default: derived from the name)")
	cmd.Flags().BoolVar(&use, "use", false, "Make it the current workspace")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newWorkspacesUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <slug-or-id>",
		Short: "Remember a workspace as the current location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Workspace = strings.TrimSpace(args[0])
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			ws, _ := s.engine.Workspace()
			loc := resolver.Path(ws)
			if err := config.Update(func(f *config.File) { f.Location = loc }); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"location": loc, "workspace": ws})
		},
	}
}

func newMembersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Workspace membership commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List members of the current workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, s.engine.MemberList())
		},
	})
	cmd.AddCommand(newMembersAddCmd(app))
	return cmd
}

func newMembersAddCmd(app *App) *cobra.Command {
	var m model.Member
	var role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a member of the current workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			m.Role = model.Role(role)
			if err := s.engine.AddMember(cmd.Context(), m); err != nil {
				return writeErr(cmd, err)
			}
			if got, ok := s.engine.Members.Cache().Get(m.UserID); ok {
				m = got
			}
			return writeOut(cmd, app, m)
		},
	}
	cmd.Flags().StringVar(&m.UserID, "id", "", "User id")
	cmd.Flags().StringVar(&m.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&m.Email, "email", "", "Email")
	cmd.Flags().StringVar(&role, "role", string(model.RoleMember), "Role (owner|admin|member)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
