package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"teamboard/internal/board"
	"teamboard/internal/config"
	"teamboard/internal/format"
	"teamboard/internal/logging"
	"teamboard/internal/subscribe"
	"teamboard/internal/tui"
)

// boardDefaults fills kind and mode from the config file when the flags were not given.
func boardDefaults(cmd *cobra.Command, app *App, kind, mode string) (string, board.Mode, error) {
	if !cmd.Flags().Changed("kind") && app.file != nil && app.file.BoardKind != "" {
		kind = app.file.BoardKind
	}
	if !cmd.Flags().Changed("mode") && app.file != nil && app.file.BoardMode != "" {
		mode = app.file.BoardMode
	}
	m, err := board.ParseMode(mode)
	if err != nil {
		return "", "", err
	}
	return strings.ToLower(strings.TrimSpace(kind)), m, nil
}

func newBoardCmd(app *App) *cobra.Command {
	var (
		kind      string
		mode      string
		project   string
		printOnly bool
	)
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Interactive board of projects, tasks or issues",
		Long: strings.TrimSpace(`
Shows a live board grouped by status, priority or assignee. Cards move between columns with
space (pick up), arrows (move) and space (drop); each drop writes one field.

Use --print to render the board once as JSON instead.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, m, err := boardDefaults(cmd, app, kind, mode)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !printOnly && app.cfg.LogFile == "" {
				// The alternate screen owns the terminal.
				app.log = logging.Discard()
			}
			s, err := app.open(cmd.Context(), openOptions{interactive: !printOnly})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.requireWorkspace(); err != nil {
				return writeErr(cmd, err)
			}
			if project != "" || (kind == "issues" && s.engine.Scope().ProjectID == "") {
				if err := s.selectProject(cmd.Context(), project); err != nil {
					return writeErr(cmd, err)
				}
			}

			if printOnly {
				b, _, err := s.engine.Board(kind, m)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, b)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = tui.Run(ctx, s.engine, tui.Options{
				Kind: kind,
				Mode: m,
				OnState: func(kind string, mode board.Mode) {
					loc := s.engine.Location()
					if err := config.Update(func(f *config.File) {
						f.BoardKind = kind
						f.BoardMode = string(mode)
						f.Location = loc
					}); err != nil {
						app.log.Warn("save board state", "err", err)
					}
				},
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "projects", "What to show (projects|tasks|issues)")
	cmd.Flags().StringVar(&mode, "mode", "status", "Grouping (status|priority|assignee)")
	cmd.Flags().StringVar(&project, "project", "", "Project whose tasks or issues to show")
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the board as JSON and exit")
	cmd.AddCommand(newBoardMoveCmd(app))
	return cmd
}

func newBoardMoveCmd(app *App) *cobra.Command {
	var (
		kind    string
		mode    string
		project string
		from    string
		to      string
	)
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a card to another column, as a drag on the board would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := board.ParseMode(mode)
			if err != nil {
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
			if project != "" || kind == "issues" {
				if err := s.selectProject(cmd.Context(), project); err != nil {
					return writeErr(cmd, err)
				}
			}
			res, err := s.engine.Move(kind, m, strings.TrimSpace(args[0]), from, to)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.writeError(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, res)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "projects", "Card kind (projects|tasks|issues)")
	cmd.Flags().StringVar(&mode, "mode", "status", "Grouping (status|priority|assignee)")
	cmd.Flags().StringVar(&project, "project", "", "Project of the task or issue")
	cmd.Flags().StringVar(&from, "from", "", "Source column key (default: the card's first column)")
	cmd.Flags().StringVar(&to, "to", "", "Target column key")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

type watchDoc struct {
	ID   string         `json:"id"`
	Path string         `json:"path"`
	Data map[string]any `json:"data"`
}

type watchLine struct {
	Scope string     `json:"scope"`
	Count int        `json:"count"`
	Docs  []watchDoc `json:"docs,omitempty"`
	Error string     `json:"error,omitempty"`
}

func newWatchCmd(app *App) *cobra.Command {
	var (
		kind    string
		project string
		count   int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream snapshots of a collection as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), openOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if project != "" {
				if err := s.selectProject(cmd.Context(), project); err != nil {
					return writeErr(cmd, err)
				}
			}
			v, ok := s.engine.ViewFor(kind)
			if !ok {
				return writeErr(cmd, errors.New("unknown kind: "+kind))
			}
			key, ok := v.Key()
			if !ok {
				return writeErr(cmd, errors.New(v.Name()+" are not in scope; pass --workspace or --project"))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// A manager of its own keeps the session's subscription for key attached.
			mgr := subscribe.NewManager(s.store, logging.Component(app.log, "subscribe"))
			stream, err := mgr.Stream(ctx, key)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer stream.Close()

			seen := 0
			for ev := range stream.Events() {
				line := watchLine{Scope: ev.Key.String(), Count: len(ev.Docs)}
				if ev.Err != nil {
					line.Error = ev.Err.Error()
				}
				for _, d := range ev.Docs {
					line.Docs = append(line.Docs, watchDoc{ID: d.ID, Path: d.Path, Data: d.Data})
				}
				if err := format.WriteJSON(cmd.OutOrStdout(), line, false); err != nil {
					return err
				}
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "projects", "Collection (workspaces|members|projects|tasks|issues|updates)")
	cmd.Flags().StringVar(&project, "project", "", "Project for tasks, issues and updates")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many snapshots (0 streams until interrupted)")
	return cmd
}
