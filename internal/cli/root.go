package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"teamboard/internal/config"
	"teamboard/internal/docstore"
	"teamboard/internal/engine"
	"teamboard/internal/format"
	"teamboard/internal/logging"
	"teamboard/internal/mutate"
	"teamboard/internal/resolver"
)

const settleTimeout = 15 * time.Second

type App struct {
	Backend    string
	Dir        string
	UserID     string
	Workspace  string
	LogLevel   string
	PrettyJSON bool
	Format     string

	cfg  config.Config
	file *config.File
	log  *slog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "teamboard",
		Short:        "Live team boards for projects, tasks and issues",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a workspace and make it current
  teamboard workspaces create --name "Acme" --use

  # Add a project and a task
  teamboard projects create --name "Launch"
  teamboard tasks create --project <project-id> --title "Write the announcement"

  # Interactive board
  teamboard board --kind tasks --mode priority

  # Serve the push API for web clients
  teamboard serve --addr 127.0.0.1:8787
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.Backend, "backend", "", "Document store backend (memory|sqlite|firestore; default from TEAMBOARD_BACKEND)")
	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Data directory for the sqlite backend (default ~/.teamboard/data)")
	cmd.PersistentFlags().StringVar(&app.UserID, "user", "", "Acting user id (default from TEAMBOARD_USER or the config file)")
	cmd.PersistentFlags().StringVar(&app.Workspace, "workspace", "", "Workspace slug or id (default: the remembered location)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", "json", "Output format (json|table)")

	cmd.AddCommand(newWorkspacesCmd(app))
	cmd.AddCommand(newMembersCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newIssuesCmd(app))
	cmd.AddCommand(newUpdatesCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newServeCmd(app))

	return cmd
}

// init merges flags over the environment and the config file, then sets up logging.
func (app *App) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return writeErr(cmd, err)
	}
	file, err := config.LoadFile()
	if err != nil {
		return writeErr(cmd, fmt.Errorf("read config file: %w", err))
	}
	if app.Backend != "" {
		cfg.Backend = strings.ToLower(app.Backend)
	}
	if app.Dir != "" {
		cfg.Dir = app.Dir
	}
	if app.LogLevel != "" {
		cfg.LogLevel = app.LogLevel
	}
	switch {
	case app.UserID != "":
		cfg.UserID = app.UserID
	case cfg.UserID == "" && file.UserID != "":
		cfg.UserID = file.UserID
	}
	if err := cfg.Validate(); err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg
	app.file = file

	level := cfg.LogLevel
	if level == "" && cfg.LogFile == "" {
		// Keep stderr quiet for scripted use unless asked.
		level = "warn"
	}
	out := cmd.ErrOrStderr()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return writeErr(cmd, fmt.Errorf("open log file: %w", err))
		}
		out = f
	}
	log, err := logging.New(logging.Options{Production: cfg.IsProduction(), Level: level, Output: out})
	if err != nil {
		return writeErr(cmd, err)
	}
	app.log = log
	return nil
}

// baseLocation is where a session starts: --workspace, else the remembered location.
func (app *App) baseLocation() string {
	if ws := strings.Trim(strings.TrimSpace(app.Workspace), "/"); ws != "" {
		return "/" + ws
	}
	if app.file != nil && app.file.Location != "" {
		return app.file.Location
	}
	return "/"
}

func (app *App) openStore(ctx context.Context) (docstore.Store, error) {
	log := logging.Component(app.log, "docstore")
	switch app.cfg.Backend {
	case config.BackendMemory:
		return docstore.NewMemory(), nil
	case config.BackendFirestore:
		return docstore.OpenFirestore(ctx, docstore.FirestoreConfig{
			ProjectID:       app.cfg.FirebaseProjectID,
			CredentialsFile: app.cfg.FirebaseCredentials,
			Logger:          log,
		})
	default:
		dir, err := config.DataDir(app.cfg.Dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return docstore.OpenSQLite(ctx, filepath.Join(dir, "teamboard.db"), docstore.SQLiteOptions{
			PollInterval: app.cfg.PollInterval,
			Logger:       log,
		})
	}
}

// session is one command's view of the store.
type session struct {
	app    *App
	store  docstore.Store
	engine *engine.Engine

	mu   sync.Mutex
	errs []error
}

type openOptions struct {
	// interactive sessions write in the background and report failures in the log.
	interactive bool
}

func (app *App) open(ctx context.Context, opts openOptions) (*session, error) {
	st, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	s := &session{app: app, store: st}
	eopts := engine.Options{Store: st, UserID: app.cfg.UserID, Logger: app.log}
	if !opts.interactive {
		eopts.Strategy = mutate.Inline{Log: logging.Component(app.log, "mutate"), OnError: s.recordError}
	}
	e, err := engine.New(eopts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	s.engine = e
	if err := e.Start(app.baseLocation()); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.settle(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := s.engine.Settle(ctx); err != nil {
		return fmt.Errorf("waiting for data: %w", err)
	}
	return nil
}

func (s *session) recordError(err *mutate.MutationError) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// writeError returns the failures reported by writes since the last call.
func (s *session) writeError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.errs...)
	s.errs = nil
	return err
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.engine.Close(ctx); err != nil {
		s.app.log.Warn("pending writes not flushed", "err", err)
	}
	_ = s.store.Close()
}

// requireWorkspace fails unless the session resolved a workspace.
func (s *session) requireWorkspace() error {
	st := s.engine.Status()
	if s.app.Workspace != "" && st.Redirected != "" {
		// An explicit --workspace never falls back to another workspace.
		return fmt.Errorf("workspace not found: %s", strings.Trim(s.app.Workspace, "/"))
	}
	if st.State == resolver.Valid && st.Workspace != nil {
		return nil
	}
	if st.Location == "/" || st.Location == "" {
		return errors.New("no workspace; create one with `teamboard workspaces create --name <name> --use`")
	}
	return fmt.Errorf("workspace not found: %s", strings.Trim(st.Location, "/"))
}

// selectProject makes projectID (or the remembered project when empty) the selected project.
func (s *session) selectProject(ctx context.Context, projectID string) error {
	if err := s.requireWorkspace(); err != nil {
		return err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		if s.engine.Scope().ProjectID != "" {
			return nil
		}
		return errors.New("no project selected; pass --project or run `teamboard projects use <id>`")
	}
	if err := s.engine.SelectProject(projectID); err != nil {
		return err
	}
	if err := s.settle(ctx); err != nil {
		return err
	}
	if !s.engine.Projects.Has(projectID) {
		return errNotFound("project", projectID)
	}
	return nil
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	if app.Format == "table" {
		return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
	}
	return format.Write(cmd.OutOrStdout(), map[string]any{"data": v}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
