package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"teamboard/internal/config"
	"teamboard/internal/docstore"
	"teamboard/internal/logging"
	"teamboard/internal/push"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP and push live snapshots over websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.cfg.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := app.open(ctx, openOptions{interactive: true})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			opts := push.Options{
				Engine:         s.engine,
				Logger:         app.log,
				AllowedOrigins: app.cfg.AllowedOrigins,
			}
			if app.cfg.Backend == config.BackendFirestore {
				if fs, ok := s.store.(*docstore.Firestore); ok {
					v, err := push.NewFirebaseVerifier(ctx, fs.App())
					if err != nil {
						return writeErr(cmd, err)
					}
					opts.Verifier = v
				}
			}
			srv, err := push.New(opts)
			if err != nil {
				return writeErr(cmd, err)
			}
			logging.Component(app.log, "cli").Info("serving", "addr", addr, "backend", app.cfg.Backend, "location", s.engine.Location())
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from TEAMBOARD_ADDR)")
	return cmd
}
