package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/timvw/persona-survey/internal/httpapi"
	"github.com/timvw/persona-survey/internal/session"
)

var flagListen string

// pruneInterval is how often idle web sessions are dropped.
const pruneInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the questionnaire as a JSON API",
	Long: `Serve the survey over HTTP. Each browser gets its own session, identified
by a cookie; sessions idle for longer than session_ttl are dropped.

  GET  /api/questions
  POST /api/sessions
  GET  /api/sessions/:id
  PUT  /api/sessions/:id/ratings
  POST /api/sessions/:id/assessment
  POST /api/sessions/:id/finish`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (default: :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagListen != "" {
		cfg.Listen = flagListen
	}

	logg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logg, appOptions{})
	if err != nil {
		return withHint(err)
	}
	defer a.Close(context.Background())

	sessions := session.NewRegistry(a.svc.Questions(), cfg.SessionTTLDuration)
	srv := httpapi.NewServer(httpapi.RouterConfig{
		Handler:     httpapi.NewHandler(a.svc, sessions, logg),
		Logger:      logg,
		ServiceName: "persona-survey",
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info("listening", "address", cfg.Listen)
		return srv.Run(ctx, cfg.Listen)
	})
	g.Go(func() error {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				logg.Debug("sessions pruned", "remaining", sessions.Prune())
			}
		}
	})

	err = g.Wait()
	logg.Info("server stopped")
	return err
}
