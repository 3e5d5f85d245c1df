package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coding-eval/internal/ingest"
	"github.com/sells-group/coding-eval/internal/monitoring"
	"github.com/sells-group/coding-eval/internal/server"
)

var (
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API for the evaluation session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(server.Deps{
			Cases:        env.Cases,
			Ledger:       env.Ledger,
			Library:      env.Library,
			Settings:     env.Settings,
			Flags:        env.Flags,
			Ingester:     env.Ingester,
			Runner:       env.Runner,
			Improver:     env.Improver,
			Health:       env.Health,
			DefaultModel: env.Model.DefaultModel(),
		}, server.Options{Port: port, AllowedOrigins: cfg.Server.AllowedOrigins}).HTTPServer()

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			monitoring.NewChecker(env.Health, monitoring.NewAlerter(), time.Minute).Run(gctx)
			return nil
		})

		if serveWatch {
			w := ingest.NewWatcher(env.Ingester, cfg.Ingest.InboxDir,
				time.Duration(cfg.Ingest.DebounceMs)*time.Millisecond, nil)
			g.Go(func() error { return w.Run(gctx) })
		}

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				stop()
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "also ingest notes dropped into the inbox directory")
	rootCmd.AddCommand(serveCmd)
}
