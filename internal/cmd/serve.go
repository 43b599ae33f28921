package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zyrian-nova/todo-app/internal/server"
	"github.com/zyrian-nova/todo-app/internal/todo"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the todo HTTP API until interrupted.

Routes:
  GET    /                             service status
  GET    /api/                         list todos
  POST   /api/                         create a todo {"task": "...", "done": false}
  PUT    /api/{id}                     update task and/or done
  DELETE /api/{id}                     delete a todo and its subtasks
  POST   /api/{id}/generate-subtasks   split a todo into subtasks with the model
  GET    /api/{id}/subtasks            list a todo's subtasks`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default from server.host)")
	serveCmd.Flags().Int("port", 0, "listen port (default from server.port)")
	serveCmd.Flags().String("db", "", "SQLite database path (default from store.path)")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("store.path", serveCmd.Flags().Lookup("db"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cmd)
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	store, err := todo.Open(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	dec, backend, err := newDecomposer(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(store, dec,
		server.WithLogger(logger),
		server.WithSettings(server.Settings{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			ReadTimeout:    cfg.Server.ReadTimeout(),
			WriteTimeout:   cfg.Server.WriteTimeout(),
		}),
	)

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
	}

	logger.Info("todo service starting",
		"addr", ln.Addr().String(),
		"store", cfg.Store.Path,
		"backend", string(backend.Name()),
		"model", backend.Model(),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Requests outlive the signal so Shutdown can drain them.
		return srv.Serve(context.WithoutCancel(ctx), ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx := context.WithoutCancel(ctx)
		if timeout := cfg.Server.ShutdownTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeout)
			defer cancel()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("todo service stopped")
	return nil
}
