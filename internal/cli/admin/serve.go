package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/ragindex/internal/api/handlers"
	"github.com/cloo-solutions/ragindex/internal/cli"
	"github.com/cloo-solutions/ragindex/internal/config"
	"github.com/cloo-solutions/ragindex/internal/database"
	"github.com/cloo-solutions/ragindex/internal/logging"
	"github.com/cloo-solutions/ragindex/internal/server"
	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/cloo-solutions/ragindex/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the ragindex API server on the specified port.

The daemon's pipeline comes from PIPELINE_FILE or the CHUNKER, EMBEDDER and
STORE settings. With STORE=postgres, migrations are applied on start-up.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 10% sampling in production, everything in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTelemetry()
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}

	pipeline, err := cli.ResolvePipeline(cfg, cli.PipelineOverrides{})
	if err != nil {
		return err
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if pipeline.Store == service.StorePostgres && cfg.HasPostgres() && !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(cfg.DatabaseURL, source, database.MigrateUp, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	stack, err := cli.BuildStack(ctx, cfg, pipeline, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	router := server.NewRouter(server.RouterConfig{
		PipelineHandler: handlers.NewPipelineHandler(stack.Engine, pipeline),
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("chunker", string(pipeline.Chunker)),
			zap.String("embedder", pipeline.Embedder),
			zap.String("store", pipeline.Store),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
