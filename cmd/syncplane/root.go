package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/syncplane/internal/api"
	"github.com/hyperengineering/syncplane/internal/archive"
	"github.com/hyperengineering/syncplane/internal/attempt"
	"github.com/hyperengineering/syncplane/internal/config"
	"github.com/hyperengineering/syncplane/internal/events"
	"github.com/hyperengineering/syncplane/internal/featureflag"
	"github.com/hyperengineering/syncplane/internal/store"
	"github.com/hyperengineering/syncplane/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "syncplane",
	Short:         "Syncplane - job attempt lifecycle service",
	Long:          "Runs the attempt lifecycle server when invoked without a subcommand.",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(attemptCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize feature flags, event publisher and archive
	flags, err := newFlagClient(cfg.FeatureFlags)
	if err != nil {
		db.Close()
		return err
	}
	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		db.Close()
		return err
	}
	archiver, err := archive.NewArchiver(cfg.Archive)
	if err != nil {
		publisher.Close()
		db.Close()
		return err
	}
	slog.Info("integrations initialized",
		"feature_flags", cfg.FeatureFlags.Path != "",
		"events", cfg.Events.URL != "",
		"archive", cfg.Archive.Bucket != "",
	)

	// 6. Initialize attempt manager
	manager := attempt.NewManager(attempt.Options{
		Jobs:          db,
		States:        db,
		Generations:   db,
		Connections:   db,
		Versions:      db,
		Metadata:      db,
		Flags:         flags,
		Publisher:     publisher,
		Archiver:      archiver,
		WorkspaceRoot: cfg.Workspace.Root,
	})
	slog.Info("attempt manager initialized", "workspace_root", cfg.Workspace.Root)

	// 7. Initialize HTTP router
	handler := api.NewHandler(db, manager, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Background workers
	var wg sync.WaitGroup
	var uploader worker.SnapshotUploader
	if cfg.Archive.Bucket != "" {
		uploader = archiver
	}
	snapshotWorker := worker.NewSnapshotWorker(db, uploader, cfg.Worker.SnapshotDir, time.Duration(cfg.Worker.SnapshotInterval))
	startWorker(ctx, &wg, "snapshot", snapshotWorker.Run)
	if fc, ok := flags.(*featureflag.FileClient); ok {
		startWorker(ctx, &wg, "feature-flag-reload", func(ctx context.Context) {
			reloadOnHangup(ctx, fc)
		})
	}

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is expected after Shutdown().
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Close publisher, then store
	if err := publisher.Close(); err != nil {
		slog.Error("publisher close error", "error", err)
	}
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger. Format "text" selects the text
// handler; anything else is JSON.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newFlagClient returns a file-backed flag client, or a static client
// serving defaults when no file is configured.
func newFlagClient(cfg config.FeatureFlagsConfig) (featureflag.Client, error) {
	if cfg.Path == "" {
		return featureflag.NewStaticClient(nil), nil
	}
	fc, err := featureflag.NewFileClient(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load feature flags: %w", err)
	}
	return fc, nil
}

// reloadOnHangup re-reads the flag file on each SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, fc *featureflag.FileClient) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := fc.Reload(); err != nil {
				slog.Error("feature flag reload failed", "component", "featureflag", "error", err)
				continue
			}
			slog.Info("feature flags reloaded", "component", "featureflag")
		}
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
