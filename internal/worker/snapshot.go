package worker

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"
)

// SnapshotFileName is the name of the local snapshot file.
const SnapshotFileName = "syncplane.db"

// SnapshotStore defines the store operations needed by the snapshot worker.
type SnapshotStore interface {
	GenerateSnapshot(ctx context.Context, path string) error
}

// SnapshotUploader copies a snapshot file off the host.
type SnapshotUploader interface {
	UploadSnapshot(ctx context.Context, filePath string) error
}

// SnapshotWorker generates periodic database snapshots and uploads them.
type SnapshotWorker struct {
	store    SnapshotStore
	uploader SnapshotUploader
	dir      string
	interval time.Duration
}

// NewSnapshotWorker creates a worker writing snapshots into dir every
// interval. The uploader is optional; if nil, snapshots stay local.
func NewSnapshotWorker(store SnapshotStore, uploader SnapshotUploader, dir string, interval time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		store:    store,
		uploader: uploader,
		dir:      dir,
		interval: interval,
	}
}

// Path returns the local path snapshots are written to.
func (w *SnapshotWorker) Path() string {
	return filepath.Join(w.dir, SnapshotFileName)
}

// Run starts the worker loop. Generates snapshot immediately on start,
// then on each interval. Respects context cancellation for graceful shutdown.
func (w *SnapshotWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Generate snapshot immediately on start
	w.generateSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.generateSnapshot(ctx)
		}
	}
}

// generateSnapshot generates a snapshot, uploads it, and logs any errors.
// It reports whether the local snapshot was written.
func (w *SnapshotWorker) generateSnapshot(ctx context.Context) bool {
	path := w.Path()
	slog.Info("snapshot generation started",
		"component", "worker",
		"action", "snapshot_start",
		"path", path,
	)

	if err := w.store.GenerateSnapshot(ctx, path); err != nil {
		// Check if it's a context cancellation (graceful shutdown)
		if ctx.Err() != nil {
			return false
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"action", "snapshot_failed",
			"error", err,
		)
		return false
	}

	if w.uploader == nil {
		return true
	}
	// Upload failures are not fatal; the local snapshot remains valid.
	if err := w.uploader.UploadSnapshot(ctx, path); err != nil {
		if ctx.Err() != nil {
			return true
		}
		slog.Warn("snapshot upload failed",
			"component", "worker",
			"action", "snapshot_upload_failed",
			"path", path,
			"error", err,
		)
		return true
	}

	slog.Info("snapshot uploaded",
		"component", "worker",
		"action", "snapshot_uploaded",
		"path", path,
	)
	return true
}
