package attempt

import (
	"context"

	"github.com/google/uuid"

	"github.com/hyperengineering/syncplane/internal/types"
)

// JobStore persists jobs and their attempts.
type JobStore interface {
	GetJob(ctx context.Context, jobID int64) (*types.Job, error)
	CreateAttempt(ctx context.Context, jobID int64, logPath string) (int, error)
	FailAttempt(ctx context.Context, jobID int64, attemptNumber int) error
	SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int) error
	WriteOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error
	WriteAttemptFailureSummary(ctx context.Context, jobID int64, attemptNumber int, summary *types.AttemptFailureSummary) error
	WriteAttemptSyncConfig(ctx context.Context, jobID int64, attemptNumber int, cfg types.AttemptSyncConfig) error
	GetAttemptForJob(ctx context.Context, jobID int64, attemptNumber int) (*types.Attempt, error)
	GetAttemptCombinedStats(ctx context.Context, jobID int64, attemptNumber int) (*types.SyncStats, error)
	WriteStats(ctx context.Context, jobID int64, attemptNumber int, connectionID uuid.UUID, totals types.SyncStats, perStream []types.StreamSyncStats) error
}

// StreamStateStore holds per-connection replication state.
type StreamStateStore interface {
	GetCurrentState(ctx context.Context, connectionID uuid.UUID) (*types.StateWrapper, error)
	BulkDelete(ctx context.Context, connectionID uuid.UUID, streams types.StreamSet) error
}

// GenerationTracker starts new data generations for streams.
type GenerationTracker interface {
	UpdateGenerationForStreams(ctx context.Context, connectionID uuid.UUID, jobID int64, refreshes []types.StreamRefresh, streams types.StreamSet) error
}

// ConnectionLookup resolves a connection and its destination.
type ConnectionLookup interface {
	GetConnection(ctx context.Context, connectionID uuid.UUID) (*types.Connection, error)
	GetDestination(ctx context.Context, destinationID uuid.UUID) (*types.Destination, error)
}

// DestinationCapabilityResolver resolves the connector version a
// destination runs. destinationID may be nil.
type DestinationCapabilityResolver interface {
	GetDestinationVersion(ctx context.Context, definitionID, workspaceID uuid.UUID, destinationID *uuid.UUID) (*types.DestinationVersion, error)
}

// StreamMetadataStore records per-stream attempt metadata.
type StreamMetadataStore interface {
	UpsertStreamAttemptMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []types.StreamAttemptMetadata) error
}
